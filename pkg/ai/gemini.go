package ai

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiProvider calls the Google AI Studio generateContent endpoint.
// System turns become systemInstruction and assistant turns use the "model"
// role.
var geminiProvider = provider{
	defaultBaseURL: defaultGeminiBaseURL,
	endpoint: func(cfg Config) string {
		return fmt.Sprintf("%s/models/%s:generateContent?key=%s", cfg.BaseURL, normalizeModel(cfg.Model), url.QueryEscape(cfg.APIKey))
	},
	formatPrompt: func(_ string, messages []ChatMessage, opts Options) any {
		system, turns := splitSystem(messages)
		req := generateRequest{
			Contents:         make([]content, 0, len(turns)),
			GenerationConfig: generationConfig{Temperature: opts.Temperature},
		}
		for _, m := range turns {
			role := "user"
			if m.Role == "assistant" {
				role = "model"
			}
			req.Contents = append(req.Contents, content{Role: role, Parts: []part{{Text: m.Content}}})
		}
		if system != "" {
			req.SystemInstruction = &content{Parts: []part{{Text: system}}}
		}
		return req
	},
	parseReply: func(body []byte) (string, error) {
		var resp generateResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decode gemini reply: %w", err)
		}
		if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", ErrEmptyReply
		}
		var sb strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		return sb.String(), nil
	},
	parseError: func(body []byte) string {
		var errResp geminiErrorResponse
		_ = json.Unmarshal(body, &errResp)
		return errResp.Error.Message
	},
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
