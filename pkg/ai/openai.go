package ai

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// openAIProvider calls any OpenAI-compatible /chat/completions endpoint
// (OpenAI, vLLM, LiteLLM, LocalAI, OpenRouter). BaseURL includes the /v1
// prefix.
var openAIProvider = provider{
	defaultBaseURL: "https://api.openai.com/v1",
	endpoint: func(cfg Config) string {
		return cfg.BaseURL + "/chat/completions"
	},
	authorize: func(req *http.Request, cfg Config) {
		if cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		}
	},
	formatPrompt: func(model string, messages []ChatMessage, opts Options) any {
		out := make([]oaiMessage, 0, len(messages))
		for _, m := range messages {
			out = append(out, oaiMessage{Role: m.Role, Content: m.Content})
		}
		return oaiChatRequest{Model: model, Messages: out, Temperature: opts.Temperature}
	},
	parseReply: func(body []byte) (string, error) {
		var resp oaiChatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decode openai reply: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyReply
		}
		return resp.Choices[0].Message.Content, nil
	},
	parseError: func(body []byte) string {
		var errResp oaiErrorResponse
		_ = json.Unmarshal(body, &errResp)
		return errResp.Error.Message
	},
}

// OpenAI-compatible request/response types.

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
