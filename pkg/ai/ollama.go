package ai

import (
	"encoding/json"
	"fmt"
)

const defaultOllamaBaseURL = "http://127.0.0.1:11434"

// ollamaProvider speaks the Ollama /api/chat endpoint with streaming off.
var ollamaProvider = provider{
	defaultBaseURL: defaultOllamaBaseURL,
	endpoint: func(cfg Config) string {
		return cfg.BaseURL + "/api/chat"
	},
	formatPrompt: func(model string, messages []ChatMessage, opts Options) any {
		out := make([]ollamaChatMessage, 0, len(messages))
		for _, m := range messages {
			out = append(out, ollamaChatMessage{Role: m.Role, Content: m.Content})
		}
		return ollamaChatRequest{
			Model:    model,
			Messages: out,
			Stream:   false,
			Options:  ollamaOptions{Temperature: opts.Temperature},
		}
	},
	parseReply: func(body []byte) (string, error) {
		var resp ollamaChatResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decode ollama reply: %w", err)
		}
		return resp.Message.Content, nil
	},
	parseError: func(body []byte) string {
		var errResp ollamaErrorResponse
		_ = json.Unmarshal(body, &errResp)
		return errResp.Error
	},
}

// Ollama /api/chat request/response types.

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}
