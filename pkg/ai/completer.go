package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ProviderKind selects the wire format of a completion backend.
type ProviderKind string

const (
	ProviderOllama ProviderKind = "ollama"
	ProviderOpenAI ProviderKind = "openai"
	ProviderGemini ProviderKind = "gemini"
)

// ErrEmptyReply is returned when a provider answers without any text.
var ErrEmptyReply = errors.New("empty completion reply")

// ParseProviderKind normalizes a configured provider name.
func ParseProviderKind(raw string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ollama":
		return ProviderOllama, nil
	case "openai", "openai-compat", "openai_compat":
		return ProviderOpenAI, nil
	case "gemini":
		return ProviderGemini, nil
	}
	return "", fmt.Errorf("unknown completion provider %q (want ollama, openai or gemini)", raw)
}

// ChatMessage is one turn of a chat transcript. Role is system, user or
// assistant.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Options struct {
	Temperature float64
}

// Completer turns a transcript into the next assistant reply.
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage, opts Options) (string, error)
}

// Config describes one completion backend.
type Config struct {
	Kind    ProviderKind
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// provider holds the per-backend strategy, picked once in NewClient.
type provider struct {
	defaultBaseURL string
	endpoint       func(cfg Config) string
	authorize      func(req *http.Request, cfg Config)
	formatPrompt   func(model string, messages []ChatMessage, opts Options) any
	parseReply     func(body []byte) (string, error)
	parseError     func(body []byte) string
}

var providers = map[ProviderKind]provider{
	ProviderOllama: ollamaProvider,
	ProviderOpenAI: openAIProvider,
	ProviderGemini: geminiProvider,
}

// Client is a Completer bound to a single provider strategy.
type Client struct {
	cfg        Config
	p          provider
	httpClient *http.Client
}

// NewClient validates cfg and binds the matching provider strategy.
func NewClient(cfg Config) (*Client, error) {
	p, ok := providers[cfg.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Kind)
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s completion model required", cfg.Kind)
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.Kind == ProviderGemini && cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = p.defaultBaseURL
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s base url required", cfg.Kind)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		p:          p,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Kind reports the bound provider.
func (c *Client) Kind() ProviderKind { return c.cfg.Kind }

// Complete implements Completer.
func (c *Client) Complete(ctx context.Context, messages []ChatMessage, opts Options) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%s complete: no messages", c.cfg.Kind)
	}
	body, err := c.doJSON(ctx, c.p.endpoint(c.cfg), c.p.formatPrompt(c.cfg.Model, messages, opts))
	if err != nil {
		return "", fmt.Errorf("%s complete: %w", c.cfg.Kind, err)
	}
	text, err := c.p.parseReply(body)
	if err != nil {
		return "", fmt.Errorf("%s complete: %w", c.cfg.Kind, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%s complete: %w", c.cfg.Kind, ErrEmptyReply)
	}
	return text, nil
}

func (c *Client) doJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.p.authorize != nil {
		c.p.authorize(req, c.cfg)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		if msg := c.p.parseError(raw); msg != "" {
			return nil, fmt.Errorf("api error: %s", msg)
		}
		return nil, fmt.Errorf("api error: %s", resp.Status)
	}
	return raw, nil
}

// splitSystem separates system instructions from the conversational turns.
func splitSystem(messages []ChatMessage) (string, []ChatMessage) {
	var system []string
	rest := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			if s := strings.TrimSpace(m.Content); s != "" {
				system = append(system, s)
			}
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
