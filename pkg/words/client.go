// Package words talks to the word-relevance service that ranks curated
// vocabulary against a context and scores phrases against that vocabulary.
package words

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTopK          = 80
	DefaultWordsPerTopic = 30
)

// Validation is the service's verdict on a phrase.
type Validation struct {
	Phrase     string  `json:"phrase"`
	Percentage float64 `json:"percentage"`
	Score      string  `json:"score"`
}

type Health struct {
	Status           string `json:"status"`
	TotalWords       int    `json:"total_words"`
	EmbeddingsLoaded bool   `json:"embeddings_loaded"`
}

// Service is the subset of the word-relevance API the backend depends on.
type Service interface {
	RelevantWords(ctx context.Context, contextText string, topK int, wordsFile string) ([]string, error)
	WordsByTopics(ctx context.Context, topics []string, perTopic int, wordsFile string) ([]string, error)
	ValidatePhrase(ctx context.Context, phrase, wordsFile string) (Validation, error)
	Health(ctx context.Context) (Health, error)
}

// Client calls the word-relevance service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RelevantWords returns up to topK curated words related to contextText.
func (c *Client) RelevantWords(ctx context.Context, contextText string, topK int, wordsFile string) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	var resp wordListResponse
	if err := c.doJSON(ctx, http.MethodPost, "/relevant-words", relevantWordsRequest{
		Context:   contextText,
		TopK:      topK,
		WordsFile: wordsFile,
	}, &resp); err != nil {
		return nil, fmt.Errorf("relevant words: %w", err)
	}
	return resp.RelevantWords, nil
}

// WordsByTopics returns curated words grouped around each topic.
func (c *Client) WordsByTopics(ctx context.Context, topics []string, perTopic int, wordsFile string) ([]string, error) {
	if perTopic <= 0 {
		perTopic = DefaultWordsPerTopic
	}
	var resp wordListResponse
	if err := c.doJSON(ctx, http.MethodPost, "/words-by-topics", wordsByTopicsRequest{
		Topics:        topics,
		WordsPerTopic: perTopic,
		WordsFile:     wordsFile,
	}, &resp); err != nil {
		return nil, fmt.Errorf("words by topics: %w", err)
	}
	return resp.RelevantWords, nil
}

// ValidatePhrase reports the share of phrase words found in the curated list.
func (c *Client) ValidatePhrase(ctx context.Context, phrase, wordsFile string) (Validation, error) {
	var resp Validation
	if err := c.doJSON(ctx, http.MethodPost, "/validate-phrase", validatePhraseRequest{
		Phrase:    phrase,
		WordsFile: wordsFile,
	}, &resp); err != nil {
		return Validation{}, fmt.Errorf("validate phrase: %w", err)
	}
	if resp.Score == "" {
		resp.Score = ScoreLabel(resp.Percentage)
	}
	return resp, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var resp Health
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return Health{}, fmt.Errorf("words health: %w", err)
	}
	return resp, nil
}

// ScoreLabel buckets a validation percentage.
func ScoreLabel(percentage float64) string {
	switch {
	case percentage >= 90:
		return "excellent"
	case percentage >= 70:
		return "good"
	case percentage >= 50:
		return "fair"
	default:
		return "poor"
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("words service url not configured")
	}
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("words service error: %s", errResp.Error)
		}
		return fmt.Errorf("words service error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type relevantWordsRequest struct {
	Context   string `json:"context"`
	TopK      int    `json:"top_k"`
	WordsFile string `json:"words_file,omitempty"`
}

type wordsByTopicsRequest struct {
	Topics        []string `json:"topics"`
	WordsPerTopic int      `json:"words_per_topic"`
	WordsFile     string   `json:"words_file,omitempty"`
}

type validatePhraseRequest struct {
	Phrase    string `json:"phrase"`
	WordsFile string `json:"words_file,omitempty"`
}

type wordListResponse struct {
	RelevantWords []string `json:"relevant_words"`
	Count         int      `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}
