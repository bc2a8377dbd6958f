// Package languclient calls the langu HTTP API.
package languclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"langu/pkg/domain"
)

// Client calls the API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents an API error response.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// NewClient constructs an API client. Audio synthesis can be slow on a cache
// miss, so the timeout should cover one provider call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	var out struct {
		Items []domain.Deck `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/decks", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Playlist returns the deck's items in position order.
func (c *Client) Playlist(ctx context.Context, deckID string) ([]domain.PlaylistItem, error) {
	var out struct {
		Items []domain.PlaylistItem `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/decks/"+url.PathEscape(deckID)+"/playlist", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// RecordPlay reports a completed playback of a section.
func (c *Client) RecordPlay(ctx context.Context, sectionID string) (domain.Section, domain.Deck, error) {
	var out struct {
		Section domain.Section `json:"section"`
		Deck    domain.Deck    `json:"deck"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/sections/"+url.PathEscape(sectionID)+"/play", nil, &out); err != nil {
		return domain.Section{}, domain.Deck{}, err
	}
	return out.Section, out.Deck, nil
}

// AudioURL adds the voice selection to a playlist audio path.
func AudioURL(path string, voice domain.Voice) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()
	if voice.LanguageCode != "" {
		q.Set("lang", voice.LanguageCode)
	}
	if voice.Name != "" {
		q.Set("voice", voice.Name)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch downloads the bytes behind an API path such as a playlist audio URL.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
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
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var errResp struct {
		Error     string `json:"error"`
		Code      string `json:"code"`
		RequestID string `json:"requestId"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&errResp)
	msg := errResp.Error
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Code: errResp.Code, Message: msg, RequestID: errResp.RequestID}
}
