// Package speech synthesizes spoken audio for phrases.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"langu/pkg/domain"
)

const defaultGoogleTTSBaseURL = "https://texttospeech.googleapis.com/v1"

// ErrEmptyAudio is returned when the provider answers without audio bytes.
var ErrEmptyAudio = errors.New("synthesizer returned no audio")

// Synthesizer turns text into MP3 bytes spoken by voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice domain.Voice) ([]byte, error)
}

// GoogleClient calls the Google Cloud Text-to-Speech REST API with an API
// key.
type GoogleClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGoogleClient constructs a client. An empty baseURL selects the public
// endpoint.
func NewGoogleClient(apiKey, baseURL string, timeout time.Duration) (*GoogleClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("tts api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGoogleTTSBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GoogleClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Synthesize implements Synthesizer.
func (c *GoogleClient) Synthesize(ctx context.Context, text string, voice domain.Voice) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("synthesis text required")
	}
	if strings.TrimSpace(voice.LanguageCode) == "" {
		return nil, fmt.Errorf("voice language code required")
	}
	reqBody := synthesizeRequest{
		Input:       synthesisInput{Text: text},
		Voice:       voiceSelection{LanguageCode: voice.LanguageCode, Name: strings.TrimSpace(voice.Name)},
		AudioConfig: audioConfig{AudioEncoding: "MP3"},
	}
	var resp synthesizeResponse
	if err := c.doJSON(ctx, c.baseURL+"/text:synthesize?key="+url.QueryEscape(c.apiKey), reqBody, &resp); err != nil {
		return nil, err
	}
	if resp.AudioContent == "" {
		return nil, ErrEmptyAudio
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio content: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}

func (c *GoogleClient) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("tts api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("tts api error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type synthesisInput struct {
	Text string `json:"text"`
}

type voiceSelection struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name,omitempty"`
}

type audioConfig struct {
	AudioEncoding string `json:"audioEncoding"`
}

type synthesizeRequest struct {
	Input       synthesisInput `json:"input"`
	Voice       voiceSelection `json:"voice"`
	AudioConfig audioConfig    `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
