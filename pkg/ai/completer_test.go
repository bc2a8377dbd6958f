package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func transcript() []ChatMessage {
	return []ChatMessage{
		{Role: "system", Content: "Reply in simple German."},
		{Role: "user", Content: "Hallo"},
		{Role: "assistant", Content: "Hallo! Wie geht's?"},
		{Role: "user", Content: "Gut, danke."},
	}
}

func TestOllamaComplete(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  Schön!  "}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Kind: ProviderOllama, BaseURL: srv.URL + "/", Model: "llama3"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	reply, err := c.Complete(context.Background(), transcript(), Options{Temperature: 0.7})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "Schön!" {
		t.Fatalf("reply = %q", reply)
	}
	if got.Model != "llama3" || got.Stream || got.Options.Temperature != 0.7 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if len(got.Messages) != 4 || got.Messages[0].Role != "system" {
		t.Fatalf("system message not forwarded: %+v", got.Messages)
	}
}

func TestOpenAICompleteSendsBearerAndTemperature(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("authorization = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Sehr gut."}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Kind: ProviderOpenAI, BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	reply, err := c.Complete(context.Background(), transcript(), Options{Temperature: 0})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "Sehr gut." {
		t.Fatalf("reply = %q", reply)
	}
	if temp, ok := raw["temperature"]; !ok || temp.(float64) != 0 {
		t.Fatalf("temperature not sent explicitly: %v", raw)
	}
}

func TestGeminiCompleteMapsRoles(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-1.5-flash:generateContent") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Fatalf("missing api key")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Na "},{"text":"klar!"}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Kind: ProviderGemini, BaseURL: srv.URL, APIKey: "g-key", Model: "models/gemini-1.5-flash"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	reply, err := c.Complete(context.Background(), transcript(), Options{Temperature: 0.3})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "Na klar!" {
		t.Fatalf("reply = %q", reply)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "Reply in simple German." {
		t.Fatalf("system instruction missing: %+v", got.SystemInstruction)
	}
	if len(got.Contents) != 3 || got.Contents[1].Role != "model" {
		t.Fatalf("unexpected contents: %+v", got.Contents)
	}
	if got.GenerationConfig.Temperature != 0.3 {
		t.Fatalf("temperature = %v", got.GenerationConfig.Temperature)
	}
}

func TestCompleteSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model is loading"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Config{Kind: ProviderOllama, BaseURL: srv.URL, Model: "llama3"})
	_, err := c.Complete(context.Background(), transcript(), Options{})
	if err == nil || !strings.Contains(err.Error(), "model is loading") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestCompleteEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Config{Kind: ProviderOpenAI, BaseURL: srv.URL, Model: "m"})
	if _, err := c.Complete(context.Background(), transcript(), Options{}); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{Kind: "claude", Model: "x"}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
	if _, err := NewClient(Config{Kind: ProviderOllama}); err == nil {
		t.Fatalf("expected missing model error")
	}
	if _, err := NewClient(Config{Kind: ProviderGemini, Model: "gemini-1.5-flash"}); err == nil {
		t.Fatalf("expected missing gemini key error")
	}
	kind, err := ParseProviderKind(" OpenAI-Compat ")
	if err != nil || kind != ProviderOpenAI {
		t.Fatalf("parse provider kind = %q, %v", kind, err)
	}
}
