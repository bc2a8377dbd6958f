package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"langu/pkg/domain"
)

func TestGoogleClientSynthesize(t *testing.T) {
	audio := []byte("ID3\x03fake-mp3-frames")
	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text:synthesize" || r.URL.Query().Get("key") != "tts-key" {
			t.Fatalf("unexpected request %s", r.URL.String())
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"audioContent": base64.StdEncoding.EncodeToString(audio)})
	}))
	defer srv.Close()

	c, err := NewGoogleClient("tts-key", srv.URL, 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	out, err := c.Synthesize(context.Background(), " Guten Morgen ", domain.Voice{LanguageCode: "de-DE", Name: "de-DE-Wavenet-B"})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !bytes.Equal(out, audio) {
		t.Fatalf("audio mismatch")
	}
	if got.Input.Text != "Guten Morgen" || got.Voice.Name != "de-DE-Wavenet-B" || got.AudioConfig.AudioEncoding != "MP3" {
		t.Fatalf("unexpected request body: %+v", got)
	}
}

func TestGoogleClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "bad") {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"audioContent":""}`))
	}))
	defer srv.Close()

	bad, _ := NewGoogleClient("bad", srv.URL, 0)
	if _, err := bad.Synthesize(context.Background(), "hallo", domain.Voice{LanguageCode: "de-DE"}); err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("expected api error, got %v", err)
	}
	empty, _ := NewGoogleClient("ok", srv.URL, 0)
	if _, err := empty.Synthesize(context.Background(), "hallo", domain.Voice{LanguageCode: "de-DE"}); !errors.Is(err, ErrEmptyAudio) {
		t.Fatalf("expected ErrEmptyAudio, got %v", err)
	}
	if _, err := empty.Synthesize(context.Background(), "  ", domain.Voice{LanguageCode: "de-DE"}); err == nil {
		t.Fatalf("expected error for blank text")
	}
	if _, err := NewGoogleClient("", "", 0); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
