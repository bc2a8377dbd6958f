package languclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"langu/pkg/domain"
)

func TestPlaylistAndRecordPlay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/decks/d1/playlist":
			_ = json.NewEncoder(w).Encode(map[string]any{"items": []domain.PlaylistItem{
				{SectionID: "s1", ForeignURL: "/api/sections/s1/audio?variant=foreign"},
			}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/sections/s1/play":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"section": domain.Section{ID: "s1", PlayCount: 1},
				"deck":    domain.Deck{ID: "d1", PlayCount: 1},
			})
		case r.URL.Path == "/api/sections/s1/audio":
			if r.URL.Query().Get("lang") != "de-DE" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "lang missing", "code": "validation_failed"})
				return
			}
			_, _ = w.Write([]byte("ID3"))
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "deck not found", "code": "not_found", "requestId": "r1"})
		}
	}))
	defer srv.Close()
	client := NewClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	items, err := client.Playlist(ctx, "d1")
	if err != nil {
		t.Fatalf("playlist: %v", err)
	}
	if len(items) != 1 || items[0].SectionID != "s1" {
		t.Fatalf("unexpected items %+v", items)
	}

	audio, err := client.Fetch(ctx, AudioURL(items[0].ForeignURL, domain.Voice{LanguageCode: "de-DE"}))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(audio) != "ID3" {
		t.Fatalf("unexpected audio %q", audio)
	}
	_, err = client.Fetch(ctx, items[0].ForeignURL)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Code != "validation_failed" {
		t.Fatalf("expected validation APIError, got %v", err)
	}

	section, deck, err := client.RecordPlay(ctx, "s1")
	if err != nil {
		t.Fatalf("record play: %v", err)
	}
	if section.PlayCount != 1 || deck.PlayCount != 1 {
		t.Fatalf("unexpected counts %+v %+v", section, deck)
	}

	_, err = client.Playlist(ctx, "missing")
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.RequestID != "r1" {
		t.Fatalf("expected not found APIError, got %v", err)
	}
}

func TestAudioURLKeepsVariant(t *testing.T) {
	got := AudioURL("/api/sections/s1/audio?variant=english", domain.Voice{LanguageCode: "en-GB", Name: "en-GB-Neural2-A"})
	want := "/api/sections/s1/audio?lang=en-GB&variant=english&voice=en-GB-Neural2-A"
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}
