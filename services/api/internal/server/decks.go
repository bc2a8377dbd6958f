package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"langu/pkg/domain"
	"langu/services/api/internal/app"
)

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.app.ListDecks(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": decks, "count": len(decks)})
}

func (s *Server) handleCreateDeck(w http.ResponseWriter, r *http.Request) {
	var req app.DeckInput
	if !decodeJSON(w, r, &req) {
		return
	}
	deck, err := s.app.CreateDeck(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, deck)
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	detail, err := s.app.GetDeck(r.Context(), chi.URLParam(r, "deckID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateDeck(w http.ResponseWriter, r *http.Request) {
	var req app.DeckPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	deck, err := s.app.UpdateDeck(r.Context(), chi.URLParam(r, "deckID"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deck)
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DeleteDeck(r.Context(), chi.URLParam(r, "deckID")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.Playlist(r.Context(), chi.URLParam(r, "deckID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxImportBytes)
	if err := r.ParseMultipartForm(s.maxImportBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "file_too_large", "import file too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "invalid_multipart", "multipart form with a file field required")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_multipart", "file field required")
		return
	}
	defer file.Close()

	report, err := s.app.ImportSections(r.Context(), chi.URLParam(r, "deckID"), header.Filename, file)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

type sectionResponse struct {
	Section domain.Section `json:"section"`
	Deck    domain.Deck    `json:"deck"`
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	var req app.SectionInput
	if !decodeJSON(w, r, &req) {
		return
	}
	section, deck, err := s.app.AddSection(r.Context(), chi.URLParam(r, "deckID"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sectionResponse{Section: section, Deck: deck})
}

type reorderRequest struct {
	SectionIDs []string `json:"sectionIds"`
}

func (s *Server) handleReorderSections(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sections, err := s.app.ReorderSections(r.Context(), chi.URLParam(r, "deckID"), req.SectionIDs)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": sections, "count": len(sections)})
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	section, err := s.app.GetSection(r.Context(), chi.URLParam(r, "sectionID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, section)
}

func (s *Server) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	var req app.SectionPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	section, err := s.app.UpdateSection(r.Context(), chi.URLParam(r, "sectionID"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, section)
}

func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	deck, err := s.app.DeleteSection(r.Context(), chi.URLParam(r, "sectionID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deck": deck})
}

func (s *Server) handleRecordPlay(w http.ResponseWriter, r *http.Request) {
	section, deck, err := s.app.RecordPlay(r.Context(), chi.URLParam(r, "sectionID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sectionResponse{Section: section, Deck: deck})
}

func (s *Server) handleSectionAudio(w http.ResponseWriter, r *http.Request) {
	variant := domain.AudioVariant(strings.TrimSpace(r.URL.Query().Get("variant")))
	if variant == "" {
		variant = domain.VariantForeign
	}
	sectionID, voice := chi.URLParam(r, "sectionID"), voiceFromQuery(r)
	// Cache hits never reach the provider, so only misses are throttled.
	audio, ok, err := s.app.CachedSectionAudio(r.Context(), sectionID, variant, voice)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if ok {
		writeAudio(w, audio)
		return
	}
	if !s.allow(w, r, "audio") {
		return
	}
	audio, err = s.app.SectionAudio(r.Context(), sectionID, variant, voice)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeAudio(w, audio)
}

func voiceFromQuery(r *http.Request) domain.Voice {
	q := r.URL.Query()
	return domain.Voice{
		LanguageCode: strings.TrimSpace(q.Get("lang")),
		Name:         strings.TrimSpace(q.Get("voice")),
	}
}

func writeAudio(w http.ResponseWriter, audio []byte) {
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes)).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return false
	}
	return true
}
