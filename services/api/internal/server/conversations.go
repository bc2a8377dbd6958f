package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"langu/services/api/internal/app"
)

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.ListConversations(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	var req app.ConversationInput
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	conversation, err := s.app.StartConversation(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, conversation)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	detail, err := s.app.GetConversation(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	var req app.ConversationPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	conversation, err := s.app.UpdateConversation(r.Context(), chi.URLParam(r, "conversationID"), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conversation)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.app.DeleteConversation(r.Context(), chi.URLParam(r, "conversationID")); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	turn, err := s.app.AdvanceConversation(r.Context(), chi.URLParam(r, "conversationID"), req.Content)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, turn)
}

func (s *Server) handleTranslateMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := s.app.TranslateMessage(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleMessageAudio(w http.ResponseWriter, r *http.Request) {
	audio, msg, err := s.app.MessageAudio(r.Context(), chi.URLParam(r, "messageID"), voiceFromQuery(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	w.Header().Set("X-Audio-Id", msg.AudioUUID)
	writeAudio(w, audio)
}

func (s *Server) handleWordsFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.app.ListWordsFiles(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "count": len(files)})
}

type suggestRequest struct {
	Topics        []string `json:"topics"`
	WordsPerTopic int      `json:"wordsPerTopic"`
	WordsFile     string   `json:"wordsFile"`
}

func (s *Server) handleSuggestWords(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	suggestions, err := s.app.SuggestWords(r.Context(), req.Topics, req.WordsPerTopic, req.WordsFile)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"words": suggestions, "count": len(suggestions)})
}

type validateRequest struct {
	Phrase    string `json:"phrase"`
	WordsFile string `json:"wordsFile"`
}

func (s *Server) handleValidatePhrase(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	score, err := s.app.ValidatePhrase(r.Context(), req.Phrase, req.WordsFile)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}
