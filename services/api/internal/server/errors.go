package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"langu/internal/apperr"
	"langu/internal/util"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorBody{
		Error:     msg,
		Code:      code,
		RequestID: util.RequestIDFromRequest(r),
	})
}

// writeAppError maps a classified app error to its status and body. Server
// side failures are logged with their cause, which never reaches the client.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	msg := "internal error"
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		msg = appErr.Message()
	}
	logger := util.LoggerFromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", kind, "err", err)
	} else {
		logger.Debug("request rejected", "kind", kind, "err", err)
	}
	writeJSON(w, status, errorBody{
		Error:     msg,
		Code:      errorCodeForKind(kind),
		Kind:      string(kind),
		RequestID: util.RequestIDFromRequest(r),
	})
}

func errorCodeForKind(kind apperr.Kind) string {
	switch kind {
	case apperr.KindValidation:
		return "validation_failed"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindUpstream:
		return "upstream_unavailable"
	case apperr.KindCacheIO:
		return "audio_cache_unavailable"
	default:
		return "internal_error"
	}
}
