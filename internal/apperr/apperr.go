// Package apperr classifies failures so the HTTP layer can map them to
// status codes without inspecting messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindUpstream   Kind = "upstream"
	KindCacheIO    Kind = "cache_io"
	KindInternal   Kind = "internal"
)

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	if msg == "" {
		return e.Op
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the client-safe message. Internal and cache errors never
// leak their cause.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindInternal:
		return "internal error"
	case KindCacheIO:
		return "audio cache unavailable"
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Kind == KindUpstream {
		return "upstream provider failed"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, fmt.Sprintf(format, args...))
}

func NotFound(op, what string) *Error {
	return New(KindNotFound, op, what+" not found")
}

func Upstream(op string, err error) *Error { return Wrap(KindUpstream, op, err) }

func CacheIO(op string, err error) *Error { return Wrap(KindCacheIO, op, err) }

func Internal(op string, err error) *Error { return Wrap(KindInternal, op, err) }

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a Kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
