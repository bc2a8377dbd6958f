package app

import (
	"errors"

	"langu/internal/apperr"
	"langu/pkg/store"
)

// Names used in not-found messages.
const (
	deckEntity         = "deck"
	sectionEntity      = "section"
	conversationEntity = "conversation"
	messageEntity      = "message"
)

// storeErr classifies a store failure for the HTTP boundary.
func storeErr(op, what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(op, what)
	case errors.Is(err, store.ErrInvalidOrder):
		return apperr.Wrap(apperr.KindValidation, op, err)
	default:
		return apperr.Internal(op, err)
	}
}
