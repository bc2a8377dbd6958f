package store

import (
	"context"
	"errors"
	"time"

	"langu/pkg/domain"
)

var (
	// ErrNotFound is returned by mutations that target a missing row.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidOrder is returned when a reorder list is not an exact
	// permutation of the deck's section ids.
	ErrInvalidOrder = errors.New("order must list every section of the deck exactly once")
)

// DeckUpdate carries optional deck fields; nil leaves a field unchanged.
type DeckUpdate struct {
	Name         *string
	Description  *string
	LanguageCode *string
	LanguageName *string
}

// SectionUpdate carries optional section texts; nil leaves a text unchanged.
type SectionUpdate struct {
	ForeignText *string
	EnglishText *string
}

type ConversationUpdate struct {
	Title     *string
	WordsFile *string
}

// Store defines persistence for decks, sections, conversations and messages.
// Every deck aggregate and position recomputation happens inside the same
// transaction as the write that triggered it.
type Store interface {
	// decks
	CreateDeck(ctx context.Context, deck domain.Deck) error
	GetDeck(ctx context.Context, id string) (domain.Deck, bool, error)
	ListDecks(ctx context.Context) ([]domain.Deck, error)
	UpdateDeck(ctx context.Context, id string, upd DeckUpdate) (domain.Deck, error)
	// DeleteDeck removes the deck and its sections and returns the removed
	// sections.
	DeleteDeck(ctx context.Context, id string) ([]domain.Section, error)

	// sections
	CreateSection(ctx context.Context, section domain.Section) (domain.Section, domain.Deck, error)
	GetSection(ctx context.Context, id string) (domain.Section, bool, error)
	ListSections(ctx context.Context, deckID string) ([]domain.Section, error)
	// UpdateSectionText clears the audio path when the foreign text changes.
	UpdateSectionText(ctx context.Context, id string, upd SectionUpdate) (domain.Section, error)
	SetSectionAudioPath(ctx context.Context, id, audioPath string) error
	ReorderSections(ctx context.Context, deckID string, orderedIDs []string) ([]domain.Section, error)
	DeleteSection(ctx context.Context, id string) (domain.Deck, error)
	RecordSectionPlay(ctx context.Context, id string) (domain.Section, domain.Deck, error)

	// conversations
	CreateConversation(ctx context.Context, conversation domain.Conversation) error
	GetConversation(ctx context.Context, id string) (domain.Conversation, bool, error)
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	UpdateConversation(ctx context.Context, id string, upd ConversationUpdate) (domain.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	DeleteConversation(ctx context.Context, id string) error

	// messages
	AppendMessage(ctx context.Context, msg domain.Message) error
	GetMessage(ctx context.Context, id string) (domain.Message, bool, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	// SetMessageTranslation and SetMessageAudio only write empty columns and
	// return the stored row either way.
	SetMessageTranslation(ctx context.Context, id, translation string) (domain.Message, error)
	SetMessageAudio(ctx context.Context, id, audioUUID, audioPath string) (domain.Message, error)

	Ping(ctx context.Context) error
}
