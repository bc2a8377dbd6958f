package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// AudioVariant selects which side of a section is spoken.
type AudioVariant string

const (
	VariantForeign AudioVariant = "foreign"
	VariantEnglish AudioVariant = "english"
	// VariantMessage is used for conversation message audio.
	VariantMessage AudioVariant = "message"
)

func (v AudioVariant) Valid() bool {
	switch v {
	case VariantForeign, VariantEnglish, VariantMessage:
		return true
	}
	return false
}

// OwnerKind names the record an audio artifact belongs to.
type OwnerKind string

const (
	OwnerSection OwnerKind = "section"
	OwnerMessage OwnerKind = "message"
)

type Deck struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	PlayCount    int       `json:"playCount"`
	LanguageCode string    `json:"languageCode"`
	LanguageName string    `json:"languageName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Section struct {
	ID          string    `json:"id"`
	DeckID      string    `json:"deckId"`
	ForeignText string    `json:"foreignText"`
	EnglishText string    `json:"englishText"`
	AudioPath   string    `json:"audioPath,omitempty"`
	Position    int       `json:"position"`
	PlayCount   int       `json:"playCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	WordsFile string    `json:"wordsFile,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Message struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversationId"`
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	ConfidenceLevel *float64  `json:"confidenceLevel,omitempty"`
	Translation     string    `json:"translation,omitempty"`
	AudioPath       string    `json:"audioPath,omitempty"`
	AudioUUID       string    `json:"audioUuid,omitempty"`
	Vocabulary      []string  `json:"vocabulary,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Voice identifies a synthesis voice. An empty Name means the provider
// default for LanguageCode.
type Voice struct {
	LanguageCode string `json:"languageCode" yaml:"languageCode"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Slug is the voice component of a cache key.
func (v Voice) Slug() string {
	name := strings.TrimSpace(v.Name)
	if name == "" {
		name = "default"
	}
	return strings.TrimSpace(v.LanguageCode) + "_" + name
}

// PlaylistItem is one foreign/native pair ready for sequenced playback.
type PlaylistItem struct {
	SectionID   string `json:"sectionId"`
	Position    int    `json:"position"`
	ForeignText string `json:"foreignText"`
	EnglishText string `json:"englishText"`
	PlayCount   int    `json:"playCount"`
	ForeignURL  string `json:"foreignUrl"`
	EnglishURL  string `json:"englishUrl"`
}

// Turn is the result of advancing a conversation by one utterance.
type Turn struct {
	UserMessage      Message `json:"userMessage"`
	AssistantMessage Message `json:"assistantMessage"`
}
