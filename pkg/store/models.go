package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type DeckModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Description  string
	PlayCount    int       `gorm:"not null;default:0"`
	LanguageCode string    `gorm:"not null"`
	LanguageName string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

type SectionModel struct {
	ID          string    `gorm:"primaryKey"`
	DeckID      string    `gorm:"not null;index:idx_section_deck_position,priority:1"`
	ForeignText string    `gorm:"type:text;not null"`
	EnglishText string    `gorm:"type:text;not null"`
	AudioPath   string    `gorm:"not null;default:''"`
	Position    int       `gorm:"not null;index:idx_section_deck_position,priority:2"`
	PlayCount   int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

type ConversationModel struct {
	ID        string `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	WordsFile string
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index"`
}

type MessageModel struct {
	ID              string `gorm:"primaryKey"`
	ConversationID  string `gorm:"not null;index:idx_message_conversation_created,priority:1"`
	Role            string `gorm:"not null"`
	Content         string `gorm:"type:text;not null"`
	ConfidenceLevel *float64
	Translation     string `gorm:"type:text;not null;default:''"`
	AudioPath       string `gorm:"not null;default:''"`
	AudioUUID       string `gorm:"column:audio_uuid;not null;default:''"`
	Vocabulary      datatypes.JSON
	CreatedAt       time.Time `gorm:"not null;index:idx_message_conversation_created,priority:2"`
}
