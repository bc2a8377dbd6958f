package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"langu/internal/audiocache"
	"langu/pkg/ai"
	"langu/pkg/domain"
	"langu/pkg/store"
	"langu/pkg/words"
)

const (
	defaultConversationTitle = "New conversation"
	defaultHistoryWindow     = 4
	defaultTemperature       = 0.7
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Audio       *audiocache.Manager
	Completer   ai.Completer
	Words       words.Service
	// WordsDir holds the curated word lists; empty disables file checks.
	WordsDir               string
	TopK                   int
	HistoryWindow          int
	Temperature            *float64
	EnglishVoice           domain.Voice
	DefaultForeignLanguage string
	// Now is overridable in tests.
	Now func() time.Time
}

// App is the core application service wiring together storage, the audio
// cache and the conversation providers.
type App struct {
	store           store.Store
	audio           *audiocache.Manager
	completer       ai.Completer
	words           words.Service
	wordsDir        string
	topK            int
	historyWindow   int
	temperature     float64
	englishVoice    domain.Voice
	defaultLanguage string
	now             func() time.Time

	clockMu sync.Mutex
	last    time.Time
}

// New constructs the application. A nil Store is opened from DatabaseURL.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
	}
	if cfg.Audio == nil {
		return nil, fmt.Errorf("audio cache required")
	}
	if cfg.Completer == nil {
		return nil, fmt.Errorf("completer required")
	}
	if cfg.Words == nil {
		return nil, fmt.Errorf("words service required")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = words.DefaultTopK
	}
	historyWindow := cfg.HistoryWindow
	if historyWindow <= 0 {
		historyWindow = defaultHistoryWindow
	}
	temperature := defaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	englishVoice := cfg.EnglishVoice
	if strings.TrimSpace(englishVoice.LanguageCode) == "" {
		englishVoice.LanguageCode = "en-US"
	}
	defaultLanguage := strings.TrimSpace(cfg.DefaultForeignLanguage)
	if defaultLanguage == "" {
		defaultLanguage = "de-DE"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &App{
		store:           dataStore,
		audio:           cfg.Audio,
		completer:       cfg.Completer,
		words:           cfg.Words,
		wordsDir:        strings.TrimSpace(cfg.WordsDir),
		topK:            topK,
		historyWindow:   historyWindow,
		temperature:     temperature,
		englishVoice:    englishVoice,
		defaultLanguage: defaultLanguage,
		now:             now,
	}, nil
}

// Ping reports whether the database answers.
func (a *App) Ping(ctx context.Context) error {
	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// WordsHealth reports the word-relevance service status.
func (a *App) WordsHealth(ctx context.Context) (words.Health, error) {
	health, err := a.words.Health(ctx)
	if err != nil {
		return words.Health{}, fmt.Errorf("words health: %w", err)
	}
	return health, nil
}

// timestamp returns the current time in the precision the store keeps,
// strictly increasing within the process so messages never share a
// creation time.
func (a *App) timestamp() time.Time {
	a.clockMu.Lock()
	defer a.clockMu.Unlock()
	t := a.now().UTC().Truncate(time.Microsecond)
	if !t.After(a.last) {
		t = a.last.Add(time.Microsecond)
	}
	a.last = t
	return t
}
