package playback

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"langu/pkg/domain"
)

// Settings are the learner's playback preferences.
type Settings struct {
	ServerURL    string       `yaml:"serverURL"`
	ForeignVoice domain.Voice `yaml:"foreignVoice"`
	EnglishVoice domain.Voice `yaml:"englishVoice"`
	PauseFactor  float64      `yaml:"pauseFactor"`
	Player       string       `yaml:"player"`
	PlayerArgs   []string     `yaml:"playerArgs"`
}

// DefaultSettings is what a fresh install starts from.
func DefaultSettings() Settings {
	return Settings{
		ServerURL:    "http://localhost:8080",
		EnglishVoice: domain.Voice{LanguageCode: "en-US"},
		PauseFactor:  DefaultPauseFactor,
		Player:       DefaultPlayerCommand,
	}
}

// SettingsStore persists Settings for the caller that owns them.
type SettingsStore interface {
	Load() (Settings, error)
	Save(Settings) error
}

// YAMLSettingsStore keeps Settings in a YAML file.
type YAMLSettingsStore struct {
	path string
	mu   sync.Mutex
}

func NewYAMLSettingsStore(path string) *YAMLSettingsStore {
	return &YAMLSettingsStore{path: path}
}

// DefaultSettingsPath is ~/.config/langu/settings.yaml or the platform
// equivalent.
func DefaultSettingsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "langu", "settings.yaml"), nil
}

// Load returns the stored settings over the defaults. A missing file yields
// the defaults.
func (s *YAMLSettingsStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings := DefaultSettings()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if settings.PauseFactor <= 0 {
		settings.PauseFactor = DefaultPauseFactor
	}
	if strings.TrimSpace(settings.EnglishVoice.LanguageCode) == "" {
		settings.EnglishVoice.LanguageCode = "en-US"
	}
	return settings, nil
}

// Save writes settings atomically.
func (s *YAMLSettingsStore) Save(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create settings temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
