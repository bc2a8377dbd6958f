package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"langu/pkg/ai"
	"langu/pkg/domain"
)

// ConfigPath is the default config location; LANGU_CONFIG overrides it.
var ConfigPath = "config.yaml"

// ResolvePath returns the config path to load.
func ResolvePath() string {
	if v := strings.TrimSpace(os.Getenv("LANGU_CONFIG")); v != "" {
		return v
	}
	return ConfigPath
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port               string   `yaml:"port"`
	LogLevel           string   `yaml:"logLevel"`
	DatabaseURL        string   `yaml:"databaseURL"`
	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`
	TrustedProxies     []string `yaml:"trustedProxies"`

	RedisAddr          string `yaml:"redisAddr"`
	RedisPassword      string `yaml:"redisPassword"`
	RateLimitPerMinute int    `yaml:"rateLimitPerMinute"`

	AudioBackend   string `yaml:"audioBackend"` // file | minio
	AudioCacheDir  string `yaml:"audioCacheDir"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	TTSAPIKey               string       `yaml:"ttsAPIKey"`
	TTSBaseURL              string       `yaml:"ttsBaseURL"`
	SynthesisTimeoutSeconds int          `yaml:"synthesisTimeoutSeconds"`
	EnglishVoice            domain.Voice `yaml:"englishVoice"`
	DefaultForeignLanguage  string       `yaml:"defaultForeignLanguage"`

	CompletionProvider       string   `yaml:"completionProvider"` // ollama | openai | gemini
	CompletionBaseURL        string   `yaml:"completionBaseURL"`
	CompletionAPIKey         string   `yaml:"completionAPIKey"`
	CompletionModel          string   `yaml:"completionModel"`
	CompletionTimeoutSeconds int      `yaml:"completionTimeoutSeconds"`
	Temperature              *float64 `yaml:"temperature"`

	WordsServiceURL     string `yaml:"wordsServiceURL"`
	WordsTimeoutSeconds int    `yaml:"wordsTimeoutSeconds"`
	WordsDir            string `yaml:"wordsDir"`
	TopK                int    `yaml:"topK"`
	HistoryWindow       int    `yaml:"historyWindow"`

	MaxImportBytes int64 `yaml:"maxImportBytes"`
}

const defaultTemperature = 0.7

// SynthesisTimeout returns the per-call TTS bound.
func (c FileConfig) SynthesisTimeout() time.Duration {
	return time.Duration(c.SynthesisTimeoutSeconds) * time.Second
}

func (c FileConfig) CompletionTimeout() time.Duration {
	return time.Duration(c.CompletionTimeoutSeconds) * time.Second
}

func (c FileConfig) WordsTimeout() time.Duration {
	return time.Duration(c.WordsTimeoutSeconds) * time.Second
}

// CompletionTemperature returns the configured sampling temperature.
func (c FileConfig) CompletionTemperature() float64 {
	if c.Temperature == nil {
		return defaultTemperature
	}
	return *c.Temperature
}

// Load reads config from path (defaults to config.yaml). A .env file next to
// the config is loaded first; variables already set in the process win.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("LANGU_PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("AUDIO_BACKEND"); v != "" {
		cfg.AudioBackend = v
	}
	if v := os.Getenv("AUDIO_CACHE_DIR"); v != "" {
		cfg.AudioCacheDir = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("TTS_API_KEY"); v != "" {
		cfg.TTSAPIKey = v
	}
	if v := os.Getenv("COMPLETION_PROVIDER"); v != "" {
		cfg.CompletionProvider = v
	}
	if v := os.Getenv("COMPLETION_BASE_URL"); v != "" {
		cfg.CompletionBaseURL = v
	}
	if v := os.Getenv("COMPLETION_API_KEY"); v != "" {
		cfg.CompletionAPIKey = v
	}
	if v := os.Getenv("COMPLETION_MODEL"); v != "" {
		cfg.CompletionModel = v
	}
	if v := os.Getenv("COMPLETION_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Temperature = &f
		}
	}
	if v := os.Getenv("WORDS_SERVICE_URL"); v != "" {
		cfg.WordsServiceURL = v
	}
	// An empty WORDS_DIR leaves words-file checks to the words service.
	if v, ok := os.LookupEnv("WORDS_DIR"); ok {
		cfg.WordsDir = strings.TrimSpace(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AudioBackend == "" {
		cfg.AudioBackend = "file"
	}
	if cfg.AudioCacheDir == "" {
		cfg.AudioCacheDir = "data/audio"
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 30
	}
	if cfg.SynthesisTimeoutSeconds <= 0 {
		cfg.SynthesisTimeoutSeconds = 30
	}
	if cfg.CompletionTimeoutSeconds <= 0 {
		cfg.CompletionTimeoutSeconds = 120
	}
	if cfg.WordsTimeoutSeconds <= 0 {
		cfg.WordsTimeoutSeconds = 5
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 80
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 4
	}
	if cfg.EnglishVoice.LanguageCode == "" {
		cfg.EnglishVoice.LanguageCode = "en-US"
	}
	if cfg.DefaultForeignLanguage == "" {
		cfg.DefaultForeignLanguage = "de-DE"
	}
	if cfg.MaxImportBytes <= 0 {
		cfg.MaxImportBytes = 10 << 20
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or LANGU_PORT)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.TTSAPIKey == "" {
		return errors.New("config: ttsAPIKey is required (set in config.yaml or TTS_API_KEY)")
	}
	kind, err := ai.ParseProviderKind(cfg.CompletionProvider)
	if err != nil {
		return fmt.Errorf("config: completionProvider: %w", err)
	}
	if cfg.CompletionModel == "" {
		return errors.New("config: completionModel is required (set in config.yaml or COMPLETION_MODEL)")
	}
	if kind == ai.ProviderGemini && cfg.CompletionAPIKey == "" {
		return errors.New("config: completionAPIKey is required for gemini (set in config.yaml or COMPLETION_API_KEY)")
	}
	if t := cfg.CompletionTemperature(); t < 0 || t > 2 {
		return fmt.Errorf("config: temperature must be within [0, 2], got %v", t)
	}
	if cfg.WordsServiceURL == "" {
		return errors.New("config: wordsServiceURL is required (set in config.yaml or WORDS_SERVICE_URL)")
	}
	switch cfg.AudioBackend {
	case "file":
	case "minio":
		if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint, minioAccessKey, minioSecretKey and minioBucket are required when audioBackend is minio")
		}
	default:
		return fmt.Errorf("config: audioBackend must be file or minio, got %q", cfg.AudioBackend)
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
