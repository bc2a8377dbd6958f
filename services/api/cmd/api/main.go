package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"langu/internal/audiocache"
	"langu/internal/util"
	"langu/pkg/ai"
	"langu/pkg/speech"
	"langu/pkg/storage"
	"langu/pkg/store"
	"langu/pkg/words"
	"langu/services/api/internal/app"
	"langu/services/api/internal/config"
	"langu/services/api/internal/server"
)

func main() {
	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		util.Fatal("failed to load config", "err", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		util.Fatal("failed to init store", "err", err)
	}
	defer dataStore.Close()

	blobs, err := newBlobStore(cfg)
	if err != nil {
		util.Fatal("failed to init audio cache", "backend", cfg.AudioBackend, "err", err)
	}
	tts, err := speech.NewGoogleClient(cfg.TTSAPIKey, cfg.TTSBaseURL, cfg.SynthesisTimeout())
	if err != nil {
		util.Fatal("failed to init synthesizer", "err", err)
	}
	kind, err := ai.ParseProviderKind(cfg.CompletionProvider)
	if err != nil {
		util.Fatal("invalid completion provider", "err", err)
	}
	completer, err := ai.NewClient(ai.Config{
		Kind:    kind,
		BaseURL: cfg.CompletionBaseURL,
		APIKey:  cfg.CompletionAPIKey,
		Model:   cfg.CompletionModel,
		Timeout: cfg.CompletionTimeout(),
	})
	if err != nil {
		util.Fatal("failed to init completion client", "err", err)
	}
	temperature := cfg.CompletionTemperature()

	appCore, err := app.New(app.Config{
		Store:                  dataStore,
		Audio:                  audiocache.New(blobs, tts, cfg.SynthesisTimeout()),
		Completer:              completer,
		Words:                  words.NewClient(cfg.WordsServiceURL, cfg.WordsTimeout()),
		WordsDir:               cfg.WordsDir,
		TopK:                   cfg.TopK,
		HistoryWindow:          cfg.HistoryWindow,
		Temperature:            &temperature,
		EnglishVoice:           cfg.EnglishVoice,
		DefaultForeignLanguage: cfg.DefaultForeignLanguage,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	httpServer, err := server.New(server.Config{
		App:                appCore,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies:     cfg.TrustedProxies,
		RedisAddr:          cfg.RedisAddr,
		RedisPassword:      cfg.RedisPassword,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxImportBytes:     cfg.MaxImportBytes,
	})
	if err != nil {
		util.Fatal("failed to init server", "err", err)
	}
	defer httpServer.Close()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Turns wait on the completion provider.
		WriteTimeout: cfg.CompletionTimeout() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening",
			"addr", addr,
			"completion_provider", kind,
			"audio_backend", cfg.AudioBackend,
			"rate_limit", cfg.RedisAddr != "",
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "err", err)
		}
	}
}

func newBlobStore(cfg config.FileConfig) (storage.BlobStore, error) {
	if cfg.AudioBackend == "minio" {
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewFileStore(cfg.AudioCacheDir)
}
