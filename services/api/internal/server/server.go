package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"langu/internal/ratelimit"
	"langu/internal/util"
	"langu/services/api/internal/app"
)

const (
	defaultMaxImportBytes = 10 << 20
	maxJSONBodyBytes      = 1 << 20
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                *app.App
	CORSAllowedOrigins []string
	TrustedProxies     []string
	// RedisAddr enables rate limiting of provider-backed routes; empty
	// disables it.
	RedisAddr          string
	RedisPassword      string
	RateLimitPerMinute int
	MaxImportBytes     int64
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	limiter        *ratelimit.FixedWindowLimiter
	trusted        *util.TrustedProxies
	corsOrigins    []string
	maxImportBytes int64
	router         chi.Router
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app required")
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		trusted:        trusted,
		corsOrigins:    cfg.CORSAllowedOrigins,
		maxImportBytes: cfg.MaxImportBytes,
	}
	if s.maxImportBytes <= 0 {
		s.maxImportBytes = defaultMaxImportBytes
	}
	if cfg.RedisAddr != "" {
		limit := cfg.RateLimitPerMinute
		if limit <= 0 {
			limit = 30
		}
		s.limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "langu:api:ratelimit", limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init rate limiter: %w", err)
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases the rate limiter connection.
func (s *Server) Close() error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Close()
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(util.WithRequestID)
	r.Use(util.WithRequestLog)
	r.Use(middleware.Recoverer)
	r.Use(util.WithSecurityHeaders)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", util.RequestIDHeader},
			ExposedHeaders:   []string{util.RequestIDHeader, "Retry-After"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/decks", func(r chi.Router) {
			r.Get("/", s.handleListDecks)
			r.Post("/", s.handleCreateDeck)
			r.Route("/{deckID}", func(r chi.Router) {
				r.Get("/", s.handleGetDeck)
				r.Patch("/", s.handleUpdateDeck)
				r.Delete("/", s.handleDeleteDeck)
				r.Get("/playlist", s.handlePlaylist)
				r.Post("/import", s.handleImport)
				r.Post("/sections", s.handleCreateSection)
				r.Put("/sections/order", s.handleReorderSections)
			})
		})
		r.Route("/sections/{sectionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSection)
			r.Patch("/", s.handleUpdateSection)
			r.Delete("/", s.handleDeleteSection)
			r.Post("/play", s.handleRecordPlay)
			r.Get("/audio", s.handleSectionAudio)
		})
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.handleListConversations)
			r.Post("/", s.handleStartConversation)
			r.Route("/{conversationID}", func(r chi.Router) {
				r.Get("/", s.handleGetConversation)
				r.Patch("/", s.handleUpdateConversation)
				r.Delete("/", s.handleDeleteConversation)
				r.With(s.rateLimit("messages")).Post("/messages", s.handlePostMessage)
			})
		})
		r.Route("/messages/{messageID}", func(r chi.Router) {
			r.With(s.rateLimit("translation")).Post("/translation", s.handleTranslateMessage)
			r.With(s.rateLimit("message-audio")).Get("/audio", s.handleMessageAudio)
		})
		r.Route("/words", func(r chi.Router) {
			r.Get("/files", s.handleWordsFiles)
			r.Post("/suggest", s.handleSuggestWords)
			r.Post("/validate", s.handleValidatePhrase)
		})
	})
	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := http.StatusOK
	body := map[string]string{"status": "ok", "database": "ok", "words": "ok"}
	if err := s.app.Ping(ctx); err != nil {
		util.LoggerFromContext(ctx).Warn("health check database failed", "err", err)
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = "unavailable"
	}
	// The word service only degrades turns, so it never fails the check.
	if _, err := s.app.WordsHealth(ctx); err != nil {
		body["words"] = "unavailable"
	}
	writeJSON(w, status, body)
}

// rateLimit throttles routes that call paid providers, keyed by client IP.
// Without a limiter the routes are unthrottled.
func (s *Server) rateLimit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.allow(w, r, scope) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// allow charges one request against scope, writing the 429 itself when the
// budget is spent.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, scope string) bool {
	if s.limiter == nil {
		return true
	}
	decision, err := s.limiter.Allow(r.Context(), scope, util.ClientIP(r, s.trusted))
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("rate limiter unavailable", "scope", scope, "err", err)
	}
	if !decision.Allowed {
		retry := int(decision.RetryAfter.Round(time.Second) / time.Second)
		if retry < 1 {
			retry = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests")
		return false
	}
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	return true
}
