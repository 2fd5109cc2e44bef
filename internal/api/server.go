// Package api exposes the HTTP surface: explanation reads, verification
// requests, and model observability.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quicklearn/quicklearn/internal/cache"
	"github.com/quicklearn/quicklearn/internal/model"
	"github.com/quicklearn/quicklearn/internal/router"
)

// RateLimiter gates requests per caller. Implemented by the Redis cache;
// a nil limiter disables limiting.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, callerKey string, limit int64, window time.Duration) bool
}

// UsageReader reports per-model rolling counters.
type UsageReader interface {
	ModelCounters(ctx context.Context, modelNames []string) []cache.ModelUsage
}

// ChainInfo is the slice of the router the API needs for GET /api/models.
type ChainInfo interface {
	Chain() []model.ModelConfig
	Quarantine() *router.Quarantine
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Config tunes the HTTP server.
type Config struct {
	RateLimitPerMin int
	RequestTimeout  time.Duration
}

// Server holds the handler dependencies.
type Server struct {
	svc     ExplainService
	chain   ChainInfo
	usage   UsageReader
	limiter RateLimiter
	health  HealthChecker
	cfg     Config
}

// NewServer wires the API. usage, limiter, and health may be nil; the
// corresponding features degrade gracefully.
func NewServer(svc ExplainService, chain ChainInfo, usage UsageReader, limiter RateLimiter, health HealthChecker, cfg Config) *Server {
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 60
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	return &Server{
		svc:     svc,
		chain:   chain,
		usage:   usage,
		limiter: limiter,
		health:  health,
		cfg:     cfg,
	}
}

// Routes builds the chi router with middleware and all endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/explain", s.handleExplain)
		r.Post("/verify", s.handleRequestVerification)
		r.Get("/verify/{jobID}", s.handleVerificationStatus)
		r.Get("/models", s.handleModels)
		r.Get("/top", s.handleTopExplanations)
	})

	return r
}

// rateLimit applies the fixed-window limit keyed by client IP. With no
// limiter configured, requests pass through.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			if !s.limiter.CheckRateLimit(r.Context(), r.RemoteAddr, int64(s.cfg.RateLimitPerMin), time.Minute) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
