package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/loanrisk/internal/domain"
	"github.com/opensource-finance/loanrisk/internal/metrics"
	"github.com/opensource-finance/loanrisk/internal/scoring"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server. repo, cache, bus and m may be nil;
// the endpoints needing them then answer 503.
func NewServer(cfg *domain.Config, orch *scoring.Orchestrator, repo domain.Repository, cache domain.Cache, bus domain.EventBus, m *metrics.Metrics, version string) *Server {
	handler := NewHandler(orch, repo, cache, bus, version)
	if cfg.Cache.DecisionTTL > 0 {
		handler.decisionTTL = cfg.Cache.DecisionTTL
	}
	handler.async = bus != nil && cfg.Worker.Enabled

	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware(cfg.Server.CORSOrigins)) // CORS for browser clients
	router.Use(RecoverMiddleware)                      // Recover from panics
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware) // OpenTelemetry tracing
	} else {
		router.Use(RequestIDMiddleware)
	}
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	router.Get("/", handler.Root)

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)
	if m != nil {
		router.Handle("/metrics", m.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		// Scoring
		r.With(RateLimitMiddleware(cache, cfg.RateLimit.Requests, cfg.RateLimit.Window)).
			Post("/predict", handler.Predict)

		// Decision records
		r.Get("/applications", handler.ListApplications)
		r.Post("/applications", handler.SubmitApplication)
		r.Get("/applications/{id}", handler.GetApplication)
		r.Get("/stats", handler.Stats)

		// Model artifacts
		r.Get("/model", handler.ModelInfo)
		r.Post("/model/reload", handler.ReloadModel)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg.Server,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
