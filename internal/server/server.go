// Package server provides the HTTP API: search, assistant requests and conversation reads.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hyperjump/biznesinfo/internal/assistant"
	"github.com/hyperjump/biznesinfo/internal/config"
	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/internal/ratelimit"
	"github.com/hyperjump/biznesinfo/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Searcher resolves company searches.
type Searcher interface {
	Search(ctx context.Context, q models.SearchQuery) *models.SearchResult
}

// Asker handles assistant requests.
type Asker interface {
	Ask(ctx context.Context, req *assistant.Request) (*assistant.Reply, error)
}

// HealthFunc reports component status for /health.
type HealthFunc func(ctx context.Context) map[string]string

// Deps are the server's collaborators. Limiter and Health may be nil.
type Deps struct {
	Search    Searcher
	Store     storage.Store
	Assistant Asker
	Limiter   *ratelimit.Limiter
	Health    HealthFunc
}

// Server is the HTTP server for the biznesinfo API.
type Server struct {
	deps   Deps
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.Config, logger *zap.Logger) *Server {
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, config: cfg, logger: logger}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(time.Duration(s.config.Server.RequestTimeout) * time.Second))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", s.config.Auth.UserHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: s.allowCredentials(),
		MaxAge:           300,
	}))

	rl := s.config.RateLimit
	limit := func(class string, rc config.RuleConfig, key ratelimit.KeyFunc) func(http.Handler) http.Handler {
		rule := ratelimit.Rule{Class: class, Limit: rc.Limit, Window: time.Duration(rc.WindowMs) * time.Millisecond}
		return ratelimit.Middleware(s.deps.Limiter, rule, key, s.logger)
	}

	r.With(limit("search", rl.Search, nil)).Get("/search", s.handleSearch)
	r.Group(func(r chi.Router) {
		r.Use(s.identify)
		r.With(requireIdentity, limit("conversation", rl.Conversation, userKey)).
			Get("/conversation/{sessionId}", s.handleGetConversation)
		r.With(requireIdentity, limit("assistant", rl.Assistant, userKey)).
			Post("/assistant", s.handleAssistant)
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.config.Server.CORSOrigins) > 0 {
		return s.config.Server.CORSOrigins
	}
	return []string{"*"}
}

// allowCredentials is true only for an explicit origin list without wildcards.
func (s *Server) allowCredentials() bool {
	if len(s.config.Server.CORSOrigins) == 0 {
		return false
	}
	for _, o := range s.config.Server.CORSOrigins {
		if strings.Contains(o, "*") {
			return false
		}
	}
	return true
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
