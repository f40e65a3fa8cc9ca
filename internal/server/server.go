// Package server provides the HTTP API for reelmatch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/reelmatch/internal/config"
	"github.com/hyperjump/reelmatch/internal/metrics"
	"github.com/hyperjump/reelmatch/internal/models"
)

// Recommender answers recommendation and title search requests.
type Recommender interface {
	Recommend(ctx context.Context, title string) ([]models.Recommendation, error)
	Similar(ctx context.Context, title string, k int) ([]models.SimilarMovie, error)
	Search(ctx context.Context, q models.SearchQuery) ([]string, error)
	Suggest(ctx context.Context, title string) []string
}

// PosterChecker resolves a single poster for the diagnostic endpoint.
type PosterChecker interface {
	Resolve(ctx context.Context, movieID string) string
	IsPlaceholder(url string) bool
}

// CatalogInfo describes the loaded catalog for /health.
type CatalogInfo interface {
	Len() int
	Version() string
}

// StaleReporter reports whether catalog artifacts changed on disk since load.
type StaleReporter interface {
	Stale() bool
}

// Server is the HTTP server for the reelmatch API.
type Server struct {
	recommender Recommender
	posters     PosterChecker
	catalog     CatalogInfo
	stale       StaleReporter
	artifacts   []string
	config      *config.ServerConfig
	validate    *validator.Validate
	logger      *zap.Logger
	server      *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithStaleReporter reports artifact staleness on /health.
func WithStaleReporter(r StaleReporter) Option {
	return func(s *Server) {
		s.stale = r
	}
}

// WithArtifacts lists artifact paths whose size and presence /health reports.
func WithArtifacts(paths ...string) Option {
	return func(s *Server) {
		s.artifacts = append(s.artifacts, paths...)
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(
	rec Recommender,
	posters PosterChecker,
	catalog CatalogInfo,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		recommender: rec,
		posters:     posters,
		catalog:     catalog,
		config:      cfg,
		validate:    validator.New(),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.config.RateLimitRequests > 0 {
		r.Use(httprate.LimitByIP(s.config.RateLimitRequests, s.config.RateLimitWindow))
	}
	r.Use(middleware.Compress(5))

	r.Post("/recommend", s.handleRecommend)
	r.Get("/search", s.handleSearch)
	r.Get("/similar", s.handleSimilar)
	r.Get("/test_poster/{movie_id}", s.handleTestPoster)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
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

// instrument records request counts and latency by route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, route, status, time.Since(start))
	})
}
