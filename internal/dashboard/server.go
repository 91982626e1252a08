// Package dashboard serves the web UI and JSON API over the pipeline's
// stored artifacts and in-flight run statuses.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/config"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/dashboard/views"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/metrics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/pipeline"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/storage"
)

// Server is the dashboard HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	cfg        *config.Config
	paths      storage.Paths
	runner     *pipeline.Runner
	statuses   *pipeline.StatusStore
	metrics    *metrics.Metrics
	views      *views.Engine
	logger     *slog.Logger
}

// NewServer creates the dashboard server
func NewServer(cfg *config.Config, paths storage.Paths, runner *pipeline.Runner, statuses *pipeline.StatusStore, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	engine, err := views.New()
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		cfg:      cfg,
		paths:    paths,
		runner:   runner,
		statuses: statuses,
		metrics:  m,
		views:    engine,
		logger:   logger,
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.HTTPMiddleware)

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Get("/create", s.handleCreateForm)
	s.router.Post("/create", s.handleCreate)
	s.router.Get("/campaigns/{campaignID}", s.handleCampaignDetail)
	s.router.Get("/status/{campaignID}", s.handleStatusPage)

	// JSON API
	s.router.Get("/api/campaigns", s.handleAPICampaigns)
	s.router.Get("/api/status/{campaignID}", s.handleAPIStatus)
	s.router.Get("/api/performance/{campaignID}", s.handleAPIPerformance)

	s.router.Get("/health", s.handleHealth)

	if s.cfg.Metrics.Enabled && s.metrics != nil {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting dashboard server", "addr", s.cfg.Server.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down dashboard server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"bytes", ww.BytesWritten(),
			"remote_addr", r.RemoteAddr,
		)
	})
}
