// Package app wires the pipeline components together behind the dashboard
// server and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/analytics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/config"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/content"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/crm"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/dashboard"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/llm"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/metrics"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/pipeline"
	"github.com/EverlynZhang/Marketing-Pipeline-main/internal/storage"
)

const collectInterval = 15 * time.Second

// App is the main application
type App struct {
	config    *config.Config
	paths     storage.Paths
	contacts  *crm.Store
	crm       *crm.Client
	statuses  *pipeline.StatusStore
	runner    *pipeline.Runner
	dashboard *dashboard.Server
	metrics   *metrics.Metrics
	collector *metrics.Collector
	logger    *slog.Logger
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	paths := storage.NewPaths(cfg.Data.Dir)
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to prepare data directories: %w", err)
	}

	m := metrics.New()
	metrics.SetGlobal(m)
	collector := metrics.NewCollector(m, paths, collectInterval)

	contacts, err := crm.OpenStore(filepath.Join(cfg.Data.Dir, "contacts.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open contact store: %w", err)
	}

	prompter := llm.NewAnthropic(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	generator := content.NewGenerator(prompter, cfg, logger.With("component", "content"))
	crmClient := crm.NewClient(cfg, logger.With("component", "crm"))
	analyzer := analytics.NewAnalyzer(prompter, cfg, paths, logger.With("component", "analytics"))

	statuses := pipeline.NewStatusStore()
	runner := pipeline.NewRunner(cfg, generator, crmClient, analyzer, contacts, paths, statuses,
		logger.With("component", "pipeline"))

	server, err := dashboard.NewServer(cfg, paths, runner, statuses, m, logger.With("component", "dashboard"))
	if err != nil {
		contacts.Close()
		return nil, fmt.Errorf("failed to create dashboard server: %w", err)
	}

	return &App{
		config:    cfg,
		paths:     paths,
		contacts:  contacts,
		crm:       crmClient,
		statuses:  statuses,
		runner:    runner,
		dashboard: server,
		metrics:   m,
		collector: collector,
		logger:    logger,
	}, nil
}

// Run starts all components and waits for shutdown
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting marketing pipeline",
		"addr", a.config.Server.ListenAddr,
		"data_dir", a.config.Data.Dir,
		"crm_mode", a.crm.Mode(),
		"metrics", a.config.Metrics.Enabled,
	)

	// Create context that listens for signals
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a.collector.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.dashboard.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("dashboard server: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("server error", "error", err)
		cancel()
	}

	return a.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.dashboard.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("dashboard shutdown error", "error", err)
	}

	a.collector.Stop()

	if err := a.contacts.Close(); err != nil {
		a.logger.Error("contact store close error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
