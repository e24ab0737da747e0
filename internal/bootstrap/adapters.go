package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/adapters/llm/gemini"
	"github.com/schoolcrm/enrichment/internal/adapters/llm/openrouter"
	"github.com/schoolcrm/enrichment/internal/adapters/reaper"
	schedrunner "github.com/schoolcrm/enrichment/internal/adapters/scheduler"
	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/observability/metrics"
)

// ModelPorts are the external model clients the stage handlers call.
type ModelPorts struct {
	Router   core.ModelRouter
	Embedder core.Embedder
}

// NewModelPorts builds the OpenRouter classifier and the Gemini embedder.
func NewModelPorts(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (ModelPorts, error) {
	router, err := openrouter.New(cfg.Router, openrouter.Options{Logger: logger})
	if err != nil {
		return ModelPorts{}, fmt.Errorf("create model router: %w", err)
	}
	embedder, err := gemini.New(ctx, cfg.Embedder, logger)
	if err != nil {
		return ModelPorts{}, fmt.Errorf("create embedder: %w", err)
	}
	return ModelPorts{Router: router, Embedder: embedder}, nil
}

// WorkerConfig contains configuration for the cron-driven worker.
type WorkerConfig struct {
	Orchestrator schedrunner.Orchestrator
	Config       config.WorkerConfig
	Logger       *slog.Logger
}

// RunWorker ticks the orchestrator for every configured worker group until ctx is done.
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	runner, err := schedrunner.NewRunner(schedrunner.RunnerOptions{
		Orchestrator: cfg.Orchestrator,
		Config:       cfg.Config,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create worker runner: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics metrics.Recorder
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
