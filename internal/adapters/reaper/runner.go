// Package reaper wires the job reaper to a Postgres job store.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/data"
	"github.com/schoolcrm/enrichment/internal/observability/metrics"
	"github.com/schoolcrm/enrichment/internal/service"
)

// RunnerOptions holds the dependencies for creating a Runner.
// Repo takes precedence over DB when both are set.
type RunnerOptions struct {
	DB      *sql.DB
	Repo    core.JobMaintenanceRepository
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Runner runs the reaper either as a loop or as a single sweep.
type Runner struct {
	svc    *service.ReaperService
	logger *slog.Logger
}

// NewRunner builds the reaper service over the job store.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	repo := opts.Repo
	if repo == nil {
		if opts.DB == nil {
			return nil, errors.New("database connection is required")
		}
		repo = data.NewJobRepo(opts.DB, data.RepoConfig{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    repo,
		Config:  opts.Config,
		Logger:  logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("reaper service: %w", err)
	}
	return &Runner{svc: svc, logger: logger}, nil
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	return r.svc.Run(ctx)
}

// RunOnce performs a single sweep and logs its totals.
func (r *Runner) RunOnce(ctx context.Context) (service.SweepReport, error) {
	rep, err := r.svc.RunOnce(ctx)
	r.logger.InfoContext(ctx, "reaper sweep finished",
		"requeued", rep.Requeued,
		"failed", rep.Failed,
		"deleted_completed", rep.DeletedCompleted,
		"deleted_failed", rep.DeletedFailed,
	)
	return rep, err
}
