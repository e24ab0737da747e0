package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schoolcrm/enrichment/config"
)

// shutdownGrace bounds how long components get to return after the first of
// them stops or the process is signalled.
const shutdownGrace = 15 * time.Second

// ServiceOrchestrationConfig contains what RunServices starts.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// component is one long-running part of the process selected by SERVICES.
// run must return once ctx is done.
type component struct {
	mode config.ServiceMode
	run  func(ctx context.Context) error
}

// RunServices runs every enabled component until ctx is cancelled or one of
// them fails, then waits for the rest to stop. A cancelled ctx is a clean exit.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	comps, err := components(cfg, logger)
	if err != nil {
		return err
	}
	return runComponents(ctx, logger, comps, shutdownGrace)
}

func components(cfg *ServiceOrchestrationConfig, logger *slog.Logger) ([]component, error) {
	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return nil, fmt.Errorf("determine enabled services: %w", err)
	}

	all := []component{
		{
			mode: config.ServiceModeHTTP,
			run: func(ctx context.Context) error {
				return serveHTTP(ctx, newHTTPServer(cfg.Config, cfg.Services, logger), logger)
			},
		},
		{
			mode: config.ServiceModeWorker,
			run: func(ctx context.Context) error {
				return RunWorker(ctx, WorkerConfig{
					Orchestrator: cfg.Services.Orchestrator,
					Config:       cfg.Config.Worker,
					Logger:       logger,
				})
			},
		},
		{
			mode: config.ServiceModeReaper,
			run: func(ctx context.Context) error {
				return RunReaper(ctx, ReaperConfig{
					DB:      cfg.DB,
					Logger:  logger,
					Config:  cfg.Config.Reaper,
					Metrics: cfg.Services.Observability.Recorder(),
				})
			},
		},
	}

	out := make([]component, 0, len(all))
	for _, c := range all {
		if enabled[c.mode] {
			out = append(out, c)
		}
	}
	return out, nil
}

func runComponents(ctx context.Context, logger *slog.Logger, comps []component, grace time.Duration) error {
	if len(comps) == 0 {
		return errors.New("no services enabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range comps {
		g.Go(func() error {
			logger.InfoContext(gctx, "service started", "mode", c.mode)
			err := c.run(gctx)
			logger.InfoContext(gctx, "service stopped", "mode", c.mode)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", c.mode, err)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-gctx.Done():
	}

	logger.InfoContext(ctx, "shutting down services", "cause", context.Cause(gctx))
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("services did not stop within %s", grace)
	}
}
