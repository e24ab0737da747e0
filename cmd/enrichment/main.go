package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	logger := bootstrap.InitLogger()
	err := run(ctx, logger)
	stop()
	if err != nil {
		logger.Error("enrichment exited", "error", err)
		os.Exit(1) //nolint:forbidigo // non-zero exit for supervisors
	}
}

// closers releases connections in reverse order of opening.
type closers []namedCloser

type namedCloser struct {
	name string
	c    io.Closer
}

func (cs closers) closeAll(ctx context.Context, logger *slog.Logger) {
	for _, nc := range slices.Backward(cs) {
		if err := nc.c.Close(); err != nil {
			logger.ErrorContext(ctx, "close failed", "resource", nc.name, "error", err)
		}
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	bootstrap.SetLogLevel(cfg.Observability.LogLevel)
	if err = bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}
	logger.InfoContext(ctx, "enrichment starting",
		"services", bootstrap.GetEnabledServices(&cfg),
		"db", fmt.Sprintf("%s:%d/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Name),
		"intent_cache_redis", cfg.Redis.Enabled,
	)

	var open closers
	defer func() { open.closeAll(ctx, logger) }()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	open = append(open, namedCloser{"postgres", db})

	rdb, err := connectCache(&cfg, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		open = append(open, namedCloser{"redis", rdb})
	}

	if !cfg.Postgres.RunMigrationsOnStart {
		logger.InfoContext(ctx, "startup migrations disabled")
	} else if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
		return err
	}

	orch := &bootstrap.ServiceOrchestrationConfig{Config: &cfg, DB: db, Logger: logger}

	// The reaper works on job rows alone. Model clients and handlers are only
	// built when something will claim or trigger jobs.
	if cfg.IsHTTPServerEnabled() || cfg.IsWorkerEnabled() {
		models, merr := bootstrap.NewModelPorts(ctx, &cfg, logger)
		if merr != nil {
			return merr
		}
		orch.Services, err = bootstrap.NewServices(&bootstrap.ServiceDeps{
			Config:      &cfg,
			DB:          db,
			RedisClient: rdb,
			Models:      models,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("wire services: %w", err)
		}
	}

	return bootstrap.RunServices(ctx, orch)
}

// connectCache dials Redis for the hot intent tier, or returns nil when the
// cache runs on Postgres alone.
//
//nolint:ireturn // UniversalClient covers single, sentinel and cluster modes.
func connectCache(cfg *config.AppConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rdb, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}
