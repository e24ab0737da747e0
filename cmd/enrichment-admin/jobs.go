package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/schoolcrm/enrichment/internal/adapters/reaper"
	"github.com/schoolcrm/enrichment/internal/bootstrap"
	"github.com/schoolcrm/enrichment/internal/data"
	"github.com/schoolcrm/enrichment/internal/domain/model"
	"github.com/schoolcrm/enrichment/internal/service"
)

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		if opts.DryRun {
			pending, pendErr := data.PendingMigrations(ctx, db)
			if pendErr != nil {
				return fmt.Errorf("list pending migrations: %w", pendErr)
			}
			for _, v := range pending {
				if writeErr := writeln(os.Stdout, v); writeErr != nil {
					return writeErr
				}
			}
			return nil
		}
		cmdCtx.Logger.Info("running database migrations")
		if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return nil
	})
}

func runEnqueue(cmdCtx *commandContext, args []string) error {
	opts, err := parseEnqueueFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		repo := data.NewJobRepo(db, data.RepoConfig{Logger: cmdCtx.Logger})
		job, enqErr := repo.Enqueue(ctx, &opts.Request)
		if enqErr != nil {
			return fmt.Errorf("enqueue %s for %s: %w", opts.Request.Type, opts.Request.EntityID, enqErr)
		}
		return printJSON(os.Stdout, job)
	})
}

func runOnce(cmdCtx *commandContext, args []string) error {
	opts, err := parseRunOnceFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		rdb, redisErr := maybeConnectRedis(cmdCtx)
		if redisErr != nil {
			return redisErr
		}
		defer func() {
			if cerr := closeRedis(rdb); cerr != nil {
				cmdCtx.Logger.Warn("redis close failed", "error", cerr)
			}
		}()

		models, modelErr := bootstrap.NewModelPorts(ctx, &cmdCtx.Config, cmdCtx.Logger)
		if modelErr != nil {
			return modelErr
		}
		services, wireErr := bootstrap.NewServices(&bootstrap.ServiceDeps{
			Config:      &cmdCtx.Config,
			DB:          db,
			RedisClient: rdb,
			Models:      models,
			Logger:      cmdCtx.Logger,
		})
		if wireErr != nil {
			return fmt.Errorf("wire services: %w", wireErr)
		}

		res, runErr := services.Orchestrator.Run(ctx, service.RunRequest{
			WorkerGroup: opts.Group,
			BatchSize:   opts.BatchSize,
			WorkerID:    opts.WorkerID,
		})
		if runErr != nil {
			return runErr
		}
		return printJSON(os.Stdout, res)
	})
}

func runStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatsFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		stats, statsErr := data.NewJobRepo(db, data.RepoConfig{}).Stats(ctx)
		if statsErr != nil {
			return statsErr
		}
		if opts.JSON {
			return printJSON(os.Stdout, stats)
		}
		return printStatsTable(os.Stdout, stats)
	})
}

func runReclaim(cmdCtx *commandContext, args []string) error {
	timeout, err := parseTimeoutFlags("reclaim", args, defaultRunTimeout)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, timeout, func(ctx context.Context, db *sql.DB) error {
		runner, runnerErr := reaper.NewRunner(reaper.RunnerOptions{
			DB:     db,
			Config: cmdCtx.Config.Reaper,
			Logger: cmdCtx.Logger,
		})
		if runnerErr != nil {
			return runnerErr
		}
		rep, sweepErr := runner.RunOnce(ctx)
		if sweepErr != nil {
			return sweepErr
		}
		return printJSON(os.Stdout, rep)
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStatsTable(w io.Writer, stats []model.JobTypeStats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "TYPE\tPENDING\tCLAIMED\tCOMPLETED\tFAILED"); err != nil {
		return fmt.Errorf("write stats header: %w", err)
	}
	var total model.JobStats
	for _, s := range stats {
		if err := writef(tw, "%s\t%d\t%d\t%d\t%d\n", s.Type, s.Pending, s.Claimed, s.Completed, s.Failed); err != nil {
			return fmt.Errorf("write stats row %q: %w", s.Type, err)
		}
		total.Add(s.JobStats)
	}
	if err := writef(tw, "total\t%d\t%d\t%d\t%d\n", total.Pending, total.Claimed, total.Completed, total.Failed); err != nil {
		return fmt.Errorf("write stats total: %w", err)
	}
	return tw.Flush()
}
