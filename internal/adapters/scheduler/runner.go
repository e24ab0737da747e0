// Package scheduler runs the orchestrator for each configured worker group on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/domain/job"
	"github.com/schoolcrm/enrichment/internal/service"
)

// Orchestrator is the part of service.Orchestrator the runner drives.
type Orchestrator interface {
	Run(ctx context.Context, req service.RunRequest) (*service.RunResult, error)
}

// Runner owns one cron entry per worker group. A tick that is still running
// when the next one fires is skipped, so a slow group never piles up.
type Runner struct {
	orchestrator Orchestrator
	schedule     cron.Schedule
	spec         string
	groups       []job.WorkerGroup
	batchSize    int
	logger       *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Orchestrator Orchestrator
	Config       config.WorkerConfig
	Logger       *slog.Logger
}

var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether spec is a schedule the runner accepts.
func ValidateSchedule(spec string) error {
	_, err := specParser.Parse(spec)
	return err
}

// NewRunner validates the schedule and groups and creates a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	cfg := opts.Config
	cfg.Sanitize()

	schedule, err := specParser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid worker schedule %q: %w", cfg.Schedule, err)
	}

	names := cfg.Groups
	if len(names) == 0 {
		names = job.GroupNames()
	}
	groups := make([]job.WorkerGroup, 0, len(names))
	for _, name := range names {
		g, perr := job.ParseWorkerGroup(name)
		if perr != nil {
			return nil, perr
		}
		groups = append(groups, g)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		orchestrator: opts.Orchestrator,
		schedule:     schedule,
		spec:         cfg.Schedule,
		groups:       groups,
		batchSize:    cfg.BatchSize,
		logger:       logger.With("component", "worker_scheduler"),
	}, nil
}

// Groups returns the worker groups the runner ticks.
func (r *Runner) Groups() []job.WorkerGroup {
	out := make([]job.WorkerGroup, len(r.groups))
	copy(out, r.groups)
	return out
}

// Run starts the cron loop and blocks until ctx is cancelled. In-flight ticks
// are awaited before it returns.
func (r *Runner) Run(ctx context.Context) error {
	clog := cronLogger{l: r.logger}
	c := cron.New(
		cron.WithParser(specParser),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog)),
	)
	for _, g := range r.groups {
		// Each group gets its own SkipIfStillRunning wrapper so groups do not block each other.
		c.Schedule(r.schedule, cron.NewChain(cron.SkipIfStillRunning(clog)).Then(r.tickJob(ctx, g)))
	}

	r.logger.InfoContext(ctx, "starting worker scheduler", "schedule", r.spec, "groups", r.groups)
	c.Start()

	<-ctx.Done()
	r.logger.InfoContext(ctx, "worker scheduler stopping", "reason", ctx.Err())
	<-c.Stop().Done()

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (r *Runner) tickJob(ctx context.Context, group job.WorkerGroup) cron.Job {
	return cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		r.tick(ctx, group)
	})
}

// tick runs the orchestrator once for group and logs the outcome.
func (r *Runner) tick(ctx context.Context, group job.WorkerGroup) {
	res, err := r.orchestrator.Run(ctx, service.RunRequest{
		WorkerGroup: string(group),
		BatchSize:   r.batchSize,
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.ErrorContext(ctx, "worker tick failed", "worker_group", group, "error", err)
		return
	}
	if res.JobsClaimed == 0 {
		return
	}
	r.logger.InfoContext(ctx, "worker tick processed jobs",
		"worker_group", group,
		"worker_id", res.WorkerID,
		"jobs_claimed", res.JobsClaimed,
		"completed", res.Completed,
		"failed", res.Failed,
		"chained", res.Chained,
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
