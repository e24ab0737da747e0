package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/model"
	"github.com/schoolcrm/enrichment/internal/observability/metrics"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.JobMaintenanceRepository // Required
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// SweepReport counts what one reaper pass changed.
type SweepReport struct {
	Requeued         int64 `json:"requeued"`
	Failed           int64 `json:"failed"`
	DeletedCompleted int64 `json:"deleted_completed"`
	DeletedFailed    int64 `json:"deleted_failed"`
}

// ReaperService returns expired claims to the queue and prunes old terminal jobs.
type ReaperService struct {
	repo    core.JobMaintenanceRepository
	cfg     config.ReaperConfig
	logger  *slog.Logger
	metrics metrics.Recorder
	sweeps  []sweep
}

type sweep struct {
	operation string
	run       func(ctx context.Context, rep *SweepReport) (int64, error)
}

// NewReaperService constructs a ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("job maintenance repository is required")
	}

	s := &ReaperService{
		repo:    opts.Repo,
		cfg:     opts.Config,
		logger:  resolveLogger(opts.Logger).With("component", "reaper"),
		metrics: metrics.OrNoop(opts.Metrics),
	}
	s.sweeps = []sweep{
		{operation: "reclaim_expired", run: s.reclaim},
		{operation: "delete_completed", run: s.prune(model.JobStatusCompleted, opts.Config.CompletedMaxAge)},
		{operation: "delete_failed", run: s.prune(model.JobStatusFailed, opts.Config.FailedMaxAge)},
	}
	return s, nil
}

// Run sweeps once after a short jitter and then every Interval until ctx ends.
// Cancellation returns nil. Sweep errors are logged and do not stop the loop.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return errors.New("reaper interval must be positive")
	}
	s.logger.InfoContext(ctx, "starting reaper",
		"interval", s.cfg.Interval,
		"max_reclaims", s.cfg.MaxReclaims,
		"completed_max_age", s.cfg.CompletedMaxAge,
		"failed_max_age", s.cfg.FailedMaxAge,
	)

	// Stagger replicas that start together.
	select {
	case <-time.After(jitter(s.cfg.Interval / 10)):
	case <-ctx.Done():
		return stopErr(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logSweepError(ctx, err)
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper stopping", "reason", ctx.Err())
			return stopErr(ctx)
		case <-ticker.C:
		}
	}
}

// RunOnce runs every sweep in order. A failing sweep does not stop the
// others. When every failure was a cancellation it returns context.Canceled.
func (s *ReaperService) RunOnce(ctx context.Context) (SweepReport, error) {
	var (
		rep      SweepReport
		errs     []error
		canceled = true
	)
	for _, sw := range s.sweeps {
		start := time.Now()
		n, err := sw.run(ctx, &rep)
		s.metrics.Cleanup(sw.operation, sweepResult(n, err), n, time.Since(start))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sw.operation, err))
			canceled = canceled && isContextCancellation(err)
		}
	}

	switch {
	case len(errs) == 0:
		return rep, nil
	case canceled:
		return rep, context.Canceled
	default:
		return rep, fmt.Errorf("reaper sweep: %w", errors.Join(errs...))
	}
}

func (s *ReaperService) reclaim(ctx context.Context, rep *SweepReport) (int64, error) {
	err := drain(ctx, func() (int64, error) {
		res, err := s.repo.ReclaimExpired(ctx, core.ReclaimOptions{
			MaxReclaims: s.cfg.MaxReclaims,
			BatchSize:   s.cfg.BatchSize,
		})
		rep.Requeued += res.Requeued
		rep.Failed += res.Failed
		return res.Requeued + res.Failed, err
	})

	s.metrics.Reclaimed(rep.Requeued, rep.Failed)
	if rep.Requeued+rep.Failed > 0 {
		s.logger.InfoContext(ctx, "reclaimed expired jobs",
			"requeued", rep.Requeued,
			"failed", rep.Failed,
		)
	}
	return rep.Requeued + rep.Failed, err
}

func (s *ReaperService) prune(status model.JobStatus, maxAge time.Duration) func(context.Context, *SweepReport) (int64, error) {
	return func(ctx context.Context, rep *SweepReport) (int64, error) {
		var total int64
		err := drain(ctx, func() (int64, error) {
			n, err := s.repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    status,
				MaxAge:    maxAge,
				BatchSize: s.cfg.BatchSize,
			})
			total += n
			return n, err
		})

		switch status {
		case model.JobStatusCompleted:
			rep.DeletedCompleted = total
		case model.JobStatusFailed:
			rep.DeletedFailed = total
		}
		if total > 0 {
			s.logger.InfoContext(ctx, "deleted old jobs", "status", status, "count", total, "max_age", maxAge)
		}
		return total, err
	}
}

// drain repeats batch until it touches no rows, fails, or ctx ends.
func drain(ctx context.Context, batch func() (int64, error)) error {
	for {
		n, err := batch()
		if err != nil || n == 0 {
			return err
		}
		if err = ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *ReaperService) logSweepError(ctx context.Context, err error) {
	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, "reaper sweep cancelled", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, "reaper sweep failed", "error", err)
}

func sweepResult(n int64, err error) string {
	switch {
	case err != nil && !isContextCancellation(err):
		return metrics.ResultError
	case err != nil, n == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}

func stopErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
