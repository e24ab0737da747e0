package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/enrich"
	"github.com/schoolcrm/enrichment/internal/domain/job"
	"github.com/schoolcrm/enrichment/internal/domain/model"
	"github.com/schoolcrm/enrichment/internal/observability/metrics"
)

var (
	// ErrUnknownWorkerGroup indicates a run named a group outside the static group map.
	ErrUnknownWorkerGroup = job.ErrUnknownWorkerGroup
	// ErrUnknownJobType is recorded on claimed jobs that have no registered handler.
	ErrUnknownJobType = errors.New("unknown job type")
)

// RunStatus summarizes an orchestrator run.
type RunStatus string

const (
	// RunStatusIdle means the claim returned no jobs.
	RunStatusIdle RunStatus = "idle"
	// RunStatusOK means at least one job was claimed and processed.
	RunStatusOK RunStatus = "ok"
)

// RunRequest selects what one orchestrator run claims.
type RunRequest struct {
	// WorkerGroup defaults to job.DefaultGroup.
	WorkerGroup string `json:"worker_group,omitempty"`
	// BatchSize defaults to the configured batch size and is clamped to the configured max.
	BatchSize int `json:"batch_size,omitempty"`
	// WorkerID defaults to a generated "worker-<uuid>".
	WorkerID string `json:"worker_id,omitempty"`
	// Lease overrides the configured claim lease when positive.
	Lease time.Duration `json:"-"`
}

// RunResult reports the counts of one run. Jobs whose lease was lost before
// they could be marked are counted in JobsClaimed only.
type RunResult struct {
	Status      RunStatus `json:"status"`
	WorkerID    string    `json:"worker_id"`
	WorkerGroup string    `json:"worker_group"`
	JobsClaimed int       `json:"jobs_claimed"`
	Completed   int       `json:"completed"`
	Failed      int       `json:"failed"`
	Chained     int       `json:"chained"`
}

// OrchestratorOptions groups dependencies for Orchestrator.
type OrchestratorOptions struct {
	Jobs     core.JobRepository // Required
	Handlers enrich.Registry    // Required: must cover every job type
	Chain    *job.ChainTable    // Optional: defaults to job.DefaultChain
	Config   config.WorkerConfig
	Metrics  metrics.Recorder
	Logger   *slog.Logger
}

// Orchestrator claims a batch of jobs for one worker group, dispatches them to
// their handlers in parallel, and records each outcome. It holds no state
// between runs.
type Orchestrator struct {
	jobs     core.JobRepository
	chainer  core.JobChainer
	handlers enrich.Registry
	chain    *job.ChainTable
	leases   job.LeasePolicy
	cfg      config.WorkerConfig
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewOrchestrator validates opts and builds an Orchestrator.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Handlers == nil {
		return nil, errors.New("handler registry is required")
	}
	if missing := opts.Handlers.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, t := range missing {
			names[i] = string(t)
		}
		return nil, fmt.Errorf("no handler registered for job types: %s", strings.Join(names, ", "))
	}

	cfg := opts.Config
	cfg.Sanitize()

	leases, err := job.NewLeasePolicy(cfg.ClaimLease, 4*cfg.ClaimLease)
	if err != nil {
		return nil, fmt.Errorf("claim lease: %w", err)
	}

	chain := opts.Chain
	if chain == nil {
		chain = job.DefaultChain()
	}
	resolveLogger(opts.Logger).Debug("orchestrator chain", "edges", chain.String())

	o := &Orchestrator{
		jobs:     opts.Jobs,
		handlers: opts.Handlers,
		chain:    chain,
		leases:   leases,
		cfg:      cfg,
		metrics:  metrics.OrNoop(opts.Metrics),
		logger:   resolveLogger(opts.Logger).With("component", "orchestrator"),
	}
	if chainer, ok := opts.Jobs.(core.JobChainer); ok {
		o.chainer = chainer
	}
	return o, nil
}

// outcomeWriteTimeout bounds the Complete/Fail write that follows a handler.
const outcomeWriteTimeout = 10 * time.Second

// runCounters are shared by the goroutines of one run.
type runCounters struct {
	completed atomic.Int64
	failed    atomic.Int64
	chained   atomic.Int64
}

// Run claims up to BatchSize jobs of the requested group and processes them.
// Only a claim failure or an invalid group is returned as an error; per-job
// failures are recorded on the jobs themselves.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	group, err := job.ParseWorkerGroup(req.WorkerGroup)
	if err != nil {
		return nil, err
	}
	workerID := strings.TrimSpace(req.WorkerID)
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()
	}
	lease := o.leases.Resolve(req.Lease)
	if o.leases.Clamped(req.Lease) {
		o.logger.WarnContext(ctx, "claim lease clamped", "requested", req.Lease, "lease", lease)
	}

	jobs, err := o.jobs.Claim(ctx, model.ClaimRequest{
		Types:    group.Types(),
		Limit:    o.batchSize(req.BatchSize),
		WorkerID: workerID,
		Lease:    lease,
	})
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	o.metrics.Claimed(string(group), len(jobs))

	res := &RunResult{
		Status:      RunStatusIdle,
		WorkerID:    workerID,
		WorkerGroup: string(group),
		JobsClaimed: len(jobs),
	}
	if len(jobs) == 0 {
		return res, nil
	}

	log := o.logger.With("worker_id", workerID, "worker_group", string(group))
	log.DebugContext(ctx, "claimed jobs", "count", len(jobs))

	var counters runCounters
	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			o.process(ctx, log, workerID, j, &counters)
			return nil
		})
	}
	_ = g.Wait()

	res.Status = RunStatusOK
	res.Completed = int(counters.completed.Load())
	res.Failed = int(counters.failed.Load())
	res.Chained = int(counters.chained.Load())

	log.InfoContext(ctx, "run finished",
		"jobs_claimed", res.JobsClaimed,
		"completed", res.Completed,
		"failed", res.Failed,
		"chained", res.Chained,
	)
	return res, nil
}

func (o *Orchestrator) batchSize(requested int) int {
	switch {
	case requested <= 0:
		return o.cfg.BatchSize
	case requested > o.cfg.MaxBatchSize:
		return o.cfg.MaxBatchSize
	}
	return requested
}

func (o *Orchestrator) process(ctx context.Context, log *slog.Logger, workerID string, j *model.Job, c *runCounters) {
	log = log.With("job_id", j.ID, "job_type", string(j.Type))
	start := time.Now()

	err := o.dispatch(ctx, j)
	elapsed := time.Since(start)

	// The outcome must land even when the run context is done, or the job
	// stays claimed until the reaper takes it back.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancel()
	if err != nil {
		o.fail(wctx, log, workerID, j, err, elapsed, c)
		return
	}
	o.complete(wctx, log, workerID, j, elapsed, c)
}

// dispatch runs the handler for j, turning a panic into an error.
func (o *Orchestrator) dispatch(ctx context.Context, j *model.Job) (err error) {
	h, ok := o.handlers.Lookup(j.Type)
	if !ok {
		return ErrUnknownJobType
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, j)
}

func (o *Orchestrator) fail(
	ctx context.Context,
	log *slog.Logger,
	workerID string,
	j *model.Job,
	cause error,
	elapsed time.Duration,
	c *runCounters,
) {
	m := metrics.JobMetric{
		JobType:    string(j.Type),
		Transition: metrics.TransitionFail,
		Result:     metrics.ResultError,
		Duration:   elapsed,
		Err:        cause,
	}
	defer func() { o.metrics.JobLifecycle(m) }()

	ok, err := o.jobs.Fail(ctx, j.ID, workerID, cause.Error())
	switch {
	case err != nil:
		log.ErrorContext(ctx, "failed to mark job failed", "error", err, "cause", cause)
		m.Err = err
	case !ok:
		log.WarnContext(ctx, "job no longer owned, failure not recorded", "cause", cause)
		m.Result = metrics.ResultLost
	default:
		log.WarnContext(ctx, "job failed", "error", cause, "duration", elapsed)
		c.failed.Add(1)
	}
}

func (o *Orchestrator) complete(
	ctx context.Context,
	log *slog.Logger,
	workerID string,
	j *model.Job,
	elapsed time.Duration,
	c *runCounters,
) {
	m := metrics.JobMetric{
		JobType:    string(j.Type),
		Transition: metrics.TransitionComplete,
		Result:     metrics.ResultSuccess,
		Duration:   elapsed,
	}
	defer func() { o.metrics.JobLifecycle(m) }()

	var next *model.EnqueueRequest
	if to, ok := o.chain.Next(j.Type); ok {
		next = &model.EnqueueRequest{
			OrganizationID: j.OrganizationID,
			Type:           to,
			EntityType:     j.EntityType,
			EntityID:       j.EntityID,
			Priority:       j.Priority,
			Payload:        j.Payload,
		}
	}

	out, err := o.completeAndChain(ctx, log, workerID, j, next)
	switch {
	case err != nil:
		log.ErrorContext(ctx, "failed to mark job completed", "error", err)
		m.Result, m.Err = metrics.ResultError, err
		return
	case !out.Completed:
		log.WarnContext(ctx, "job no longer owned, completion not recorded")
		m.Result = metrics.ResultLost
		return
	}

	c.completed.Add(1)
	if out.Enqueued {
		c.chained.Add(1)
		m.Transition = metrics.TransitionChain
		log.DebugContext(ctx, "chained next stage", "next_job_type", string(next.Type))
	}
}

// completeAndChain prefers the store's transactional chaining and falls back to
// Complete followed by Enqueue.
func (o *Orchestrator) completeAndChain(
	ctx context.Context,
	log *slog.Logger,
	workerID string,
	j *model.Job,
	next *model.EnqueueRequest,
) (core.ChainOutcome, error) {
	if o.chainer != nil && next != nil {
		return o.chainer.CompleteAndEnqueue(ctx, j.ID, workerID, next)
	}

	ok, err := o.jobs.Complete(ctx, j.ID, workerID)
	if err != nil || !ok || next == nil {
		return core.ChainOutcome{Completed: ok}, err
	}

	out := core.ChainOutcome{Completed: true}
	_, err = o.jobs.Enqueue(ctx, next)
	switch {
	case errors.Is(err, model.ErrJobDuplicate):
		log.DebugContext(ctx, "next stage already queued", "next_job_type", string(next.Type))
	case err != nil:
		// The job is already completed; the successor can be re-enqueued by hand.
		log.ErrorContext(ctx, "failed to enqueue next stage", "error", err, "next_job_type", string(next.Type))
	default:
		out.Enqueued = true
	}
	return out, nil
}
