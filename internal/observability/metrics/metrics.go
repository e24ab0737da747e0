// Package metrics exposes the Prometheus collectors of the enrichment pipeline.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	obserrors "github.com/schoolcrm/enrichment/internal/observability/errors"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
	// ResultLost marks a job whose lease was reclaimed before the worker finished.
	ResultLost = "lost"
)

// Transitions recorded by JobLifecycle.
const (
	TransitionComplete = "complete"
	TransitionFail     = "fail"
	TransitionChain    = "chain"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// Recorder is the metrics surface used by the worker, handlers and reaper.
type Recorder interface {
	JobLifecycle(in JobMetric)
	Claimed(group string, n int)
	ModelCall(kind, result string, d time.Duration)
	CacheLookup(hit bool)
	Requeued(reason string, n int)
	Reclaimed(requeued, failed int64)
	Cleanup(operation, result string, count int64, d time.Duration)
}

// Noop discards every observation.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) JobLifecycle(JobMetric)                       {}
func (Noop) Claimed(string, int)                          {}
func (Noop) ModelCall(string, string, time.Duration)      {}
func (Noop) CacheLookup(bool)                             {}
func (Noop) Requeued(string, int)                         {}
func (Noop) Reclaimed(int64, int64)                       {}
func (Noop) Cleanup(string, string, int64, time.Duration) {}

// OrNoop returns r, or Noop when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}

// Prometheus implements Recorder on a private registry.
type Prometheus struct {
	registry *prometheus.Registry

	jobTransitions *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	claimSize      *prometheus.HistogramVec
	modelCalls     *prometheus.CounterVec
	modelLatency   *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	requeued       *prometheus.CounterVec
	reclaimed      *prometheus.CounterVec
	cleanupRuns    *prometheus.CounterVec
	cleanupRows    *prometheus.CounterVec
	cleanupLatency *prometheus.HistogramVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus registers the pipeline collectors plus the Go and process
// collectors under namespace.
func NewPrometheus(namespace string) *Prometheus {
	ns := strings.TrimSpace(namespace)
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		jobTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "job_transitions_total",
			Help:      "Job state transitions by type and result.",
		}, []string{"job_type", "transition", "result", "error_class"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "job_duration_seconds",
			Help:      "Handler run time per job.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job_type", "result"}),
		claimSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "claim_size",
			Help:      "Jobs returned by one claim.",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		}, []string{"worker_group"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "model_calls_total",
			Help:      "Calls to the model router and embedder.",
		}, []string{"kind", "result"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "model_call_duration_seconds",
			Help:      "Latency of model router and embedder calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "intent_cache_lookups_total",
			Help:      "Intent cache lookups by outcome.",
		}, []string{"outcome"}),
		requeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "jobs_requeued_total",
			Help:      "Follow-up jobs enqueued for work a batch left undone.",
		}, []string{"reason"}),
		reclaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "jobs_reclaimed_total",
			Help:      "Expired leases handled by the reaper.",
		}, []string{"outcome"}),
		cleanupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reaper_operations_total",
			Help:      "Reaper cleanup operations by result.",
		}, []string{"operation", "result"}),
		cleanupRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reaper_rows_total",
			Help:      "Rows touched by reaper cleanup operations.",
		}, []string{"operation"}),
		cleanupLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "reaper_operation_duration_seconds",
			Help:      "Duration of reaper cleanup operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.jobTransitions,
		p.jobDuration,
		p.claimSize,
		p.modelCalls,
		p.modelLatency,
		p.cacheLookups,
		p.requeued,
		p.reclaimed,
		p.cleanupRuns,
		p.cleanupRows,
		p.cleanupLatency,
	)
	return p
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// JobLifecycle emits standardised job lifecycle metrics.
func (p *Prometheus) JobLifecycle(in JobMetric) {
	class := ""
	if in.Err != nil && in.Result == ResultError {
		class = obserrors.Classify(in.Err)
	}
	p.jobTransitions.WithLabelValues(in.JobType, in.Transition, in.Result, class).Inc()
	if in.Duration > 0 {
		p.jobDuration.WithLabelValues(in.JobType, in.Result).Observe(in.Duration.Seconds())
	}
}

func (p *Prometheus) Claimed(group string, n int) {
	p.claimSize.WithLabelValues(group).Observe(float64(n))
}

func (p *Prometheus) ModelCall(kind, result string, d time.Duration) {
	p.modelCalls.WithLabelValues(kind, result).Inc()
	p.modelLatency.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *Prometheus) CacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	p.cacheLookups.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) Requeued(reason string, n int) {
	if n <= 0 {
		return
	}
	p.requeued.WithLabelValues(reason).Add(float64(n))
}

func (p *Prometheus) Reclaimed(requeued, failed int64) {
	if requeued > 0 {
		p.reclaimed.WithLabelValues("requeued").Add(float64(requeued))
	}
	if failed > 0 {
		p.reclaimed.WithLabelValues("failed").Add(float64(failed))
	}
}

func (p *Prometheus) Cleanup(operation, result string, count int64, d time.Duration) {
	p.cleanupRuns.WithLabelValues(operation, result).Inc()
	if count > 0 {
		p.cleanupRows.WithLabelValues(operation).Add(float64(count))
	}
	if d > 0 {
		p.cleanupLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
