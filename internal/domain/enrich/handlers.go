// Package enrich implements the stage handlers of the message enrichment
// pipeline. Handlers depend only on core ports.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/model"
	"github.com/schoolcrm/enrichment/internal/observability/metrics"
)

// DefaultModelTimeout bounds every model router and embedder call.
const DefaultModelTimeout = 30 * time.Second

// Handler performs the work of one job. A returned error fails the job.
type Handler interface {
	Handle(ctx context.Context, job *model.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job *model.Job) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, job *model.Job) error { return f(ctx, job) }

// Registry maps each job type to its handler.
type Registry map[model.JobType]Handler

// Lookup returns the handler for t.
func (r Registry) Lookup(t model.JobType) (Handler, bool) {
	h, ok := r[t]
	return h, ok && h != nil
}

// Missing lists the job types without a handler, in declaration order.
func (r Registry) Missing() []model.JobType {
	var out []model.JobType
	for _, t := range model.AllJobTypes() {
		if _, ok := r.Lookup(t); !ok {
			out = append(out, t)
		}
	}
	return out
}

// Enqueuer is the part of the job store the handlers use to requeue work.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.Job, error)
}

// Deps holds the ports the handlers need.
type Deps struct {
	Messages    core.MessageRepository        // required
	Texts       core.NormalizedTextRepository // required
	Embeddings  core.EmbeddingRepository      // required
	Annotations core.AnnotationRepository     // required
	Cache       core.IntentCache              // required
	Router      core.ModelRouter              // required
	Embedder    core.Embedder                 // required
	Jobs        Enqueuer                      // required

	ModelTimeout time.Duration
	Metrics      metrics.Recorder
	Logger       *slog.Logger
}

func (d Deps) validate() error {
	var errs []error
	check := func(ok bool, name string) {
		if !ok {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	check(d.Messages != nil, "Messages")
	check(d.Texts != nil, "Texts")
	check(d.Embeddings != nil, "Embeddings")
	check(d.Annotations != nil, "Annotations")
	check(d.Cache != nil, "Cache")
	check(d.Router != nil, "Router")
	check(d.Embedder != nil, "Embedder")
	check(d.Jobs != nil, "Jobs")
	return errors.Join(errs...)
}

// handlers carries resolved dependencies; each stage is a method.
type handlers struct {
	Deps
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewRegistry builds the handler for every job type.
func NewRegistry(deps Deps) (Registry, error) {
	if err := deps.validate(); err != nil {
		return nil, fmt.Errorf("enrich handlers: %w", err)
	}
	if deps.ModelTimeout <= 0 {
		deps.ModelTimeout = DefaultModelTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{
		Deps:    deps,
		logger:  logger.With("component", "enrich"),
		metrics: metrics.OrNoop(deps.Metrics),
	}

	return Registry{
		model.JobTypeNormalizeMessage: HandlerFunc(h.normalize),
		model.JobTypeEmbedMessage:     HandlerFunc(h.embed),
		model.JobTypeAnnotateMessage:  HandlerFunc(h.annotate),
		model.JobTypeBatchEmbed:       HandlerFunc(h.batchEmbed),
		model.JobTypeBatchAnnotate:    HandlerFunc(h.batchAnnotate),
		model.JobTypeClusterSemantic:  HandlerFunc(h.clusterSemantic),
	}, nil
}

func (h *handlers) jobLogger(job *model.Job) *slog.Logger {
	return h.logger.With("job_id", job.ID, "job_type", string(job.Type), "entity_id", job.EntityID)
}

// classify calls the router under the model timeout.
func (h *handlers) classify(ctx context.Context, req core.ClassifyRequest) (*core.ClassifyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, h.ModelTimeout)
	defer cancel()

	start := time.Now()
	resp, err := h.Router.Classify(ctx, req)
	h.metrics.ModelCall("classify", resultLabel(err), time.Since(start))
	if err == nil && resp == nil {
		err = errors.New("model router returned no response")
	}
	return resp, err
}

// embedText calls the embedder under the model timeout.
func (h *handlers) embedText(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, h.ModelTimeout)
	defer cancel()

	start := time.Now()
	vec, err := h.Embedder.Embed(ctx, text)
	h.metrics.ModelCall("embed", resultLabel(err), time.Since(start))
	return vec, err
}

func resultLabel(err error) string {
	if err != nil {
		return metrics.ResultError
	}
	return metrics.ResultSuccess
}
