package core

import (
	"context"
	"time"

	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the job store contract used by the orchestrator and the reaper.
type JobRepository interface {
	// Claim atomically hands up to req.Limit pending jobs of req.Types to req.WorkerID.
	// Concurrent callers never receive the same job.
	Claim(ctx context.Context, req model.ClaimRequest) ([]*model.Job, error)
	// Complete marks a claimed job completed. It returns false when the job is no
	// longer claimed by workerID.
	Complete(ctx context.Context, id, workerID string) (bool, error)
	// Fail marks a claimed job failed with a message truncated to model.MaxErrorLength.
	Fail(ctx context.Context, id, workerID, errMsg string) (bool, error)
	Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	Stats(ctx context.Context) ([]model.JobTypeStats, error)
}

// JobChainer is implemented by job stores that can complete a job and enqueue
// its successor in one transaction. Callers type-assert for it and fall back to
// Complete followed by Enqueue.
type JobChainer interface {
	CompleteAndEnqueue(ctx context.Context, id, workerID string, next *model.EnqueueRequest) (ChainOutcome, error)
}

// ChainOutcome reports what CompleteAndEnqueue did. Enqueued is false when an
// active job for the same stage and entity already existed.
type ChainOutcome struct {
	Completed bool
	Enqueued  bool
}

// JobMaintenanceRepository defines the sweeps run by the reaper.
type JobMaintenanceRepository interface {
	ReclaimExpired(ctx context.Context, opts ReclaimOptions) (model.ReclaimResult, error)
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}

// ReclaimOptions groups parameters for JobMaintenanceRepository.ReclaimExpired.
type ReclaimOptions struct {
	// MaxReclaims is how many times a job may be returned to pending before it is failed.
	MaxReclaims int
	BatchSize   int
}

// DeleteOldJobsParams groups parameters for JobMaintenanceRepository.DeleteOldJobs.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// MessageRepository reads chat messages owned by ingestion.
type MessageRepository interface {
	// GetByID returns nil, nil when the message does not exist.
	GetByID(ctx context.Context, id string) (*model.Message, error)
}

// NormalizedTextRepository stores canonical message text keyed by message id.
type NormalizedTextRepository interface {
	Upsert(ctx context.Context, nt *model.NormalizedText) error
	// Get returns nil, nil when the message has not been normalized.
	Get(ctx context.Context, messageID string) (*model.NormalizedText, error)
	// GetMany returns rows for the ids that have one, keyed by message id.
	GetMany(ctx context.Context, messageIDs []string) (map[string]*model.NormalizedText, error)
}

// EmbeddingRepository stores vectors keyed by (entity_type, entity_id, model_name).
type EmbeddingRepository interface {
	Exists(ctx context.Context, key model.EmbeddingKey) (bool, error)
	// Insert writes the vector unless the key already exists. It reports whether a row was written.
	Insert(ctx context.Context, e *model.Embedding) (bool, error)
	// Nearest returns up to limit other entities of the same organization closest to key by cosine distance.
	Nearest(ctx context.Context, key model.EmbeddingKey, limit int) ([]model.Neighbor, error)
}

// AnnotationRepository stores versioned annotations.
type AnnotationRepository interface {
	// Upsert writes or overwrites the annotation at its natural key.
	Upsert(ctx context.Context, a *model.Annotation) error
	Get(ctx context.Context, entityType, entityID, annotationType string) (*model.Annotation, error)
}

// IntentCacheRepository is the durable intent cache table.
type IntentCacheRepository interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, textHash string) (*model.IntentCacheEntry, error)
	Upsert(ctx context.Context, e *model.IntentCacheEntry) error
	IncrementHits(ctx context.Context, textHash string) error
}

// IntentCache is the lookup/upsert contract stage handlers use.
type IntentCache interface {
	// Lookup returns nil, nil on a miss.
	Lookup(ctx context.Context, textHash string) (*model.IntentCacheEntry, error)
	// Contains reports whether textHash is cached without counting a hit.
	Contains(ctx context.Context, textHash string) (bool, error)
	Upsert(ctx context.Context, e *model.IntentCacheEntry) error
}

// ChatMessage is one message of a classification request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClassifyRequest is sent to the model router.
type ClassifyRequest struct {
	Task     string
	Messages []ChatMessage
	// MaxTokens overrides the configured completion budget when positive.
	MaxTokens int
}

// ClassifyResponse is the raw router output. Content is expected to be JSON but
// callers must tolerate anything.
type ClassifyResponse struct {
	Content string
	Model   string
}

// ModelRouter classifies text through an external model.
type ModelRouter interface {
	Classify(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model names the embedding model; it is part of the embedding key.
	Model() string
}
