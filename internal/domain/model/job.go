// Package model defines the core data types shared by the enrichment job system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobType represents the stage a job performs. The set is closed: values
// outside AllJobTypes are rejected at enqueue time.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobTypeNormalizeMessage canonicalizes a chat message and stores its hash.
	JobTypeNormalizeMessage JobType = "normalize_message"
	// JobTypeEmbedMessage stores an embedding for a normalized message.
	JobTypeEmbedMessage JobType = "embed_message"
	// JobTypeAnnotateMessage classifies the intent of a normalized message.
	JobTypeAnnotateMessage JobType = "annotate_message"
	// JobTypeBatchEmbed embeds a list of messages.
	JobTypeBatchEmbed JobType = "batch_embed"
	// JobTypeBatchAnnotate classifies up to BatchAnnotateLimit messages in one model call.
	JobTypeBatchAnnotate JobType = "batch_annotate"
	// JobTypeClusterSemantic records the nearest semantic neighbours of a message.
	JobTypeClusterSemantic JobType = "cluster_semantic"

	// JobStatusPending indicates a job is waiting to be claimed.
	JobStatusPending JobStatus = "pending"
	// JobStatusClaimed indicates a worker owns the job until its lease expires.
	JobStatusClaimed JobStatus = "claimed"
	// JobStatusCompleted indicates a job has finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job has failed.
	JobStatusFailed JobStatus = "failed"
)

// EntityTypeMessage is the entity type of chat message jobs.
const EntityTypeMessage = "message"

// MaxErrorLength bounds the error text persisted on a failed job.
const MaxErrorLength = 500

var (
	// ErrNoJobsAvailable is returned when no jobs are available for claiming.
	ErrNoJobsAvailable = errors.New("no jobs available")
	// ErrInvalidJobType is returned when a job type is outside the closed set.
	ErrInvalidJobType = errors.New("invalid job type")
	// ErrJobDuplicate is returned when a pending job already exists for the same stage and entity.
	ErrJobDuplicate = errors.New("a pending job already exists for this entity and job type")
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")
)

// AllJobTypes lists every job type in declaration order.
func AllJobTypes() []JobType {
	return []JobType{
		JobTypeNormalizeMessage,
		JobTypeEmbedMessage,
		JobTypeAnnotateMessage,
		JobTypeBatchEmbed,
		JobTypeBatchAnnotate,
		JobTypeClusterSemantic,
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env and JSON parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidJobType, v)
}

// Valid returns true if the JobType is one of AllJobTypes.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeNormalizeMessage, JobTypeEmbedMessage, JobTypeAnnotateMessage,
		JobTypeBatchEmbed, JobTypeBatchAnnotate, JobTypeClusterSemantic:
		return true
	}
	return false
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusClaimed || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is a unit of asynchronous work tied to one entity and one stage.
type Job struct {
	ID             string          `json:"id"                         db:"id"`
	OrganizationID string          `json:"organization_id"            db:"organization_id"`
	Type           JobType         `json:"job_type"                   db:"job_type"`
	EntityType     string          `json:"entity_type"                db:"entity_type"`
	EntityID       string          `json:"entity_id"                  db:"entity_id"`
	Status         JobStatus       `json:"status"                     db:"status"`
	Priority       int             `json:"priority"                   db:"priority"`
	Payload        json.RawMessage `json:"payload"                    db:"payload"`
	WorkerID       *string         `json:"worker_id,omitempty"        db:"worker_id"`
	LastError      *string         `json:"error,omitempty"            db:"error"`
	ReclaimCount   int             `json:"reclaim_count"              db:"reclaim_count"`
	ClaimedAt      *time.Time      `json:"claimed_at,omitempty"       db:"claimed_at"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"     db:"completed_at"`
	CreatedAt      time.Time       `json:"created_at"                 db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"                 db:"updated_at"`
}

// EnqueueRequest represents a request to create a new pending job.
type EnqueueRequest struct {
	OrganizationID string          `json:"organization_id"`
	Type           JobType         `json:"job_type"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	Priority       int             `json:"priority,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Validate validates the EnqueueRequest fields. Unknown job types are rejected
// here so they never reach a worker.
func (r *EnqueueRequest) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidJobType, r.Type)
	}
	if _, err := uuid.Parse(r.OrganizationID); err != nil {
		return errors.New("organization_id must be a valid UUID")
	}
	if strings.TrimSpace(r.EntityType) == "" {
		return errors.New("entity_type is required")
	}
	if strings.TrimSpace(r.EntityID) == "" {
		return errors.New("entity_id is required")
	}
	if r.Priority < 0 || r.Priority > 100 {
		return errors.New("priority must be between 0 and 100")
	}
	if len(r.Payload) > 0 && !json.Valid(r.Payload) {
		return errors.New("payload must be valid JSON")
	}
	return nil
}

// ClaimRequest describes an atomic claim of pending jobs.
type ClaimRequest struct {
	Types    []JobType
	Limit    int
	WorkerID string
	Lease    time.Duration
}

// JobStats represents counts of jobs by status.
type JobStats struct {
	Pending   int `json:"pending"`
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Add accumulates o into s.
func (s *JobStats) Add(o JobStats) {
	s.Pending += o.Pending
	s.Claimed += o.Claimed
	s.Completed += o.Completed
	s.Failed += o.Failed
}

// JobTypeStats breaks JobStats down per job type.
type JobTypeStats struct {
	Type JobType `json:"job_type"`
	JobStats
}

// ReclaimResult reports the outcome of a lease reclaim sweep.
type ReclaimResult struct {
	Requeued int64 `json:"requeued"`
	Failed   int64 `json:"failed"`
}

// TruncateError shortens msg to at most MaxErrorLength runes.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorLength {
		return msg
	}
	runes := []rune(msg)
	if len(runes) <= MaxErrorLength {
		return msg
	}
	return string(runes[:MaxErrorLength])
}
