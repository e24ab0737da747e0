package model

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	// AnnotationTypeIntent holds {intent, stage} for a message.
	AnnotationTypeIntent = "intent"
	// AnnotationTypeSemanticNeighbors holds the nearest messages by embedding.
	AnnotationTypeSemanticNeighbors = "semantic_neighbors"
	// AnnotationVersion is the only annotation version written.
	AnnotationVersion = 1

	// IntentUnknown is recorded when classification fails or is unparsable.
	IntentUnknown = "unknown"
	// ModelUsedCache marks results served from the intent cache.
	ModelUsedCache = "cache"

	// ConfidenceCacheHit is assigned to results reused from the intent cache.
	ConfidenceCacheHit = 0.95
	// ConfidenceModel is assigned to fresh model classifications.
	ConfidenceModel = 0.8

	// BatchAnnotateLimit is the maximum number of ids one batch_annotate job processes.
	BatchAnnotateLimit = 20
)

// Message is the chat message an enrichment job reads. It is owned by ingestion.
type Message struct {
	ID             string    `json:"id"              db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Content        *string   `json:"content"         db:"content"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
}

// NormalizedText is the canonical form of a message. TextHash is always
// derived from NormalizedText.
type NormalizedText struct {
	MessageID      string    `json:"message_id"      db:"message_id"`
	NormalizedText string    `json:"normalized_text" db:"normalized_text"`
	TextHash       string    `json:"text_hash"       db:"text_hash"`
	Language       string    `json:"language"        db:"language"`
	TokensCount    int       `json:"tokens_count"    db:"tokens_count"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"      db:"updated_at"`
}

// EmbeddingKey is the natural key of an embedding row.
type EmbeddingKey struct {
	EntityType string
	EntityID   string
	ModelName  string
}

// Embedding is a vector for one entity under one model.
type Embedding struct {
	EmbeddingKey
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

// IntentCacheEntry memoizes a classification by normalized text hash.
type IntentCacheEntry struct {
	TextHash       string    `json:"text_hash"       db:"text_hash"`
	NormalizedText string    `json:"normalized_text" db:"normalized_text"`
	Intent         string    `json:"intent"          db:"intent"`
	Stage          string    `json:"stage"           db:"stage"`
	ModelUsed      string    `json:"model_used"      db:"model_used"`
	Confidence     float64   `json:"confidence"      db:"confidence"`
	HitCount       int64     `json:"hit_count"       db:"hit_count"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"      db:"updated_at"`
}

// Validate checks the fields required for an upsert.
func (e *IntentCacheEntry) Validate() error {
	if e.TextHash == "" {
		return errors.New("text_hash is required")
	}
	if e.Intent == "" || e.Stage == "" {
		return errors.New("intent and stage are required")
	}
	return nil
}

// Classification is the {intent, stage} pair a model or the cache produces.
type Classification struct {
	Intent string `json:"intent"`
	Stage  string `json:"stage"`
}

// UnknownClassification is the degraded result used when a model call or parse fails.
func UnknownClassification() Classification {
	return Classification{Intent: IntentUnknown, Stage: IntentUnknown}
}

// Annotation is a typed, versioned enrichment result attached to an entity.
type Annotation struct {
	EntityType     string          `json:"entity_type"     db:"entity_type"`
	EntityID       string          `json:"entity_id"       db:"entity_id"`
	AnnotationType string          `json:"annotation_type" db:"annotation_type"`
	Version        int             `json:"version"         db:"version"`
	Value          json.RawMessage `json:"value_json"      db:"value_json"`
	ModelUsed      string          `json:"model_used"      db:"model_used"`
	Confidence     float64         `json:"confidence"      db:"confidence"`
	// Degraded marks a fallback value written after a model failure, so it can be backfilled.
	Degraded  bool      `json:"degraded"   db:"degraded"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Neighbor is one entry of a semantic_neighbors annotation.
type Neighbor struct {
	EntityID   string  `json:"entity_id"`
	Similarity float64 `json:"similarity"`
}

// BatchPayload is the payload of batch_embed and batch_annotate jobs.
type BatchPayload struct {
	EntityIDs []string `json:"entity_ids"`
}

// ClusterPayload is the optional payload of cluster_semantic jobs.
type ClusterPayload struct {
	Limit int `json:"limit,omitempty"`
}
