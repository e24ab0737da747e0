package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// AnnotationRepo stores typed, versioned annotations.
type AnnotationRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.AnnotationRepository = (*AnnotationRepo)(nil)

// NewAnnotationRepo creates a new AnnotationRepo.
func NewAnnotationRepo(db *sql.DB) *AnnotationRepo {
	return &AnnotationRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// Upsert writes a at its natural key, overwriting any previous value. A
// non-degraded write clears an earlier degraded flag.
func (r *AnnotationRepo) Upsert(ctx context.Context, a *model.Annotation) error {
	if a == nil {
		return errors.New("annotation is required")
	}
	if a.EntityType == "" || a.EntityID == "" || a.AnnotationType == "" {
		return errors.New("annotation entity and type are required")
	}
	if !json.Valid(a.Value) {
		return errors.New("annotation value must be valid JSON")
	}
	if a.Version <= 0 {
		a.Version = model.AnnotationVersion
	}

	now := r.timeProvider.Now().UTC()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO annotations (entity_type, entity_id, annotation_type, version, value_json, model_used, confidence, degraded, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (entity_type, entity_id, annotation_type, version) DO UPDATE
		SET value_json = EXCLUDED.value_json,
		    model_used = EXCLUDED.model_used,
		    confidence = EXCLUDED.confidence,
		    degraded = EXCLUDED.degraded,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`, a.EntityType, a.EntityID, a.AnnotationType, a.Version, string(a.Value), a.ModelUsed, a.Confidence, a.Degraded, now).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert annotation: %w", err)
	}
	return nil
}

// Get returns the latest version of an annotation, or nil, nil when absent.
func (r *AnnotationRepo) Get(ctx context.Context, entityType, entityID, annotationType string) (*model.Annotation, error) {
	var a model.Annotation
	var value []byte
	err := r.DB.QueryRowContext(ctx, `
		SELECT entity_type, entity_id, annotation_type, version, value_json, model_used, confidence, degraded, created_at, updated_at
		FROM annotations
		WHERE entity_type = $1 AND entity_id = $2 AND annotation_type = $3
		ORDER BY version DESC
		LIMIT 1
	`, entityType, entityID, annotationType).Scan(
		&a.EntityType,
		&a.EntityID,
		&a.AnnotationType,
		&a.Version,
		&value,
		&a.ModelUsed,
		&a.Confidence,
		&a.Degraded,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get annotation: %w", err)
	}
	a.Value = jsonOrEmpty(value)
	return &a, nil
}
