package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// IntentCacheRepo is the durable intent cache keyed by normalized text hash.
type IntentCacheRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.IntentCacheRepository = (*IntentCacheRepo)(nil)

// NewIntentCacheRepo creates a new IntentCacheRepo.
func NewIntentCacheRepo(db *sql.DB) *IntentCacheRepo {
	return &IntentCacheRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// Get returns the entry for textHash, or nil, nil on a miss.
func (r *IntentCacheRepo) Get(ctx context.Context, textHash string) (*model.IntentCacheEntry, error) {
	var e model.IntentCacheEntry
	err := r.DB.QueryRowContext(ctx, `
		SELECT text_hash, normalized_text, intent, stage, model_used, confidence, hit_count, created_at, updated_at
		FROM intent_cache
		WHERE text_hash = $1
	`, textHash).Scan(
		&e.TextHash,
		&e.NormalizedText,
		&e.Intent,
		&e.Stage,
		&e.ModelUsed,
		&e.Confidence,
		&e.HitCount,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get intent cache entry: %w", err)
	}
	return &e, nil
}

// Upsert inserts or refreshes the classification for e.TextHash. The hit
// count survives refreshes.
func (r *IntentCacheRepo) Upsert(ctx context.Context, e *model.IntentCacheEntry) error {
	if e == nil {
		return errors.New("intent cache entry is required")
	}
	if err := e.Validate(); err != nil {
		return err
	}

	now := r.timeProvider.Now().UTC()
	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO intent_cache (text_hash, normalized_text, intent, stage, model_used, confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (text_hash) DO UPDATE
		SET normalized_text = EXCLUDED.normalized_text,
		    intent = EXCLUDED.intent,
		    stage = EXCLUDED.stage,
		    model_used = EXCLUDED.model_used,
		    confidence = EXCLUDED.confidence,
		    updated_at = EXCLUDED.updated_at
		RETURNING hit_count, created_at, updated_at
	`, e.TextHash, e.NormalizedText, e.Intent, e.Stage, e.ModelUsed, e.Confidence, now).
		Scan(&e.HitCount, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert intent cache entry: %w", err)
	}
	return nil
}

// IncrementHits bumps the hit counter of an existing entry.
func (r *IntentCacheRepo) IncrementHits(ctx context.Context, textHash string) error {
	if _, err := r.DB.ExecContext(ctx, `
		UPDATE intent_cache SET hit_count = hit_count + 1 WHERE text_hash = $1
	`, textHash); err != nil {
		return fmt.Errorf("increment intent cache hits: %w", err)
	}
	return nil
}
