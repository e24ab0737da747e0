package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/pgvector/pgvector-go"
	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// EmbeddingRepo stores vectors in the pgvector embeddings table.
type EmbeddingRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.EmbeddingRepository = (*EmbeddingRepo)(nil)

// NewEmbeddingRepo creates a new EmbeddingRepo.
func NewEmbeddingRepo(db *sql.DB) *EmbeddingRepo {
	return &EmbeddingRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// Exists reports whether a vector is stored for key.
func (r *EmbeddingRepo) Exists(ctx context.Context, key model.EmbeddingKey) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM embeddings
			WHERE entity_type = $1 AND entity_id = $2 AND model_name = $3
		)
	`, key.EntityType, key.EntityID, key.ModelName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check embedding: %w", err)
	}
	return exists, nil
}

// Insert stores e unless a vector already exists for its key. It reports
// whether a row was written; an existing row is never overwritten.
func (r *EmbeddingRepo) Insert(ctx context.Context, e *model.Embedding) (bool, error) {
	if e == nil {
		return false, errors.New("embedding is required")
	}
	if err := validateVector(e.Vector); err != nil {
		return false, err
	}

	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO embeddings (entity_type, entity_id, model_name, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_type, entity_id, model_name) DO NOTHING
	`, e.EntityType, e.EntityID, e.ModelName, pgvector.NewVector(e.Vector), now)
	if err != nil {
		return false, fmt.Errorf("insert embedding: %w", err)
	}
	inserted, err := affectedOne(res)
	if err != nil {
		return false, err
	}
	if inserted {
		e.CreatedAt = now
	}
	return inserted, nil
}

// Get returns the stored vector for key, or nil, nil when absent.
func (r *EmbeddingRepo) Get(ctx context.Context, key model.EmbeddingKey) (*model.Embedding, error) {
	var vec pgvector.Vector
	out := model.Embedding{EmbeddingKey: key}
	err := r.DB.QueryRowContext(ctx, `
		SELECT embedding, created_at FROM embeddings
		WHERE entity_type = $1 AND entity_id = $2 AND model_name = $3
	`, key.EntityType, key.EntityID, key.ModelName).Scan(&vec, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get embedding: %w", err)
	}
	out.Vector = vec.Slice()
	return &out, nil
}

// Nearest returns up to limit other messages of the same organization ordered
// by cosine similarity to the vector stored for key. Vectors of a different
// dimension are skipped.
func (r *EmbeddingRepo) Nearest(ctx context.Context, key model.EmbeddingKey, limit int) ([]model.Neighbor, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT e.entity_id, 1 - (e.embedding <=> src.embedding) AS similarity
		FROM embeddings src
		JOIN chat_messages sm ON sm.id::text = src.entity_id
		JOIN embeddings e
		  ON e.entity_type = src.entity_type
		 AND e.model_name = src.model_name
		 AND e.entity_id <> src.entity_id
		JOIN chat_messages m ON m.id::text = e.entity_id AND m.organization_id = sm.organization_id
		WHERE src.entity_type = $1 AND src.entity_id = $2 AND src.model_name = $3
		  AND vector_dims(e.embedding) = vector_dims(src.embedding)
		ORDER BY e.embedding <=> src.embedding
		LIMIT $4
	`, key.EntityType, key.EntityID, key.ModelName, limit)
	if err != nil {
		return nil, fmt.Errorf("nearest embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Neighbor
	for rows.Next() {
		var n model.Neighbor
		if scanErr := rows.Scan(&n.EntityID, &n.Similarity); scanErr != nil {
			return nil, fmt.Errorf("scan neighbor: %w", scanErr)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors: %w", err)
	}
	return out, nil
}

func validateVector(v []float32) error {
	if len(v) == 0 {
		return ErrEmptyVector
	}
	for i, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("embedding component %d is not finite", i)
		}
	}
	return nil
}
