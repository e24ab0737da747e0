package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/schoolcrm/enrichment/internal/domain/model"
)

var (
	// ErrEmptyEmbedding is returned when the embedder yields no dimensions.
	ErrEmptyEmbedding = errors.New("embedder returned an empty vector")
	// ErrInvalidEmbedding is returned when the vector holds NaN or infinite values.
	ErrInvalidEmbedding = errors.New("embedder returned a vector with NaN or infinite values")
)

func (h *handlers) embed(ctx context.Context, job *model.Job) error {
	return h.embedMessage(ctx, job, job.EntityID)
}

// batchEmbed embeds each id in order. The first error fails the job; work
// already done stays.
func (h *handlers) batchEmbed(ctx context.Context, job *model.Job) error {
	p, err := decodeBatchPayload(job.Payload)
	if err != nil {
		return err
	}
	for _, id := range p.EntityIDs {
		if err := h.embedMessage(ctx, job, id); err != nil {
			return fmt.Errorf("embed %s: %w", id, err)
		}
	}
	return nil
}

// embedMessage is idempotent: it skips messages that already have an embedding
// for the current model, and texts already present in the intent cache.
func (h *handlers) embedMessage(ctx context.Context, job *model.Job, messageID string) error {
	log := h.jobLogger(job).With("message_id", messageID)

	nt, err := h.Texts.Get(ctx, messageID)
	if err != nil {
		return fmt.Errorf("load normalized text: %w", err)
	}
	if nt == nil {
		log.WarnContext(ctx, "no normalized text, skipping embed")
		return nil
	}

	key := model.EmbeddingKey{
		EntityType: model.EntityTypeMessage,
		EntityID:   messageID,
		ModelName:  h.Embedder.Model(),
	}
	exists, err := h.Embeddings.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check embedding: %w", err)
	}
	if exists {
		return nil
	}

	cached, err := h.Cache.Contains(ctx, nt.TextHash)
	if err != nil {
		return fmt.Errorf("check intent cache: %w", err)
	}
	if cached {
		log.DebugContext(ctx, "text hash already cached, skipping embed")
		return nil
	}

	vec, err := h.embedText(ctx, nt.NormalizedText)
	if err != nil {
		return fmt.Errorf("embed text: %w", err)
	}
	if err := checkVector(vec); err != nil {
		return err
	}

	if _, err := h.Embeddings.Insert(ctx, &model.Embedding{EmbeddingKey: key, Vector: vec}); err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	return nil
}

func checkVector(vec []float32) error {
	if len(vec) == 0 {
		return ErrEmptyEmbedding
	}
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrInvalidEmbedding
		}
	}
	return nil
}

func decodeBatchPayload(raw json.RawMessage) (model.BatchPayload, error) {
	var p model.BatchPayload
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode batch payload: %w", err)
	}
	return p, nil
}
