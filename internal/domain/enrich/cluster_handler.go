package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/schoolcrm/enrichment/internal/domain/model"
)

const (
	// DefaultClusterLimit is the neighbour count used when the payload names none.
	DefaultClusterLimit = 5
	// MaxClusterLimit caps the neighbour count a payload may ask for.
	MaxClusterLimit = 50
)

type neighborsValue struct {
	Neighbors []model.Neighbor `json:"neighbors"`
}

// clusterSemantic records the nearest messages of the same organization by
// embedding similarity. Messages without an embedding are a no-op.
func (h *handlers) clusterSemantic(ctx context.Context, job *model.Job) error {
	limit, err := clusterLimit(job.Payload)
	if err != nil {
		return err
	}

	modelName := h.Embedder.Model()
	key := model.EmbeddingKey{
		EntityType: model.EntityTypeMessage,
		EntityID:   job.EntityID,
		ModelName:  modelName,
	}
	exists, err := h.Embeddings.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check embedding: %w", err)
	}
	if !exists {
		h.jobLogger(job).DebugContext(ctx, "no embedding, skipping cluster")
		return nil
	}

	neighbors, err := h.Embeddings.Nearest(ctx, key, limit)
	if err != nil {
		return fmt.Errorf("nearest neighbors: %w", err)
	}
	if neighbors == nil {
		neighbors = []model.Neighbor{}
	}

	value, err := json.Marshal(neighborsValue{Neighbors: neighbors})
	if err != nil {
		return fmt.Errorf("encode neighbors: %w", err)
	}
	err = h.Annotations.Upsert(ctx, &model.Annotation{
		EntityType:     model.EntityTypeMessage,
		EntityID:       job.EntityID,
		AnnotationType: model.AnnotationTypeSemanticNeighbors,
		Version:        model.AnnotationVersion,
		Value:          value,
		ModelUsed:      modelName,
		Confidence:     1,
	})
	if err != nil {
		return fmt.Errorf("store neighbors annotation: %w", err)
	}
	return nil
}

func clusterLimit(raw json.RawMessage) (int, error) {
	var p model.ClusterPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return 0, fmt.Errorf("decode cluster payload: %w", err)
		}
	}
	switch {
	case p.Limit <= 0:
		return DefaultClusterLimit, nil
	case p.Limit > MaxClusterLimit:
		return MaxClusterLimit, nil
	}
	return p.Limit, nil
}
