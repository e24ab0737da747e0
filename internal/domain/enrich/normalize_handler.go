package enrich

import (
	"context"
	"fmt"

	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// normalize stores the canonical text of a message. A missing message is a no-op.
func (h *handlers) normalize(ctx context.Context, job *model.Job) error {
	msg, err := h.Messages.GetByID(ctx, job.EntityID)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}
	if msg == nil {
		h.jobLogger(job).DebugContext(ctx, "message not found, nothing to normalize")
		return nil
	}

	content := ""
	if msg.Content != nil {
		content = *msg.Content
	}
	normalized := Normalize(content)

	nt := &model.NormalizedText{
		MessageID:      msg.ID,
		NormalizedText: normalized,
		TextHash:       HashText(normalized),
		Language:       DetectLanguage(normalized),
		TokensCount:    EstimateTokens(normalized),
	}
	if err := h.Texts.Upsert(ctx, nt); err != nil {
		return fmt.Errorf("store normalized text: %w", err)
	}
	return nil
}
