package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// RequeueReasonBatchStraggler labels ids a batch_annotate reply left unclassified.
const RequeueReasonBatchStraggler = "batch_straggler"

// intentResult is the outcome of classifying one normalized text.
type intentResult struct {
	model.Classification
	ModelUsed  string
	Confidence float64
	Degraded   bool
}

func (h *handlers) annotate(ctx context.Context, job *model.Job) error {
	nt, err := h.Texts.Get(ctx, job.EntityID)
	if err != nil {
		return fmt.Errorf("load normalized text: %w", err)
	}
	if nt == nil {
		h.jobLogger(job).WarnContext(ctx, "no normalized text, skipping annotate")
		return nil
	}

	res, hit, err := h.fromCache(ctx, nt.TextHash)
	if err != nil {
		return err
	}
	if !hit {
		res = h.classifyText(ctx, job, nt)
		if !res.Degraded {
			if err := h.cacheResult(ctx, nt, res); err != nil {
				return err
			}
		}
	}
	return h.writeIntent(ctx, job.EntityID, res)
}

// fromCache returns the cached classification for textHash, if any.
func (h *handlers) fromCache(ctx context.Context, textHash string) (intentResult, bool, error) {
	entry, err := h.Cache.Lookup(ctx, textHash)
	if err != nil {
		return intentResult{}, false, fmt.Errorf("intent cache lookup: %w", err)
	}
	h.metrics.CacheLookup(entry != nil)
	if entry == nil {
		return intentResult{}, false, nil
	}
	return intentResult{
		Classification: model.Classification{Intent: entry.Intent, Stage: entry.Stage},
		ModelUsed:      model.ModelUsedCache,
		Confidence:     model.ConfidenceCacheHit,
	}, true, nil
}

// classifyText makes one router call. Call and parse failures yield a degraded
// unknown result instead of an error.
func (h *handlers) classifyText(ctx context.Context, job *model.Job, nt *model.NormalizedText) intentResult {
	degraded := intentResult{
		Classification: model.UnknownClassification(),
		ModelUsed:      model.IntentUnknown,
		Confidence:     model.ConfidenceModel,
		Degraded:       true,
	}

	resp, err := h.classify(ctx, IntentRequest(nt.NormalizedText))
	if err != nil {
		h.jobLogger(job).WarnContext(ctx, "intent classification failed", "error", err)
		return degraded
	}
	modelUsed := modelOrUnknown(resp.Model)

	c, err := ParseClassification(resp.Content)
	if err != nil {
		h.jobLogger(job).WarnContext(ctx, "unparsable intent classification", "error", err, "model", modelUsed)
		degraded.ModelUsed = modelUsed
		return degraded
	}
	return intentResult{Classification: c, ModelUsed: modelUsed, Confidence: model.ConfidenceModel}
}

func (h *handlers) cacheResult(ctx context.Context, nt *model.NormalizedText, res intentResult) error {
	err := h.Cache.Upsert(ctx, &model.IntentCacheEntry{
		TextHash:       nt.TextHash,
		NormalizedText: nt.NormalizedText,
		Intent:         res.Intent,
		Stage:          res.Stage,
		ModelUsed:      res.ModelUsed,
		Confidence:     res.Confidence,
	})
	if err != nil {
		return fmt.Errorf("intent cache upsert: %w", err)
	}
	return nil
}

func (h *handlers) writeIntent(ctx context.Context, messageID string, res intentResult) error {
	value, err := json.Marshal(res.Classification)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}
	err = h.Annotations.Upsert(ctx, &model.Annotation{
		EntityType:     model.EntityTypeMessage,
		EntityID:       messageID,
		AnnotationType: model.AnnotationTypeIntent,
		Version:        model.AnnotationVersion,
		Value:          value,
		ModelUsed:      res.ModelUsed,
		Confidence:     res.Confidence,
		Degraded:       res.Degraded,
	})
	if err != nil {
		return fmt.Errorf("store intent annotation: %w", err)
	}
	return nil
}

// batchAnnotate classifies up to model.BatchAnnotateLimit messages with one
// router call. Positions the reply leaves out are requeued as annotate_message jobs.
func (h *handlers) batchAnnotate(ctx context.Context, job *model.Job) error {
	p, err := decodeBatchPayload(job.Payload)
	if err != nil {
		return err
	}
	ids := p.EntityIDs
	if len(ids) > model.BatchAnnotateLimit {
		ids = ids[:model.BatchAnnotateLimit]
	}
	if len(ids) == 0 {
		return nil
	}

	texts, err := h.Texts.GetMany(ctx, ids)
	if err != nil {
		return fmt.Errorf("load normalized texts: %w", err)
	}

	var pending []*model.NormalizedText
	for _, id := range ids {
		nt, ok := texts[id]
		if !ok || nt == nil {
			continue
		}
		res, hit, err := h.fromCache(ctx, nt.TextHash)
		if err != nil {
			return err
		}
		if !hit {
			pending = append(pending, nt)
			continue
		}
		if err := h.writeIntent(ctx, nt.MessageID, res); err != nil {
			return err
		}
	}
	if len(pending) == 0 {
		return nil
	}

	log := h.jobLogger(job)
	batch := make([]string, len(pending))
	for i, nt := range pending {
		batch[i] = nt.NormalizedText
	}

	resp, err := h.classify(ctx, BatchIntentRequest(batch))
	if err != nil {
		log.WarnContext(ctx, "batch classification failed, requeueing", "error", err, "count", len(pending))
		return h.requeueIndividually(ctx, job, pending)
	}
	results, err := ParseBatchClassifications(resp.Content, len(pending))
	if err != nil {
		log.WarnContext(ctx, "unparsable batch classification, requeueing", "error", err, "count", len(pending))
		return h.requeueIndividually(ctx, job, pending)
	}

	modelUsed := modelOrUnknown(resp.Model)
	var stragglers []*model.NormalizedText
	for i, nt := range pending {
		c := results[i]
		if c == nil {
			stragglers = append(stragglers, nt)
			continue
		}
		res := intentResult{Classification: *c, ModelUsed: modelUsed, Confidence: model.ConfidenceModel}
		if err := h.cacheResult(ctx, nt, res); err != nil {
			return err
		}
		if err := h.writeIntent(ctx, nt.MessageID, res); err != nil {
			return err
		}
	}
	if len(stragglers) > 0 {
		log.InfoContext(ctx, "batch reply missed positions, requeueing", "count", len(stragglers))
	}
	return h.requeueIndividually(ctx, job, stragglers)
}

// requeueIndividually enqueues one annotate_message job per text. Ids that
// already have an active annotate job are skipped.
func (h *handlers) requeueIndividually(ctx context.Context, job *model.Job, texts []*model.NormalizedText) error {
	enqueued := 0
	defer func() { h.metrics.Requeued(RequeueReasonBatchStraggler, enqueued) }()

	for _, nt := range texts {
		_, err := h.Jobs.Enqueue(ctx, &model.EnqueueRequest{
			OrganizationID: job.OrganizationID,
			Type:           model.JobTypeAnnotateMessage,
			EntityType:     model.EntityTypeMessage,
			EntityID:       nt.MessageID,
			Priority:       job.Priority,
		})
		switch {
		case errors.Is(err, model.ErrJobDuplicate):
			continue
		case err != nil:
			return fmt.Errorf("requeue %s: %w", nt.MessageID, err)
		}
		enqueued++
	}
	return nil
}

func modelOrUnknown(name string) string {
	if name == "" {
		return model.IntentUnknown
	}
	return name
}
