// Package httpx provides the HTTP surface of the enrichment service: the worker
// trigger, job administration, health and metrics.
package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/schoolcrm/enrichment/internal/domain/model"
)

// JobStore is the part of the job repository the HTTP API exposes.
type JobStore interface {
	Enqueue(ctx context.Context, req *model.EnqueueRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	Stats(ctx context.Context) ([]model.JobTypeStats, error)
}

// JobHandlers provides HTTP handlers for job-related operations.
type JobHandlers struct {
	Jobs JobStore
}

// CreateJob handles HTTP requests to enqueue a new job.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.EnqueueRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.EntityType == "" {
		req.EntityType = model.EntityTypeMessage
	}
	if err := req.Validate(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: err})
		return
	}

	job, err := h.Jobs.Enqueue(r.Context(), &req)
	if err != nil {
		RenderError(w, err, "create_failed")
		return
	}

	WriteJSON(w, http.StatusCreated, job)
}

// GetJob handles HTTP requests to fetch a single job.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	job, err := h.Jobs.GetByID(r.Context(), id)
	if err != nil {
		RenderError(w, err, "get_failed")
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

type statsResponse struct {
	Total  model.JobStats       `json:"total"`
	ByType []model.JobTypeStats `json:"by_type"`
}

// Stats handles HTTP requests for job counts by status and type.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Jobs.Stats(r.Context())
	if err != nil {
		RenderError(w, err, "stats_failed")
		return
	}

	resp := statsResponse{ByType: stats}
	for _, s := range stats {
		resp.Total.Add(s.JobStats)
	}
	WriteJSON(w, http.StatusOK, resp)
}
