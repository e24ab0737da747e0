package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/schoolcrm/enrichment/internal/service"
)

// WorkerRunner runs one orchestrator pass.
type WorkerRunner interface {
	Run(ctx context.Context, req service.RunRequest) (*service.RunResult, error)
}

// TriggerHandlers serves the enrichment worker trigger.
type TriggerHandlers struct {
	Runner  WorkerRunner
	Timeout time.Duration
	Logger  *slog.Logger
}

// Trigger claims and processes one batch for the requested worker group.
// An empty body runs the default group with the default batch size.
func (h *TriggerHandlers) Trigger(w http.ResponseWriter, r *http.Request) {
	var req service.RunRequest
	if !DecodeOptionalJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	res, err := h.Runner.Run(ctx, req)
	if err != nil {
		if h.Logger != nil {
			h.Logger.ErrorContext(ctx, "enrichment worker run failed",
				"worker_group", req.WorkerGroup,
				"error", err,
			)
		}
		RenderError(w, err, "run_failed")
		return
	}
	WriteJSON(w, http.StatusOK, res)
}
