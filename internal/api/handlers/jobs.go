package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pgsteward/pgsteward/internal/jobs"
	"github.com/pgsteward/pgsteward/internal/models"
)

// JobHandler handles background job inspection and cancellation.
type JobHandler struct {
	orchestrator *jobs.Orchestrator
	logger       *slog.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(orchestrator *jobs.Orchestrator, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		orchestrator: orchestrator,
		logger:       logger.With("handler", "jobs"),
	}
}

// List returns recent jobs plus the count currently in flight.
// GET /api/v1/jobs?limit=50
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.orchestrator.List(r.Context(), queryLimit(r, 500))
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to list jobs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":    list,
		"count":   len(list),
		"running": h.orchestrator.InFlight(),
	})
}

// Get returns a single job.
// GET /api/v1/jobs/{id}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	job, err := h.orchestrator.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Job not found",
			})
			return
		}
		h.logger.Error("failed to get job", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to get job",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job": job,
	})
}

// Cancel requests cancellation of a job. Cancelling an already-terminal
// job is an idempotent no-op returning the job as-is.
// POST /api/v1/jobs/{id}/cancel
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	job, err := h.orchestrator.Cancel(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrJobNotFound):
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Job not found",
			})
		case errors.Is(err, models.ErrJobNotCancellable):
			writeJSON(w, http.StatusConflict, models.APIError{
				Code:    models.ErrCodeConflict,
				Message: err.Error(),
			})
		default:
			h.logger.Error("failed to cancel job", "error", err)
			writeJSON(w, http.StatusInternalServerError, models.APIError{
				Code:    models.ErrCodeInternal,
				Message: "Failed to cancel job",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job": job,
	})
}
