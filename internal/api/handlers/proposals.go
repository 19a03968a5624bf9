package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/services"
)

// ProposalHandler handles the proposal review lifecycle.
type ProposalHandler struct {
	proposals *services.ProposalService
	logger    *slog.Logger
}

// NewProposalHandler creates a new proposal handler.
func NewProposalHandler(proposals *services.ProposalService, logger *slog.Logger) *ProposalHandler {
	return &ProposalHandler{
		proposals: proposals,
		logger:    logger.With("handler", "proposals"),
	}
}

// ListByDatabase returns proposals for one database.
// GET /api/v1/databases/{id}/proposals?status=pending&limit=50
func (h *ProposalHandler) ListByDatabase(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	status := models.ProposalStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.ProposalStatusPending, models.ProposalStatusApproved,
		models.ProposalStatusRejected, models.ProposalStatusExecuted:
	default:
		writeJSON(w, http.StatusBadRequest, models.APIError{
			Code:    models.ErrCodeValidation,
			Message: "status must be one of: pending, approved, rejected, executed",
		})
		return
	}

	proposals, err := h.proposals.List(r.Context(), id, status, queryLimit(r, 500))
	if err != nil {
		h.logger.Error("failed to list proposals", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to list proposals",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"proposals": proposals,
		"count":     len(proposals),
	})
}

// Get returns a single proposal.
// GET /api/v1/proposals/{id}
func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.proposals.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Proposal not found",
			})
			return
		}
		h.logger.Error("failed to get proposal", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to get proposal",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"proposal": p,
	})
}

// Approve approves a pending proposal. Unless ?execute=false, the command
// runs immediately after approval; an execution failure is reported in the
// response status, not as an HTTP error.
// POST /api/v1/proposals/{id}/approve
func (h *ProposalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.proposals.Approve(r.Context(), id, queryBool(r, "execute", true))
	if err != nil {
		h.writeLifecycleError(w, err, "approve")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Reject rejects a pending proposal.
// POST /api/v1/proposals/{id}/reject
func (h *ProposalHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	p, err := h.proposals.Reject(r.Context(), id)
	if err != nil {
		h.writeLifecycleError(w, err, "reject")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"proposal": p,
		"status":   "rejected",
	})
}

// Execute runs an approved proposal. A command failure returns 400 with
// the persisted failure action in the details.
// POST /api/v1/proposals/{id}/execute
func (h *ProposalHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	action, err := h.proposals.Execute(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrProposalNotFound):
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Proposal not found",
			})
		case errors.Is(err, models.ErrProposalNotApproved):
			writeJSON(w, http.StatusConflict, models.APIError{
				Code:    models.ErrCodeConflict,
				Message: err.Error(),
			})
		case errors.Is(err, models.ErrCommandRejected):
			writeJSON(w, http.StatusBadRequest, models.APIError{
				Code:    models.ErrCodeValidation,
				Message: err.Error(),
			})
		case errors.Is(err, models.ErrDatabaseNotFound):
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Database not found",
			})
		case errors.Is(err, models.ErrDatabaseUnreachable):
			writeJSON(w, http.StatusServiceUnavailable, models.APIError{
				Code:    models.ErrCodeServiceUnavailable,
				Message: "Monitored database is unreachable",
			})
		default:
			if action != nil {
				writeJSON(w, http.StatusBadRequest, models.NewAPIError(
					models.ErrCodeBadRequest, "Execution failed",
				).WithDetails(map[string]any{
					"error":  err.Error(),
					"action": action,
				}))
				return
			}
			h.logger.Error("failed to execute proposal", "proposal_id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, models.APIError{
				Code:    models.ErrCodeInternal,
				Message: "Failed to execute proposal",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"action": action,
		"status": "executed",
	})
}

// Explain produces a plain-language explanation of the proposal.
// GET /api/v1/proposals/{id}/explain
func (h *ProposalHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	explanation, err := h.proposals.Explain(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrProposalNotFound) {
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Proposal not found",
			})
			return
		}
		h.logger.Error("failed to explain proposal", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to explain proposal",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"proposal_id": id,
		"explanation": explanation,
	})
}

// writeLifecycleError maps proposal decision errors to HTTP responses.
func (h *ProposalHandler) writeLifecycleError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, models.ErrProposalNotFound):
		writeJSON(w, http.StatusNotFound, models.APIError{
			Code:    models.ErrCodeNotFound,
			Message: "Proposal not found",
		})
	case errors.Is(err, models.ErrProposalNotPending),
		errors.Is(err, models.ErrProposalTerminal):
		writeJSON(w, http.StatusConflict, models.APIError{
			Code:    models.ErrCodeConflict,
			Message: err.Error(),
		})
	default:
		h.logger.Error("proposal decision failed", "op", op, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to " + op + " proposal",
		})
	}
}
