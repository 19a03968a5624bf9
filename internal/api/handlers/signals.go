package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/services"
)

// SignalHandler handles signal review requests.
type SignalHandler struct {
	signals *services.SignalService
	logger  *slog.Logger
}

// NewSignalHandler creates a new signal handler.
func NewSignalHandler(signals *services.SignalService, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{
		signals: signals,
		logger:  logger.With("handler", "signals"),
	}
}

// ListByDatabase returns signals for one database.
// GET /api/v1/databases/{id}/signals?status=new&limit=50
func (h *SignalHandler) ListByDatabase(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	status := models.SignalStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.SignalStatusNew, models.SignalStatusProcessed:
	default:
		writeJSON(w, http.StatusBadRequest, models.APIError{
			Code:    models.ErrCodeValidation,
			Message: "status must be one of: new, processed",
		})
		return
	}

	signals, err := h.signals.List(r.Context(), id, status, queryLimit(r, 500))
	if err != nil {
		h.logger.Error("failed to list signals", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to list signals",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signals": signals,
		"count":   len(signals),
	})
}

// Get returns a single signal.
// GET /api/v1/signals/{id}
func (h *SignalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	sig, err := h.signals.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrSignalNotFound) {
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Signal not found",
			})
			return
		}
		h.logger.Error("failed to get signal", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to get signal",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signal": sig,
	})
}

// Explain produces a plain-language explanation of the signal.
// GET /api/v1/signals/{id}/explain
func (h *SignalHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	explanation, err := h.signals.Explain(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrSignalNotFound) {
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Signal not found",
			})
			return
		}
		h.logger.Error("failed to explain signal", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to explain signal",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signal_id":   id,
		"explanation": explanation,
	})
}
