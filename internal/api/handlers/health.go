package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pgsteward/pgsteward/internal/db"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store  *db.DB
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store *db.DB, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		logger: logger.With("handler", "health"),
	}
}

// Health reports process liveness.
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the state store is reachable.
// GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Health(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "state store unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
