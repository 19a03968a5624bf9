package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/services"
)

// DatabaseHandler handles database registry requests.
type DatabaseHandler struct {
	databases *services.DatabaseService
	logger    *slog.Logger
}

// NewDatabaseHandler creates a new database handler.
func NewDatabaseHandler(databases *services.DatabaseService, logger *slog.Logger) *DatabaseHandler {
	return &DatabaseHandler{
		databases: databases,
		logger:    logger.With("handler", "databases"),
	}
}

// List returns all registered databases.
// GET /api/v1/databases
func (h *DatabaseHandler) List(w http.ResponseWriter, r *http.Request) {
	databases, err := h.databases.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list databases", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to list databases",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"databases": databases,
		"count":     len(databases),
	})
}

// Register registers a new monitored database after verifying connectivity.
// POST /api/v1/databases
func (h *DatabaseHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.DatabaseCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	database, err := h.databases.Register(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDatabaseNameRequired),
			errors.Is(err, models.ErrDatabaseNameInvalid),
			errors.Is(err, models.ErrDatabaseHostRequired),
			errors.Is(err, models.ErrDatabaseUserRequired),
			errors.Is(err, models.ErrInvalidAutonomyLevel):
			writeJSON(w, http.StatusBadRequest, models.APIError{
				Code:    models.ErrCodeValidation,
				Message: err.Error(),
			})
		case errors.Is(err, models.ErrDatabaseExists):
			writeJSON(w, http.StatusConflict, models.APIError{
				Code:    models.ErrCodeConflict,
				Message: err.Error(),
			})
		case errors.Is(err, models.ErrDatabaseUnreachable):
			writeJSON(w, http.StatusBadRequest, models.APIError{
				Code:    models.ErrCodeValidation,
				Message: "Cannot connect to the database with the provided settings",
			})
		default:
			h.logger.Error("failed to register database", "error", err)
			writeJSON(w, http.StatusInternalServerError, models.APIError{
				Code:    models.ErrCodeInternal,
				Message: "Failed to register database",
			})
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"database": database,
	})
}

// Get returns a single registered database.
// GET /api/v1/databases/{id}
func (h *DatabaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	database, err := h.databases.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrDatabaseNotFound) {
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Database not found",
			})
			return
		}
		h.logger.Error("failed to get database", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to get database",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"database": database,
	})
}

// Delete removes a database from the registry.
// DELETE /api/v1/databases/{id}
func (h *DatabaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.databases.Delete(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrDatabaseNotFound) {
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Database not found",
			})
			return
		}
		h.logger.Error("failed to delete database", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to delete database",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": id,
	})
}

// GetAutonomy returns the database's autonomy level.
// GET /api/v1/databases/{id}/autonomy
func (h *DatabaseHandler) GetAutonomy(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	level, err := h.databases.Autonomy(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrDatabaseNotFound) {
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Database not found",
			})
			return
		}
		h.logger.Error("failed to get autonomy level", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to get autonomy level",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"database_id": id,
		"level":       level,
	})
}

// SetAutonomy changes the database's autonomy level.
// PUT /api/v1/databases/{id}/autonomy
func (h *DatabaseHandler) SetAutonomy(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req models.AutonomyUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.databases.SetAutonomy(r.Context(), id, &req); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidAutonomyLevel):
			writeJSON(w, http.StatusBadRequest, models.APIError{
				Code:    models.ErrCodeValidation,
				Message: err.Error(),
			})
		case errors.Is(err, models.ErrDatabaseNotFound):
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Database not found",
			})
		default:
			h.logger.Error("failed to set autonomy level", "error", err)
			writeJSON(w, http.StatusInternalServerError, models.APIError{
				Code:    models.ErrCodeInternal,
				Message: "Failed to set autonomy level",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"database_id": id,
		"level":       req.Level,
	})
}
