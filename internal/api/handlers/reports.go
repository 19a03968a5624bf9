package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/services"
)

// ReportHandler serves the audit trail, schema review, and activity digest.
type ReportHandler struct {
	reports  *services.ReportService
	analysis *services.AnalysisService
	logger   *slog.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(reports *services.ReportService, analysis *services.AnalysisService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		reports:  reports,
		analysis: analysis,
		logger:   logger.With("handler", "reports"),
	}
}

// Actions returns the audit trail for one database.
// GET /api/v1/databases/{id}/actions?limit=50
func (h *ReportHandler) Actions(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	actions, err := h.reports.Actions(r.Context(), id, queryLimit(r, 500))
	if err != nil {
		h.logger.Error("failed to list actions", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to list actions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"actions": actions,
		"count":   len(actions),
	})
}

// Report returns the activity digest for one database.
// GET /api/v1/databases/{id}/report
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	report, err := h.reports.Report(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrDatabaseNotFound) {
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Database not found",
			})
			return
		}
		h.logger.Error("failed to build report", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to build report",
		})
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// SchemaReview runs the read-only schema review against the live database.
// GET /api/v1/databases/{id}/schema/review
func (h *ReportHandler) SchemaReview(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	findings, err := h.analysis.ReviewSchema(r.Context(), id)
	if err != nil {
		switch {
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
			h.logger.Error("schema review failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, models.APIError{
				Code:    models.ErrCodeInternal,
				Message: "Schema review failed",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"database_id": id,
		"findings":    findings,
		"count":       len(findings),
	})
}
