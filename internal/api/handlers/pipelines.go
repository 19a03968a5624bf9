package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/jobs"
	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/services"
)

// PipelineHandler triggers pipeline runs, synchronously or as background
// jobs.
type PipelineHandler struct {
	databases    *services.DatabaseService
	analysis     *services.AnalysisService
	maintenance  *services.MaintenanceService
	partition    *services.PartitionService
	orchestrator *jobs.Orchestrator
	logger       *slog.Logger
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(databases *services.DatabaseService, analysis *services.AnalysisService, maintenance *services.MaintenanceService, partition *services.PartitionService, orchestrator *jobs.Orchestrator, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{
		databases:    databases,
		analysis:     analysis,
		maintenance:  maintenance,
		partition:    partition,
		orchestrator: orchestrator,
		logger:       logger.With("handler", "pipelines"),
	}
}

// Analyze runs the analysis pipeline.
// POST /api/v1/databases/{id}/analyze
func (h *PipelineHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, models.PipelineAnalysis, h.analysis.TotalSteps(), h.analysis.Run)
}

// Maintenance runs the maintenance pipeline.
// POST /api/v1/databases/{id}/maintenance
func (h *PipelineHandler) Maintenance(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, models.PipelineMaintenance, h.maintenance.TotalSteps(), h.maintenance.Run)
}

// Partition runs the partition advisory pipeline.
// POST /api/v1/databases/{id}/partition
func (h *PipelineHandler) Partition(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, models.PipelinePartition, h.partition.TotalSteps(), h.partition.Run)
}

// runFunc is the common signature of the three pipeline Run methods.
type runFunc func(ctx context.Context, databaseID uuid.UUID, progress jobs.ProgressFunc) (map[string]any, error)

// trigger runs one pipeline. With ?background=true it enqueues a Job and
// returns 202 immediately; otherwise it blocks until the run finishes and
// returns the result.
func (h *PipelineHandler) trigger(w http.ResponseWriter, r *http.Request, pipeline models.Pipeline, totalSteps int, run runFunc) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	// Reject unknown databases up front so a background job is never
	// created only to fail on its first step.
	if _, err := h.databases.Get(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrDatabaseNotFound) {
			writeJSON(w, http.StatusNotFound, models.APIError{
				Code:    models.ErrCodeNotFound,
				Message: "Database not found",
			})
			return
		}
		h.logger.Error("failed to load database", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.APIError{
			Code:    models.ErrCodeInternal,
			Message: "Failed to start pipeline",
		})
		return
	}

	if queryBool(r, "background", false) {
		job, err := h.orchestrator.Create(r.Context(), id, pipeline, totalSteps)
		if err != nil {
			h.logger.Error("failed to create job", "pipeline", pipeline, "error", err)
			writeJSON(w, http.StatusInternalServerError, models.APIError{
				Code:    models.ErrCodeInternal,
				Message: "Failed to create job",
			})
			return
		}

		h.orchestrator.Start(job, func(ctx context.Context, progress jobs.ProgressFunc) (map[string]any, error) {
			return run(ctx, id, progress)
		})

		writeJSON(w, http.StatusAccepted, map[string]any{
			"job": job,
		})
		return
	}

	result, err := run(r.Context(), id, nil)
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
			h.logger.Error("pipeline run failed", "pipeline", pipeline, "database_id", id, "error", err)
			writeJSON(w, http.StatusInternalServerError, models.NewAPIError(
				models.ErrCodeInternal, "Pipeline run failed",
			).WithDetails(err.Error()))
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pipeline":    pipeline,
		"database_id": id,
		"result":      result,
	})
}

// ExplainTask produces a plain-language explanation for a maintenance task
// supplied in the request body.
// POST /api/v1/maintenance/explain
func (h *PipelineHandler) ExplainTask(w http.ResponseWriter, r *http.Request) {
	var task models.MaintenanceTask
	if !decodeJSON(w, r, &task) {
		return
	}
	if task.Table == "" || task.SQLCommand == "" {
		writeJSON(w, http.StatusBadRequest, models.APIError{
			Code:    models.ErrCodeValidation,
			Message: "table and sql_command are required",
		})
		return
	}

	explanation := h.maintenance.ExplainTask(r.Context(), task)
	writeJSON(w, http.StatusOK, map[string]any{
		"task":        task,
		"explanation": explanation,
	})
}
