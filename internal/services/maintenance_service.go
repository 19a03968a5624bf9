package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/advisor"
	"github.com/pgsteward/pgsteward/internal/db"
	"github.com/pgsteward/pgsteward/internal/exec"
	"github.com/pgsteward/pgsteward/internal/explain"
	"github.com/pgsteward/pgsteward/internal/jobs"
	"github.com/pgsteward/pgsteward/internal/metadata"
	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/target"
)

// maintenanceStepCount mirrors the step list in Run.
const maintenanceStepCount = 5

// MaintenanceService plans routine upkeep (vacuum, reindex, index review)
// from live statistics and executes what the autonomy gate allows. Tasks
// are stateless: nothing is queued, only executions leave a trace.
type MaintenanceService struct {
	store     *db.DB
	targets   *target.Manager
	collector *metadata.Collector
	planner   *advisor.Planner
	executor  *exec.Executor
	explainer *explain.Explainer
	logger    *slog.Logger
}

// NewMaintenanceService creates a new maintenance service.
func NewMaintenanceService(store *db.DB, targets *target.Manager, collector *metadata.Collector, executor *exec.Executor, explainer *explain.Explainer, logger *slog.Logger) *MaintenanceService {
	return &MaintenanceService{
		store:     store,
		targets:   targets,
		collector: collector,
		planner:   advisor.NewPlanner(logger),
		executor:  executor,
		explainer: explainer,
		logger:    logger.With("service", "maintenance"),
	}
}

// TotalSteps reports the pipeline's step count for job progress display.
func (s *MaintenanceService) TotalSteps() int { return maintenanceStepCount }

type maintenanceRun struct {
	databaseID uuid.UUID
	database   *models.Database
	target     *target.Target
	snapshot   *models.MetricSnapshot
	tasks      []models.MaintenanceTask
	executed   int
	failed     int
}

// Run executes the maintenance pipeline for one database.
func (s *MaintenanceService) Run(ctx context.Context, databaseID uuid.UUID, progress jobs.ProgressFunc) (map[string]any, error) {
	run := &maintenanceRun{databaseID: databaseID}

	steps := []step{
		{"connect", func(ctx context.Context) error { return s.connect(ctx, run) }},
		{"collect_stats", func(ctx context.Context) error { return s.collectStats(ctx, run) }},
		{"plan_tasks", func(ctx context.Context) error { return s.planTasks(ctx, run) }},
		{"auto_execute", func(ctx context.Context) error { return s.autoExecute(ctx, run) }},
		{"report", func(ctx context.Context) error { return s.report(ctx, run) }},
	}

	if err := runSteps(ctx, progress, steps); err != nil {
		return nil, err
	}

	return map[string]any{
		"planned":  len(run.tasks),
		"executed": run.executed,
		"failed":   run.failed,
		"tasks":    run.tasks,
	}, nil
}

func (s *MaintenanceService) connect(ctx context.Context, run *maintenanceRun) error {
	database, t, err := openTarget(ctx, s.store, s.targets, run.databaseID)
	if err != nil {
		return err
	}
	run.database = database
	run.target = t
	return nil
}

func (s *MaintenanceService) collectStats(ctx context.Context, run *maintenanceRun) error {
	snapshot, err := s.collector.CollectSnapshot(ctx, run.target)
	if err != nil {
		return err
	}
	run.snapshot = snapshot
	return nil
}

func (s *MaintenanceService) planTasks(_ context.Context, run *maintenanceRun) error {
	run.tasks = s.planner.Plan(run.snapshot)
	return nil
}

// autoExecute runs executable tasks when the autonomy level permits them.
// Task failures are counted and logged, never fatal: maintenance is
// best-effort and the remaining tasks still deserve a chance.
func (s *MaintenanceService) autoExecute(ctx context.Context, run *maintenanceRun) error {
	level, err := s.store.GetAutonomyLevel(ctx, run.databaseID)
	if err != nil {
		return err
	}
	if level == models.AutonomyObservation || level == models.AutonomyAssisted {
		return nil
	}

	for _, task := range run.tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !task.Executable() {
			continue
		}
		if !exec.CanAutoExecute(exec.Classify(task.SQLCommand), level) {
			continue
		}

		if _, err := s.executor.ExecuteTask(ctx, run.target, run.databaseID, task); err != nil {
			s.logger.Warn("maintenance task failed",
				"database_id", run.databaseID, "table", task.Table, "task_type", task.Type, "error", err)
			run.failed++
			continue
		}
		run.executed++
	}
	return nil
}

func (s *MaintenanceService) report(_ context.Context, run *maintenanceRun) error {
	s.logger.Info("maintenance run finished",
		"database_id", run.databaseID,
		"planned", len(run.tasks), "executed", run.executed, "failed", run.failed)
	return nil
}

// ExplainTask produces a plain-language explanation for a single task.
func (s *MaintenanceService) ExplainTask(ctx context.Context, task models.MaintenanceTask) string {
	return s.explainer.ExplainTask(ctx, task)
}
