package exec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/metrics"
	"github.com/pgsteward/pgsteward/internal/models"
)

// Store is the slice of the state store the executor needs: advancing the
// proposal lifecycle and appending audit records.
type Store interface {
	MarkProposalExecuted(ctx context.Context, id uuid.UUID) error
	InsertAction(ctx context.Context, a *models.Action) error
}

// Runner executes one command against a monitored database's write pool.
// *target.Target satisfies it.
type Runner interface {
	ExecWrite(ctx context.Context, sql string, commitBoundary bool) error
}

// Executor dispatches approved commands to monitored databases. Every
// attempt that reaches the database produces exactly one Action record,
// success or failure. Commands rejected by the classifier never reach the
// database and leave no Action.
type Executor struct {
	store  Store
	logger *slog.Logger
}

// NewExecutor creates a new executor.
func NewExecutor(store Store, logger *slog.Logger) *Executor {
	return &Executor{
		store:  store,
		logger: logger.With("component", "executor"),
	}
}

// ExecuteProposal runs an approved proposal's command on the target.
//
// The proposal must be approved: pending, rejected, and executed proposals
// fail before any SQL is dispatched. The command is re-validated even though
// it was classified at synthesis time; a proposal edited or corrupted in
// storage must not slip through. On success the proposal transitions to
// executed. On execution failure it stays approved so the operator can retry.
func (e *Executor) ExecuteProposal(ctx context.Context, runner Runner, p *models.Proposal) (*models.Action, error) {
	if p.Status != models.ProposalStatusApproved {
		return nil, fmt.Errorf("%w: status is %q", models.ErrProposalNotApproved, p.Status)
	}

	c := Classify(p.SQLCommand)
	if !c.Valid {
		e.logger.Warn("proposal command rejected by classifier",
			"proposal_id", p.ID, "reason", c.Reason)
		return nil, fmt.Errorf("%w: %s", models.ErrCommandRejected, c.Reason)
	}

	start := time.Now()
	execErr := runner.ExecWrite(ctx, p.SQLCommand, touchesIndex(p.SQLCommand))
	duration := time.Since(start)
	metrics.RecordExecution("executor", execErr == nil, duration.Seconds())

	action := &models.Action{
		ID:         uuid.New(),
		DatabaseID: p.DatabaseID,
		ProposalID: &p.ID,
		Agent:      "executor",
		ActionType: string(p.Type),
		SQLCommand: p.SQLCommand,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}

	if execErr != nil {
		action.Success = false
		action.Error = execErr.Error()
		e.recordAction(ctx, action)
		e.logger.Error("proposal execution failed",
			"proposal_id", p.ID, "type", p.Type, "duration_ms", action.DurationMs, "error", execErr)
		return action, fmt.Errorf("failed to execute proposal: %w", execErr)
	}

	action.Success = true
	action.Result = "executed successfully"

	if err := e.store.MarkProposalExecuted(ctx, p.ID); err != nil {
		// The command ran; record that truth even if the lifecycle update lost.
		e.recordAction(ctx, action)
		return action, fmt.Errorf("command ran but proposal update failed: %w", err)
	}
	now := time.Now().UTC()
	p.Status = models.ProposalStatusExecuted
	p.ExecutedAt = &now

	e.recordAction(ctx, action)
	e.logger.Info("proposal executed",
		"proposal_id", p.ID, "type", p.Type, "duration_ms", action.DurationMs)
	return action, nil
}

// ExecuteTask runs one maintenance task. Tasks have no lifecycle: the only
// durable trace is the Action record.
func (e *Executor) ExecuteTask(ctx context.Context, runner Runner, databaseID uuid.UUID, task models.MaintenanceTask) (*models.Action, error) {
	if !task.Executable() {
		return nil, fmt.Errorf("%w: %s task is review-only", models.ErrCommandRejected, task.Type)
	}

	c := Classify(task.SQLCommand)
	if !c.Valid {
		e.logger.Warn("maintenance command rejected by classifier",
			"task_type", task.Type, "table", task.Table, "reason", c.Reason)
		return nil, fmt.Errorf("%w: %s", models.ErrCommandRejected, c.Reason)
	}

	start := time.Now()
	execErr := runner.ExecWrite(ctx, task.SQLCommand, touchesIndex(task.SQLCommand))
	duration := time.Since(start)
	metrics.RecordExecution("planner", execErr == nil, duration.Seconds())

	action := &models.Action{
		ID:         uuid.New(),
		DatabaseID: databaseID,
		Agent:      "planner",
		ActionType: string(task.Type),
		SQLCommand: task.SQLCommand,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}

	if execErr != nil {
		action.Success = false
		action.Error = execErr.Error()
		e.recordAction(ctx, action)
		e.logger.Error("maintenance task failed",
			"task_type", task.Type, "table", task.Table, "duration_ms", action.DurationMs, "error", execErr)
		return action, fmt.Errorf("failed to execute maintenance task: %w", execErr)
	}

	action.Success = true
	action.Result = "executed successfully"
	e.recordAction(ctx, action)
	e.logger.Info("maintenance task executed",
		"task_type", task.Type, "table", task.Table, "duration_ms", action.DurationMs)
	return action, nil
}

// recordAction appends to the audit trail. A failed append is logged but
// never masks the execution outcome.
func (e *Executor) recordAction(ctx context.Context, a *models.Action) {
	if err := e.store.InsertAction(ctx, a); err != nil {
		e.logger.Error("failed to record action", "action_id", a.ID, "error", err)
	}
}

// touchesIndex reports whether the command operates on an index and so needs
// a transaction-boundary commit before running.
func touchesIndex(command string) bool {
	return strings.Contains(strings.ToUpper(command), "INDEX")
}
