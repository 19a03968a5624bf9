package exec

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgsteward/pgsteward/internal/models"
)

type recordingStore struct {
	executed  []uuid.UUID
	actions   []*models.Action
	markErr   error
	insertErr error
}

func (s *recordingStore) MarkProposalExecuted(_ context.Context, id uuid.UUID) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.executed = append(s.executed, id)
	return nil
}

func (s *recordingStore) InsertAction(_ context.Context, a *models.Action) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.actions = append(s.actions, a)
	return nil
}

type recordingRunner struct {
	commands   []string
	boundaries []bool
	err        error
}

func (r *recordingRunner) ExecWrite(_ context.Context, sql string, commitBoundary bool) error {
	r.commands = append(r.commands, sql)
	r.boundaries = append(r.boundaries, commitBoundary)
	return r.err
}

func approvedProposal(command string) *models.Proposal {
	return &models.Proposal{
		ID:         uuid.New(),
		DatabaseID: uuid.New(),
		Type:       models.ProposalCreateIndex,
		Table:      "orders",
		SQLCommand: command,
		Status:     models.ProposalStatusApproved,
	}
}

func newTestExecutor(store Store) *Executor {
	return NewExecutor(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// TestExecutor_ExecuteProposal_Success tests the happy path: dispatch, audit
// record and the approved → executed transition.
func TestExecutor_ExecuteProposal_Success(t *testing.T) {
	store := &recordingStore{}
	runner := &recordingRunner{}
	e := newTestExecutor(store)

	p := approvedProposal("CREATE INDEX CONCURRENTLY idx_orders_status ON orders(status)")
	action, err := e.ExecuteProposal(context.Background(), runner, p)

	require.NoError(t, err)
	require.NotNil(t, action)
	assert.True(t, action.Success)
	assert.Equal(t, p.SQLCommand, action.SQLCommand)
	assert.Equal(t, "executor", action.Agent)
	require.NotNil(t, action.ProposalID)
	assert.Equal(t, p.ID, *action.ProposalID)

	require.Len(t, runner.commands, 1)
	assert.True(t, runner.boundaries[0], "index commands need a commit boundary")

	assert.Equal(t, []uuid.UUID{p.ID}, store.executed)
	require.Len(t, store.actions, 1)
	assert.True(t, store.actions[0].Success)

	assert.Equal(t, models.ProposalStatusExecuted, p.Status)
	assert.NotNil(t, p.ExecutedAt)
}

// TestExecutor_ExecuteProposal_RequiresApproval tests that non-approved
// proposals never reach the database.
func TestExecutor_ExecuteProposal_RequiresApproval(t *testing.T) {
	for _, status := range []models.ProposalStatus{
		models.ProposalStatusPending,
		models.ProposalStatusRejected,
		models.ProposalStatusExecuted,
	} {
		t.Run(string(status), func(t *testing.T) {
			store := &recordingStore{}
			runner := &recordingRunner{}
			e := newTestExecutor(store)

			p := approvedProposal("ANALYZE orders")
			p.Status = status

			action, err := e.ExecuteProposal(context.Background(), runner, p)
			assert.ErrorIs(t, err, models.ErrProposalNotApproved)
			assert.Nil(t, action)
			assert.Empty(t, runner.commands, "nothing may be dispatched")
			assert.Empty(t, store.actions, "refusals leave no audit record")
		})
	}
}

// TestExecutor_ExecuteProposal_RejectedCommand tests the re-validation of the
// stored command text before dispatch.
func TestExecutor_ExecuteProposal_RejectedCommand(t *testing.T) {
	store := &recordingStore{}
	runner := &recordingRunner{}
	e := newTestExecutor(store)

	p := approvedProposal("DROP TABLE orders")
	action, err := e.ExecuteProposal(context.Background(), runner, p)

	assert.ErrorIs(t, err, models.ErrCommandRejected)
	assert.Nil(t, action)
	assert.Empty(t, runner.commands)
	assert.Empty(t, store.actions)
	assert.Equal(t, models.ProposalStatusApproved, p.Status)
}

// TestExecutor_ExecuteProposal_Failure tests that a failed dispatch is
// audited and leaves the proposal retryable.
func TestExecutor_ExecuteProposal_Failure(t *testing.T) {
	store := &recordingStore{}
	runner := &recordingRunner{err: errors.New("deadlock detected")}
	e := newTestExecutor(store)

	p := approvedProposal("CREATE INDEX CONCURRENTLY idx_orders_status ON orders(status)")
	action, err := e.ExecuteProposal(context.Background(), runner, p)

	require.Error(t, err)
	require.NotNil(t, action)
	assert.False(t, action.Success)
	assert.Contains(t, action.Error, "deadlock detected")

	assert.Empty(t, store.executed, "failed runs must not advance the lifecycle")
	require.Len(t, store.actions, 1)
	assert.False(t, store.actions[0].Success)
	assert.Equal(t, models.ProposalStatusApproved, p.Status, "proposal stays approved for retry")
}

// TestExecutor_ExecuteProposal_LifecycleUpdateFails tests the awkward case
// where the command ran but recording the transition failed.
func TestExecutor_ExecuteProposal_LifecycleUpdateFails(t *testing.T) {
	store := &recordingStore{markErr: errors.New("connection reset")}
	runner := &recordingRunner{}
	e := newTestExecutor(store)

	p := approvedProposal("ANALYZE orders")
	action, err := e.ExecuteProposal(context.Background(), runner, p)

	require.Error(t, err)
	require.NotNil(t, action)
	assert.True(t, action.Success, "the command did run")
	require.Len(t, store.actions, 1, "the audit record must survive the update failure")
}

// TestExecutor_ExecuteTask tests maintenance task dispatch.
func TestExecutor_ExecuteTask(t *testing.T) {
	databaseID := uuid.New()

	t.Run("review-only tasks are refused before dispatch", func(t *testing.T) {
		store := &recordingStore{}
		runner := &recordingRunner{}
		e := newTestExecutor(store)

		task := models.MaintenanceTask{
			Type:       models.TaskReviewIndex,
			Table:      "orders",
			Index:      "idx_stale",
			SQLCommand: "-- Review and potentially: DROP INDEX CONCURRENTLY idx_stale",
		}

		action, err := e.ExecuteTask(context.Background(), runner, databaseID, task)
		assert.ErrorIs(t, err, models.ErrCommandRejected)
		assert.Nil(t, action)
		assert.Empty(t, runner.commands)
	})

	t.Run("vacuum runs without a commit boundary", func(t *testing.T) {
		store := &recordingStore{}
		runner := &recordingRunner{}
		e := newTestExecutor(store)

		task := models.MaintenanceTask{
			Type:       models.TaskVacuum,
			Table:      "orders",
			SQLCommand: "VACUUM ANALYZE orders",
		}

		action, err := e.ExecuteTask(context.Background(), runner, databaseID, task)
		require.NoError(t, err)
		require.NotNil(t, action)
		assert.True(t, action.Success)
		assert.Equal(t, "planner", action.Agent)
		assert.Equal(t, databaseID, action.DatabaseID)
		assert.Nil(t, action.ProposalID)

		require.Len(t, runner.boundaries, 1)
		assert.False(t, runner.boundaries[0])
	})

	t.Run("reindex runs with a commit boundary", func(t *testing.T) {
		store := &recordingStore{}
		runner := &recordingRunner{}
		e := newTestExecutor(store)

		task := models.MaintenanceTask{
			Type:       models.TaskReindex,
			Table:      "orders",
			Index:      "idx_orders_status",
			SQLCommand: "REINDEX INDEX CONCURRENTLY idx_orders_status",
		}

		_, err := e.ExecuteTask(context.Background(), runner, databaseID, task)
		require.NoError(t, err)
		require.Len(t, runner.boundaries, 1)
		assert.True(t, runner.boundaries[0])
	})

	t.Run("failed task is audited", func(t *testing.T) {
		store := &recordingStore{}
		runner := &recordingRunner{err: errors.New("relation is locked")}
		e := newTestExecutor(store)

		task := models.MaintenanceTask{
			Type:       models.TaskVacuum,
			Table:      "orders",
			SQLCommand: "VACUUM ANALYZE orders",
		}

		action, err := e.ExecuteTask(context.Background(), runner, databaseID, task)
		require.Error(t, err)
		require.NotNil(t, action)
		assert.False(t, action.Success)
		require.Len(t, store.actions, 1)
		assert.Contains(t, store.actions[0].Error, "relation is locked")
	})
}
