package advisor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgsteward/pgsteward/internal/models"
)

// TestPlanner_IndexTasks tests reindex tiering and the review placeholder for
// unused indexes.
func TestPlanner_IndexTasks(t *testing.T) {
	tests := []struct {
		name         string
		index        models.IndexMetric
		wantTask     bool
		wantType     models.TaskType
		wantPriority models.Severity
	}{
		{
			name:         "bloated index gets a medium reindex",
			index:        models.IndexMetric{Index: "idx_a", Table: "orders", IdxScan: 50, DeadTuples: 30, LiveTuples: 70},
			wantTask:     true,
			wantType:     models.TaskReindex,
			wantPriority: models.SeverityMedium,
		},
		{
			name:         "heavily bloated index gets a high reindex",
			index:        models.IndexMetric{Index: "idx_b", Table: "orders", IdxScan: 50, DeadTuples: 50, LiveTuples: 50},
			wantTask:     true,
			wantType:     models.TaskReindex,
			wantPriority: models.SeverityHigh,
		},
		{
			name:         "unused sizable index gets a low review task",
			index:        models.IndexMetric{Index: "idx_c", Table: "orders", IdxScan: 0, SizeBytes: 2 * 1024 * 1024, DeadTuples: 5, LiveTuples: 95},
			wantTask:     true,
			wantType:     models.TaskReviewIndex,
			wantPriority: models.SeverityLow,
		},
		{
			name:     "healthy used index needs nothing",
			index:    models.IndexMetric{Index: "idx_d", Table: "orders", IdxScan: 50, DeadTuples: 5, LiveTuples: 95},
			wantTask: false,
		},
		{
			name:     "empty index counts as no bloat",
			index:    models.IndexMetric{Index: "idx_e", Table: "orders", IdxScan: 50},
			wantTask: false,
		},
	}

	p := NewPlanner(testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := snapshotAt(time.Now())
			snap.IndexMetrics = []models.IndexMetric{tt.index}

			tasks := p.Plan(snap)
			if !tt.wantTask {
				assert.Empty(t, tasks)
				return
			}

			require.Len(t, tasks, 1)
			assert.Equal(t, tt.wantType, tasks[0].Type)
			assert.Equal(t, tt.wantPriority, tasks[0].Priority)
			assert.Equal(t, tt.index.Index, tasks[0].Index)
		})
	}
}

// TestPlanner_ReviewTaskIsNotExecutable tests that review placeholders carry
// a comment, not runnable SQL.
func TestPlanner_ReviewTaskIsNotExecutable(t *testing.T) {
	p := NewPlanner(testLogger())

	snap := snapshotAt(time.Now())
	snap.IndexMetrics = []models.IndexMetric{
		{Index: "idx_stale", Table: "orders", IdxScan: 0, SizeBytes: 3 * 1024 * 1024},
	}

	tasks := p.Plan(snap)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskReviewIndex, tasks[0].Type)
	assert.False(t, tasks[0].Executable())
	assert.Contains(t, tasks[0].SQLCommand, "-- Review")
}

// TestPlanner_VacuumTasks tests dead-row gating and the per-run cap.
func TestPlanner_VacuumTasks(t *testing.T) {
	p := NewPlanner(testLogger())

	t.Run("dead rows above both gates get a vacuum", func(t *testing.T) {
		snap := snapshotAt(time.Now())
		snap.TableMetrics = []models.TableMetric{
			{Table: "orders", RowCount: 100_000, DeadRows: 20_000},
		}

		tasks := p.Plan(snap)
		require.Len(t, tasks, 1)
		assert.Equal(t, models.TaskVacuum, tasks[0].Type)
		assert.Equal(t, "VACUUM ANALYZE orders", tasks[0].SQLCommand)
		assert.Equal(t, models.SeverityMedium, tasks[0].Priority)
		assert.True(t, tasks[0].Executable())
	})

	t.Run("absolute count alone is not enough", func(t *testing.T) {
		snap := snapshotAt(time.Now())
		snap.TableMetrics = []models.TableMetric{
			{Table: "events", RowCount: 10_000_000, DeadRows: 20_000},
		}
		assert.Empty(t, p.Plan(snap))
	})

	t.Run("fraction alone is not enough", func(t *testing.T) {
		snap := snapshotAt(time.Now())
		snap.TableMetrics = []models.TableMetric{
			{Table: "lookup", RowCount: 10_000, DeadRows: 9_000},
		}
		assert.Empty(t, p.Plan(snap))
	})

	t.Run("one run schedules at most ten vacuums, worst first", func(t *testing.T) {
		snap := snapshotAt(time.Now())
		for i := 0; i < 12; i++ {
			snap.TableMetrics = append(snap.TableMetrics, models.TableMetric{
				Table:    fmt.Sprintf("t%02d", i),
				RowCount: 100_000,
				DeadRows: int64(20_000 + i*1_000),
			})
		}

		tasks := p.Plan(snap)
		require.Len(t, tasks, 10)
		assert.Equal(t, "t11", tasks[0].Table)
		assert.Equal(t, "t02", tasks[9].Table)
	})
}

// TestPlanner_Plan tests priority ordering across task kinds.
func TestPlanner_Plan(t *testing.T) {
	p := NewPlanner(testLogger())

	snap := snapshotAt(time.Now())
	snap.IndexMetrics = []models.IndexMetric{
		{Index: "idx_review", Table: "a", IdxScan: 0, SizeBytes: 2 * 1024 * 1024},
		{Index: "idx_rebuild", Table: "b", IdxScan: 9, DeadTuples: 60, LiveTuples: 40},
	}
	snap.TableMetrics = []models.TableMetric{
		{Table: "c", RowCount: 100_000, DeadRows: 30_000},
	}

	tasks := p.Plan(snap)
	require.Len(t, tasks, 3)
	assert.Equal(t, models.TaskReindex, tasks[0].Type)
	assert.Equal(t, models.SeverityHigh, tasks[0].Priority)
	assert.Equal(t, models.TaskVacuum, tasks[1].Type)
	assert.Equal(t, models.SeverityMedium, tasks[1].Priority)
	assert.Equal(t, models.TaskReviewIndex, tasks[2].Type)
	assert.Equal(t, models.SeverityLow, tasks[2].Priority)
}
