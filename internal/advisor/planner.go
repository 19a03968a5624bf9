package advisor

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/pgsteward/pgsteward/internal/models"
)

const (
	bloatReindexThreshold = 0.2
	bloatHighThreshold    = 0.4

	vacuumMinDeadRows  = 10_000
	vacuumDeadFraction = 0.1
	vacuumMaxTables    = 10
)

// Planner converts index bloat and table dead-row statistics into
// maintenance tasks. It runs independently of the signal pipeline.
type Planner struct {
	logger *slog.Logger
}

// NewPlanner creates a new maintenance planner.
func NewPlanner(logger *slog.Logger) *Planner {
	return &Planner{
		logger: logger.With("component", "planner"),
	}
}

// Plan derives maintenance tasks from the snapshot, ordered by priority,
// stable within each tier.
func (p *Planner) Plan(snapshot *models.MetricSnapshot) []models.MaintenanceTask {
	var tasks []models.MaintenanceTask
	tasks = append(tasks, p.indexTasks(snapshot)...)
	tasks = append(tasks, p.vacuumTasks(snapshot)...)

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
	})

	return tasks
}

// indexTasks emits one task per unhealthy index: a reindex when bloat crosses
// the threshold, otherwise a review placeholder for sizable unused indexes.
func (p *Planner) indexTasks(snapshot *models.MetricSnapshot) []models.MaintenanceTask {
	var tasks []models.MaintenanceTask
	for _, idx := range snapshot.IndexMetrics {
		bloat := bloatRatio(idx.DeadTuples, idx.LiveTuples)

		switch {
		case bloat > bloatReindexThreshold:
			priority := models.SeverityMedium
			if bloat > bloatHighThreshold {
				priority = models.SeverityHigh
			}
			tasks = append(tasks, models.MaintenanceTask{
				Type:       models.TaskReindex,
				Table:      idx.Table,
				Index:      idx.Index,
				SQLCommand: fmt.Sprintf("REINDEX INDEX CONCURRENTLY %s", idx.Index),
				Priority:   priority,
				Reason: fmt.Sprintf("Index bloat at %.1f%%. Rebuilding will reclaim space and improve scan performance.",
					bloat*100),
			})

		case idx.IdxScan == 0 && idx.SizeBytes > unusedIndexMinBytes:
			tasks = append(tasks, models.MaintenanceTask{
				Type:       models.TaskReviewIndex,
				Table:      idx.Table,
				Index:      idx.Index,
				SQLCommand: fmt.Sprintf("-- Review and potentially: DROP INDEX CONCURRENTLY %s", idx.Index),
				Priority:   models.SeverityLow,
				Reason: fmt.Sprintf("Index has 0 scans but uses %.1fMB. Consider dropping if not needed for constraints or rare queries.",
					float64(idx.SizeBytes)/1024/1024),
			})
		}
	}
	return tasks
}

// vacuumTasks emits tasks for the tables with the most dead rows, capped so
// one run never schedules an unbounded amount of vacuuming.
func (p *Planner) vacuumTasks(snapshot *models.MetricSnapshot) []models.MaintenanceTask {
	var needVacuum []models.TableMetric
	for _, t := range snapshot.TableMetrics {
		if t.DeadRows > vacuumMinDeadRows && float64(t.DeadRows) > vacuumDeadFraction*float64(t.RowCount) {
			needVacuum = append(needVacuum, t)
		}
	}

	sort.SliceStable(needVacuum, func(i, j int) bool {
		return needVacuum[i].DeadRows > needVacuum[j].DeadRows
	})
	if len(needVacuum) > vacuumMaxTables {
		needVacuum = needVacuum[:vacuumMaxTables]
	}

	tasks := make([]models.MaintenanceTask, 0, len(needVacuum))
	for _, t := range needVacuum {
		tasks = append(tasks, models.MaintenanceTask{
			Type:       models.TaskVacuum,
			Table:      t.Table,
			SQLCommand: fmt.Sprintf("VACUUM ANALYZE %s", t.Table),
			Priority:   models.SeverityMedium,
			Reason: fmt.Sprintf("Table has %d dead tuples (%.1f%% of live). VACUUM will reclaim space and update statistics.",
				t.DeadRows, float64(t.DeadRows)/float64(t.RowCount+1)*100),
		})
	}
	return tasks
}

// bloatRatio estimates bloat from the dead-tuple share. Both counts zero
// means no bloat, not undefined.
func bloatRatio(dead, live int64) float64 {
	total := dead + live
	if total == 0 {
		return 0
	}
	return float64(dead) / float64(total)
}
