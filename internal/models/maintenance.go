package models

// TaskType identifies the kind of maintenance a task recommends.
type TaskType string

const (
	TaskReindex     TaskType = "reindex"
	TaskVacuum      TaskType = "vacuum"
	TaskReviewIndex TaskType = "review_index"
)

// MaintenanceTask is a stateless maintenance recommendation. It has no
// lifecycle of its own: it is either executed, producing an Action, or
// discarded with the run that produced it.
type MaintenanceTask struct {
	Type       TaskType `json:"task_type"`
	Table      string   `json:"table"`
	Index      string   `json:"index,omitempty"`
	SQLCommand string   `json:"sql_command"`
	Priority   Severity `json:"priority"`
	Reason     string   `json:"reason"`
}

// Executable reports whether the task's command is meant to be run.
// review_index tasks carry a placeholder command for human review only.
func (t MaintenanceTask) Executable() bool {
	return t.Type != TaskReviewIndex
}
