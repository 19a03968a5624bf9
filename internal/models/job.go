package models

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline names one of the advisor's runnable pipelines.
type Pipeline string

const (
	PipelineAnalysis    Pipeline = "analysis"
	PipelineMaintenance Pipeline = "maintenance"
	PipelinePartition   Pipeline = "partition"
)

// Valid reports whether the pipeline name is known.
func (p Pipeline) Valid() bool {
	switch p {
	case PipelineAnalysis, PipelineMaintenance, PipelinePartition:
		return true
	}
	return false
}

// JobStatus tracks a background job's lifecycle:
// pending → running → one of {completed, failed, cancelled}.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs cannot be
// restarted; a new job must be created instead.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is one cancellable, progress-tracked pipeline invocation.
// TotalSteps and CurrentStep exist for progress display only and never
// drive control flow.
type Job struct {
	ID          uuid.UUID      `json:"id"`
	DatabaseID  uuid.UUID      `json:"database_id"`
	Pipeline    Pipeline       `json:"pipeline"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress"`
	CurrentStep string         `json:"current_step,omitempty"`
	TotalSteps  int            `json:"total_steps"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
