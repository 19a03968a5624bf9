package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pgsteward/pgsteward/internal/models"
)

// CreateJob persists a freshly created job (status pending).
func (db *DB) CreateJob(ctx context.Context, j *models.Job) error {
	query := `
		INSERT INTO jobs (id, database_id, pipeline, status, progress, current_step,
		                  total_steps, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.Pool.Exec(ctx, query,
		j.ID, j.DatabaseID, j.Pipeline, j.Status, j.Progress, nullIfEmpty(j.CurrentStep),
		j.TotalSteps, j.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := jobSelect + ` WHERE id = $1`
	j, err := scanJob(db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ListJobs returns recent jobs, newest first.
func (db *DB) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	query := jobSelect + ` ORDER BY created_at DESC LIMIT $1`

	rows, err := db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// StartJob transitions pending → running. The WHERE clause prevents starting
// a job that was cancelled while still queued.
func (db *DB) StartJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE jobs SET status = $2, started_at = $3 WHERE id = $1 AND status = $4`,
		id, models.JobStatusRunning, time.Now(), models.JobStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to start job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateJobProgress records progress display state for a running job.
func (db *DB) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int, currentStep string) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE jobs SET progress = $2, current_step = $3 WHERE id = $1 AND status = $4`,
		id, progress, currentStep, models.JobStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// FinishJob transitions a running job to one terminal status. Terminal rows
// are never updated again: the WHERE clause only matches running jobs.
func (db *DB) FinishJob(ctx context.Context, id uuid.UUID, status models.JobStatus, jobErr string, result map[string]any) error {
	if !status.Terminal() {
		return models.ErrJobInvalidState
	}

	var resultJSON []byte
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to encode job result: %w", err)
		}
	}

	tag, err := db.Pool.Exec(ctx,
		`UPDATE jobs SET status = $2, error = $3, result = $4, completed_at = $5
		 WHERE id = $1 AND status = $6`,
		id, status, nullIfEmpty(jobErr), resultJSON, time.Now(), models.JobStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrJobInvalidState
	}
	return nil
}

// CancelPendingJob transitions pending → cancelled for jobs that never
// started. Running jobs are cancelled through their registry handle instead.
func (db *DB) CancelPendingJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE jobs SET status = $2, completed_at = $3 WHERE id = $1 AND status = $4`,
		id, models.JobStatusCancelled, time.Now(), models.JobStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel pending job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

const jobSelect = `
	SELECT id, database_id, pipeline, status, progress, current_step, total_steps,
	       started_at, completed_at, error, result, created_at
	FROM jobs
`

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		j      models.Job
		step   *string
		jobErr *string
		result []byte
	)
	if err := row.Scan(
		&j.ID, &j.DatabaseID, &j.Pipeline, &j.Status, &j.Progress, &step, &j.TotalSteps,
		&j.StartedAt, &j.CompletedAt, &jobErr, &result, &j.CreatedAt,
	); err != nil {
		return nil, err
	}
	if step != nil {
		j.CurrentStep = *step
	}
	if jobErr != nil {
		j.Error = *jobErr
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &j.Result); err != nil {
			return nil, fmt.Errorf("failed to decode job result: %w", err)
		}
	}
	return &j, nil
}
