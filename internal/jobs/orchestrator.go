// Package jobs runs pipelines as cancellable, progress-tracked background
// work. The orchestrator owns the goroutines; pipeline logic stays in the
// services package.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/pgsteward/pgsteward/internal/metrics"
	"github.com/pgsteward/pgsteward/internal/models"
)

// Store is the slice of the state store the orchestrator needs.
type Store interface {
	CreateJob(ctx context.Context, j *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*models.Job, error)
	StartJob(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int, currentStep string) error
	FinishJob(ctx context.Context, id uuid.UUID, status models.JobStatus, jobErr string, result map[string]any) error
	CancelPendingJob(ctx context.Context, id uuid.UUID) (bool, error)
}

// ProgressFunc reports that a pipeline is about to run the given step.
type ProgressFunc func(step int, name string)

// PipelineFunc is one pipeline invocation. It must honor ctx cancellation
// between steps and return the run's result on success.
type PipelineFunc func(ctx context.Context, progress ProgressFunc) (map[string]any, error)

// Orchestrator tracks in-flight jobs and bounds how many run concurrently.
//
// The cancel registry is process-local: after a restart, persisted running
// rows survive but their handles are gone and they can no longer be
// cancelled cooperatively.
type Orchestrator struct {
	store  Store
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc

	wg sync.WaitGroup
}

// New creates an orchestrator allowing at most maxConcurrent jobs to
// execute at once. Jobs beyond the limit queue as pending.
func New(store Store, maxConcurrent int64, logger *slog.Logger) *Orchestrator {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Orchestrator{
		store:   store,
		logger:  logger.With("component", "jobs"),
		sem:     semaphore.NewWeighted(maxConcurrent),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Create persists a new pending job for one pipeline invocation. totalSteps
// is display metadata from the pipeline definition.
func (o *Orchestrator) Create(ctx context.Context, databaseID uuid.UUID, pipeline models.Pipeline, totalSteps int) (*models.Job, error) {
	if !pipeline.Valid() {
		return nil, models.ErrJobInvalidState
	}

	job := &models.Job{
		ID:         uuid.New(),
		DatabaseID: databaseID,
		Pipeline:   pipeline,
		Status:     models.JobStatusPending,
		TotalSteps: totalSteps,
		CreatedAt:  time.Now().UTC(),
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Start launches the job's pipeline in the background and returns
// immediately. The job stays pending until a concurrency slot frees, then
// transitions to running and finally to exactly one terminal status.
func (o *Orchestrator) Start(job *models.Job, fn PipelineFunc) {
	runCtx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.cancels[job.ID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go o.run(runCtx, job, fn)
}

func (o *Orchestrator) run(ctx context.Context, job *models.Job, fn PipelineFunc) {
	defer o.wg.Done()
	defer o.forget(job.ID)

	// State writes get their own context: a cancelled run must still be
	// able to record that it was cancelled.
	stateCtx, stateCancel := context.WithCancel(context.Background())
	defer stateCancel()

	// Queue for a slot. Cancellation while queued leaves the row pending;
	// flip it to cancelled directly.
	if err := o.sem.Acquire(ctx, 1); err != nil {
		if _, cancelErr := o.store.CancelPendingJob(stateCtx, job.ID); cancelErr != nil {
			o.logger.Error("failed to cancel queued job", "job_id", job.ID, "error", cancelErr)
		}
		return
	}
	defer o.sem.Release(1)

	started, err := o.store.StartJob(stateCtx, job.ID)
	if err != nil {
		o.logger.Error("failed to start job", "job_id", job.ID, "error", err)
		return
	}
	if !started {
		// Cancelled while pending; the row is already terminal.
		return
	}

	metrics.JobStarted()
	defer metrics.JobFinished()

	o.logger.Info("job started", "job_id", job.ID, "pipeline", job.Pipeline, "database_id", job.DatabaseID)
	startedAt := time.Now()

	progress := func(step int, name string) {
		pct := 0
		if job.TotalSteps > 0 {
			pct = step * 100 / job.TotalSteps
		}
		if err := o.store.UpdateJobProgress(stateCtx, job.ID, pct, name); err != nil {
			o.logger.Warn("failed to update job progress", "job_id", job.ID, "error", err)
		}
	}

	result, runErr := fn(ctx, progress)
	elapsed := time.Since(startedAt)

	switch {
	case runErr == nil:
		progress(job.TotalSteps, "completed")
		o.finish(stateCtx, job, models.JobStatusCompleted, "", result)
		metrics.RecordPipelineRun(string(job.Pipeline), "completed", elapsed.Seconds())
		o.logger.Info("job completed", "job_id", job.ID, "pipeline", job.Pipeline, "duration", elapsed)

	case errors.Is(runErr, context.Canceled) || ctx.Err() != nil:
		o.finish(stateCtx, job, models.JobStatusCancelled, "cancelled", nil)
		metrics.RecordPipelineRun(string(job.Pipeline), "cancelled", elapsed.Seconds())
		o.logger.Info("job cancelled", "job_id", job.ID, "pipeline", job.Pipeline)

	default:
		o.finish(stateCtx, job, models.JobStatusFailed, runErr.Error(), nil)
		metrics.RecordPipelineRun(string(job.Pipeline), "failed", elapsed.Seconds())
		o.logger.Error("job failed", "job_id", job.ID, "pipeline", job.Pipeline, "error", runErr)
	}
}

func (o *Orchestrator) finish(ctx context.Context, job *models.Job, status models.JobStatus, jobErr string, result map[string]any) {
	if err := o.store.FinishJob(ctx, job.ID, status, jobErr, result); err != nil {
		o.logger.Error("failed to record job completion",
			"job_id", job.ID, "status", status, "error", err)
	}
}

// Cancel requests cancellation of one job.
//
// Running (or queued) jobs are cancelled cooperatively through their context;
// the terminal transition happens when the pipeline observes it. Pending jobs
// without a live goroutine flip to cancelled directly. Terminal jobs are an
// idempotent no-op. A running job with no handle (left over from a previous
// process) is not cancellable.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	o.mu.Lock()
	cancel, inFlight := o.cancels[id]
	o.mu.Unlock()

	if inFlight {
		cancel()
		return o.store.GetJob(ctx, id)
	}

	cancelled, err := o.store.CancelPendingJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if cancelled {
		return o.store.GetJob(ctx, id)
	}

	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}
	return nil, models.ErrJobNotCancellable
}

// Get returns a single job by ID.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return o.store.GetJob(ctx, id)
}

// List returns recent jobs, newest first.
func (o *Orchestrator) List(ctx context.Context, limit int) ([]*models.Job, error) {
	return o.store.ListJobs(ctx, limit)
}

// InFlight reports how many jobs currently hold a goroutine, queued or
// executing.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.cancels)
}

// Shutdown cancels every in-flight job and waits for their goroutines to
// record terminal state, or until ctx expires.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) forget(id uuid.UUID) {
	o.mu.Lock()
	cancel, ok := o.cancels[id]
	delete(o.cancels, id)
	o.mu.Unlock()
	if ok {
		cancel()
	}
}
