package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/advisor"
	"github.com/pgsteward/pgsteward/internal/db"
	"github.com/pgsteward/pgsteward/internal/jobs"
	"github.com/pgsteward/pgsteward/internal/metadata"
	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/target"
)

// partitionStepCount mirrors the step list in Run.
const partitionStepCount = 5

// PartitionService analyzes large tables and recommends partitioning
// strategies. Advisory only: it produces migration plans for humans and
// never touches the target beyond reads.
type PartitionService struct {
	store     *db.DB
	targets   *target.Manager
	collector *metadata.Collector
	advisor   *advisor.PartitionAdvisor
	logger    *slog.Logger
}

// NewPartitionService creates a new partition advisory service.
func NewPartitionService(store *db.DB, targets *target.Manager, collector *metadata.Collector, logger *slog.Logger) *PartitionService {
	return &PartitionService{
		store:     store,
		targets:   targets,
		collector: collector,
		advisor:   advisor.NewPartitionAdvisor(logger),
		logger:    logger.With("service", "partition"),
	}
}

// TotalSteps reports the pipeline's step count for job progress display.
func (s *PartitionService) TotalSteps() int { return partitionStepCount }

type partitionRun struct {
	databaseID      uuid.UUID
	database        *models.Database
	target          *target.Target
	candidates      []models.PartitionCandidate
	samplesByTable  map[string][]string
	recommendations []models.PartitionRecommendation
}

// Run executes the partition advisory pipeline for one database.
func (s *PartitionService) Run(ctx context.Context, databaseID uuid.UUID, progress jobs.ProgressFunc) (map[string]any, error) {
	run := &partitionRun{databaseID: databaseID}

	steps := []step{
		{"connect", func(ctx context.Context) error { return s.connect(ctx, run) }},
		{"find_candidates", func(ctx context.Context) error { return s.findCandidates(ctx, run) }},
		{"sample_queries", func(ctx context.Context) error { return s.sampleQueries(ctx, run) }},
		{"advise", func(ctx context.Context) error { return s.advise(ctx, run) }},
		{"report", func(ctx context.Context) error { return s.report(ctx, run) }},
	}

	if err := runSteps(ctx, progress, steps); err != nil {
		return nil, err
	}

	return map[string]any{
		"candidates":      len(run.candidates),
		"recommendations": run.recommendations,
	}, nil
}

func (s *PartitionService) connect(ctx context.Context, run *partitionRun) error {
	database, t, err := openTarget(ctx, s.store, s.targets, run.databaseID)
	if err != nil {
		return err
	}
	run.database = database
	run.target = t
	return nil
}

func (s *PartitionService) findCandidates(ctx context.Context, run *partitionRun) error {
	candidates, err := s.collector.PartitionCandidates(ctx, run.target, advisor.PartitionMinSizeBytes)
	if err != nil {
		return err
	}
	run.candidates = candidates
	return nil
}

// sampleQueries pulls recent statement texts per candidate table so the
// advisor can cross-check column scores against real filter usage. Missing
// pg_stat_statements degrades to no samples, not an error.
func (s *PartitionService) sampleQueries(ctx context.Context, run *partitionRun) error {
	run.samplesByTable = make(map[string][]string, len(run.candidates))
	for _, c := range run.candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		samples, err := s.collector.SampleQueries(ctx, run.target, c.Table)
		if err != nil {
			s.logger.Debug("query sampling unavailable", "table", c.Table, "error", err)
			continue
		}
		run.samplesByTable[c.Table] = samples
	}
	return nil
}

func (s *PartitionService) advise(_ context.Context, run *partitionRun) error {
	run.recommendations = s.advisor.Advise(run.candidates, run.samplesByTable)
	return nil
}

func (s *PartitionService) report(_ context.Context, run *partitionRun) error {
	s.logger.Info("partition analysis finished",
		"database_id", run.databaseID,
		"candidates", len(run.candidates), "recommendations", len(run.recommendations))
	return nil
}
