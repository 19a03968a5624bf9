package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/advisor"
	"github.com/pgsteward/pgsteward/internal/db"
	"github.com/pgsteward/pgsteward/internal/exec"
	"github.com/pgsteward/pgsteward/internal/explain"
	"github.com/pgsteward/pgsteward/internal/jobs"
	"github.com/pgsteward/pgsteward/internal/metadata"
	"github.com/pgsteward/pgsteward/internal/metrics"
	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/target"
)

// analysisStepCount mirrors the step list in Run. Display metadata only.
const analysisStepCount = 7

// AnalysisService runs the core decision pipeline: collect metrics, detect
// signals, synthesize proposals, and auto-execute whatever the autonomy
// gate allows. It also owns the read-only schema review.
type AnalysisService struct {
	store     *db.DB
	targets   *target.Manager
	collector *metadata.Collector
	detector  *advisor.Detector
	synth     *advisor.Synthesizer
	reviewer  *advisor.SchemaReviewer
	executor  *exec.Executor
	explainer *explain.Explainer
	logger    *slog.Logger
}

// NewAnalysisService creates a new analysis service.
func NewAnalysisService(store *db.DB, targets *target.Manager, collector *metadata.Collector, executor *exec.Executor, explainer *explain.Explainer, logger *slog.Logger) *AnalysisService {
	return &AnalysisService{
		store:     store,
		targets:   targets,
		collector: collector,
		detector:  advisor.NewDetector(logger),
		synth:     advisor.NewSynthesizer(logger),
		reviewer:  advisor.NewSchemaReviewer(logger),
		executor:  executor,
		explainer: explainer,
		logger:    logger.With("service", "analysis"),
	}
}

// TotalSteps reports the pipeline's step count for job progress display.
func (s *AnalysisService) TotalSteps() int { return analysisStepCount }

// analysisRun is the mutable state threaded through one pipeline run.
type analysisRun struct {
	databaseID uuid.UUID
	database   *models.Database
	target     *target.Target
	current    *models.MetricSnapshot
	previous   *models.MetricSnapshot
	signals    []*models.Signal
	proposals  []*models.Proposal
	approved   int
	executed   int
	summary    string
}

// Run executes the analysis pipeline for one database. A connectivity or
// persistence failure aborts the run: unprocessed signals stay new and are
// picked up again by the next run.
func (s *AnalysisService) Run(ctx context.Context, databaseID uuid.UUID, progress jobs.ProgressFunc) (map[string]any, error) {
	run := &analysisRun{databaseID: databaseID}

	steps := []step{
		{"connect", func(ctx context.Context) error { return s.connect(ctx, run) }},
		{"collect_metrics", func(ctx context.Context) error { return s.collectMetrics(ctx, run) }},
		{"detect_signals", func(ctx context.Context) error { return s.detectSignals(ctx, run) }},
		{"persist_signals", func(ctx context.Context) error { return s.persistSignals(ctx, run) }},
		{"synthesize_proposals", func(ctx context.Context) error { return s.synthesizeProposals(ctx, run) }},
		{"auto_execute", func(ctx context.Context) error { return s.autoExecute(ctx, run) }},
		{"summarize", func(ctx context.Context) error { return s.summarize(ctx, run) }},
	}

	if err := runSteps(ctx, progress, steps); err != nil {
		return nil, err
	}

	return map[string]any{
		"signals":       len(run.signals),
		"proposals":     len(run.proposals),
		"auto_approved": run.approved,
		"auto_executed": run.executed,
		"summary":       run.summary,
	}, nil
}

func (s *AnalysisService) connect(ctx context.Context, run *analysisRun) error {
	database, t, err := openTarget(ctx, s.store, s.targets, run.databaseID)
	if err != nil {
		return err
	}
	run.database = database
	run.target = t
	return nil
}

func (s *AnalysisService) collectMetrics(ctx context.Context, run *analysisRun) error {
	snapshot, err := s.collector.CollectSnapshot(ctx, run.target)
	if err != nil {
		return err
	}
	run.current = snapshot
	return nil
}

func (s *AnalysisService) detectSignals(ctx context.Context, run *analysisRun) error {
	previous, err := s.store.LatestSnapshot(ctx, run.databaseID)
	if err != nil {
		return err
	}
	run.previous = previous
	run.signals = s.detector.Detect(run.databaseID, run.current, run.previous)
	return nil
}

func (s *AnalysisService) persistSignals(ctx context.Context, run *analysisRun) error {
	if err := s.store.InsertSignals(ctx, run.signals); err != nil {
		return err
	}
	for _, sig := range run.signals {
		metrics.RecordSignal(string(sig.Type), string(sig.Severity))
	}
	// The snapshot becomes the next run's trend baseline.
	return s.store.SaveSnapshot(ctx, run.databaseID, run.current)
}

// synthesizeProposals converts each new signal into proposals and marks it
// processed. A signal is only marked once its proposals are persisted: an
// abort mid-loop leaves the remaining signals new for the next run.
func (s *AnalysisService) synthesizeProposals(ctx context.Context, run *analysisRun) error {
	for _, sig := range run.signals {
		if err := ctx.Err(); err != nil {
			return err
		}

		schemas := map[string]*models.TableSchema{}
		if tables := s.synth.TablesFor(sig); len(tables) > 0 {
			loaded, err := s.collector.TableSchemas(ctx, run.target, tables)
			if err != nil {
				return err
			}
			schemas = loaded
		}

		proposals := s.synth.Synthesize(sig, schemas)
		for _, p := range proposals {
			if err := s.store.InsertProposal(ctx, p); err != nil {
				return err
			}
			metrics.RecordProposal(string(p.Type))
		}

		if err := s.store.MarkSignalProcessed(ctx, sig.ID); err != nil &&
			!errors.Is(err, models.ErrSignalAlreadyProcessed) {
			return err
		}
		run.proposals = append(run.proposals, proposals...)
	}

	s.logger.Info("proposals synthesized",
		"database_id", run.databaseID, "signals", len(run.signals), "proposals", len(run.proposals))
	return nil
}

// autoExecute approves and executes pending proposals permitted by the
// database's autonomy level. Individual execution failures are logged and
// skipped: the proposal stays approved and retryable, and one bad command
// must not abort the rest of the run.
func (s *AnalysisService) autoExecute(ctx context.Context, run *analysisRun) error {
	level, err := s.store.GetAutonomyLevel(ctx, run.databaseID)
	if err != nil {
		return err
	}
	if level == models.AutonomyObservation || level == models.AutonomyAssisted {
		return nil
	}

	for i, p := range run.proposals {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.Status != models.ProposalStatusPending {
			continue
		}
		if !exec.CanAutoExecute(exec.Classify(p.SQLCommand), level) {
			continue
		}

		approved, err := s.store.DecideProposal(ctx, p.ID, models.ProposalStatusApproved)
		if err != nil {
			s.logger.Warn("auto-approval failed", "proposal_id", p.ID, "error", err)
			continue
		}
		run.approved++
		run.proposals[i] = approved

		if _, err := s.executor.ExecuteProposal(ctx, run.target, approved); err != nil {
			s.logger.Warn("auto-execution failed", "proposal_id", p.ID, "error", err)
			continue
		}
		run.executed++
	}
	return nil
}

// summarize asks the explainer for a digest. The explainer degrades to
// deterministic fallback text on its own; this step cannot fail the run.
func (s *AnalysisService) summarize(ctx context.Context, run *analysisRun) error {
	run.summary = s.explainer.Summary(ctx, explain.SummaryInput{
		DatabaseName: run.database.Name,
		Signals:      run.signals,
		Proposals:    run.proposals,
	})
	return nil
}

// ReviewSchema loads every user table's schema and returns advisory
// findings. Read-only; nothing is persisted.
func (s *AnalysisService) ReviewSchema(ctx context.Context, databaseID uuid.UUID) ([]models.SchemaFinding, error) {
	_, t, err := openTarget(ctx, s.store, s.targets, databaseID)
	if err != nil {
		return nil, err
	}

	tables, err := s.collector.ListTables(ctx, t)
	if err != nil {
		return nil, err
	}
	schemas, err := s.collector.TableSchemas(ctx, t, tables)
	if err != nil {
		return nil, err
	}

	return s.reviewer.Review(schemas), nil
}
