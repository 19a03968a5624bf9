package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/db"
	"github.com/pgsteward/pgsteward/internal/explain"
	"github.com/pgsteward/pgsteward/internal/models"
)

// reportRecentLimit caps how much recent activity one report covers.
const reportRecentLimit = 20

// ActivityReport is an executive digest of one database's recent activity.
type ActivityReport struct {
	Database  *models.Database     `json:"database"`
	Autonomy  models.AutonomyLevel `json:"autonomy_level"`
	Signals   []*models.Signal     `json:"signals"`
	Proposals []*models.Proposal   `json:"proposals"`
	Actions   []*models.Action     `json:"actions"`
	Summary   string               `json:"summary"`
}

// ReportService assembles activity digests and the audit trail.
type ReportService struct {
	store     *db.DB
	explainer *explain.Explainer
	logger    *slog.Logger
}

// NewReportService creates a new report service.
func NewReportService(store *db.DB, explainer *explain.Explainer, logger *slog.Logger) *ReportService {
	return &ReportService{
		store:     store,
		explainer: explainer,
		logger:    logger.With("service", "reports"),
	}
}

// Actions returns the audit trail for a database, newest first.
func (s *ReportService) Actions(ctx context.Context, databaseID uuid.UUID, limit int) ([]*models.Action, error) {
	return s.store.ListActions(ctx, databaseID, limit)
}

// Report builds an activity digest from recent signals, proposals, and
// actions. The summary text is explainer-backed and degrades to a
// deterministic fallback when no model is configured.
func (s *ReportService) Report(ctx context.Context, databaseID uuid.UUID) (*ActivityReport, error) {
	database, err := s.store.GetDatabase(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	level, err := s.store.GetAutonomyLevel(ctx, databaseID)
	if err != nil {
		return nil, err
	}

	signals, err := s.store.ListSignals(ctx, databaseID, "", reportRecentLimit)
	if err != nil {
		return nil, err
	}
	proposals, err := s.store.ListProposals(ctx, databaseID, "", reportRecentLimit)
	if err != nil {
		return nil, err
	}
	actions, err := s.store.ListActions(ctx, databaseID, reportRecentLimit)
	if err != nil {
		return nil, err
	}

	summary := s.explainer.Summary(ctx, explain.SummaryInput{
		DatabaseName: database.Name,
		Signals:      signals,
		Proposals:    proposals,
		Actions:      actions,
	})

	return &ActivityReport{
		Database:  database,
		Autonomy:  level,
		Signals:   signals,
		Proposals: proposals,
		Actions:   actions,
		Summary:   summary,
	}, nil
}
