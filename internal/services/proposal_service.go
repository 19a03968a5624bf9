package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/db"
	"github.com/pgsteward/pgsteward/internal/exec"
	"github.com/pgsteward/pgsteward/internal/explain"
	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/target"
)

// ProposalService owns the human side of the proposal lifecycle: review,
// approval, rejection, and manual execution.
type ProposalService struct {
	store     *db.DB
	targets   *target.Manager
	executor  *exec.Executor
	explainer *explain.Explainer
	logger    *slog.Logger
}

// NewProposalService creates a new proposal service.
func NewProposalService(store *db.DB, targets *target.Manager, executor *exec.Executor, explainer *explain.Explainer, logger *slog.Logger) *ProposalService {
	return &ProposalService{
		store:     store,
		targets:   targets,
		executor:  executor,
		explainer: explainer,
		logger:    logger.With("service", "proposals"),
	}
}

// List returns proposals, optionally filtered by database and status.
func (s *ProposalService) List(ctx context.Context, databaseID uuid.UUID, status models.ProposalStatus, limit int) ([]*models.Proposal, error) {
	return s.store.ListProposals(ctx, databaseID, status, limit)
}

// Get returns a single proposal by ID.
func (s *ProposalService) Get(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return s.store.GetProposal(ctx, id)
}

// ApprovalResult pairs the decided proposal with the outcome of the
// optional immediate execution: "approved", "executed", or
// "approved_but_failed".
type ApprovalResult struct {
	Proposal *models.Proposal `json:"proposal"`
	Status   string           `json:"status"`
}

// Approve marks a pending proposal approved and, when execute is set, runs
// it immediately. An execution failure does not undo the approval: the
// proposal stays approved and can be retried via Execute.
func (s *ProposalService) Approve(ctx context.Context, id uuid.UUID, execute bool) (*ApprovalResult, error) {
	p, err := s.store.DecideProposal(ctx, id, models.ProposalStatusApproved)
	if err != nil {
		return nil, err
	}
	if !execute {
		return &ApprovalResult{Proposal: p, Status: "approved"}, nil
	}

	_, t, err := openTarget(ctx, s.store, s.targets, p.DatabaseID)
	if err != nil {
		s.logger.Warn("execution after approval failed", "proposal_id", id, "error", err)
		return &ApprovalResult{Proposal: p, Status: "approved_but_failed"}, nil
	}
	if _, err := s.executor.ExecuteProposal(ctx, t, p); err != nil {
		s.logger.Warn("execution after approval failed", "proposal_id", id, "error", err)
		return &ApprovalResult{Proposal: p, Status: "approved_but_failed"}, nil
	}

	return &ApprovalResult{Proposal: p, Status: "executed"}, nil
}

// Reject marks a pending proposal rejected.
func (s *ProposalService) Reject(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	return s.store.DecideProposal(ctx, id, models.ProposalStatusRejected)
}

// Execute runs an approved proposal against its target database. The
// returned action is persisted whether or not the command succeeded.
func (s *ProposalService) Execute(ctx context.Context, id uuid.UUID) (*models.Action, error) {
	p, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}

	_, t, err := openTarget(ctx, s.store, s.targets, p.DatabaseID)
	if err != nil {
		return nil, err
	}

	return s.executor.ExecuteProposal(ctx, t, p)
}

// Explain produces a plain-language explanation of the proposal.
func (s *ProposalService) Explain(ctx context.Context, id uuid.UUID) (string, error) {
	p, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return "", err
	}
	return s.explainer.ExplainProposal(ctx, p), nil
}
