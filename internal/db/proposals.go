package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pgsteward/pgsteward/internal/models"
)

// InsertProposal persists a freshly synthesized proposal (status pending).
func (db *DB) InsertProposal(ctx context.Context, p *models.Proposal) error {
	query := `
		INSERT INTO proposals (id, database_id, signal_id, proposal_type, table_name,
		                       sql_command, justification, estimated_impact, confidence,
		                       status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := db.Pool.Exec(ctx, query,
		p.ID, p.DatabaseID, p.SignalID, p.Type, p.Table,
		p.SQLCommand, p.Justification, nullIfEmpty(p.EstimatedImpact), p.Confidence,
		p.Status, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert proposal: %w", err)
	}
	return nil
}

// GetProposal retrieves a proposal by ID.
func (db *DB) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	query := proposalSelect + ` WHERE id = $1`
	p, err := scanProposal(db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProposalNotFound
		}
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

// ListProposals returns proposals for a database, newest first. An empty
// status lists all proposals.
func (db *DB) ListProposals(ctx context.Context, databaseID uuid.UUID, status models.ProposalStatus, limit int) ([]*models.Proposal, error) {
	if limit <= 0 {
		limit = 100
	}

	query := proposalSelect + `
		WHERE database_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := db.Pool.Query(ctx, query, databaseID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var out []*models.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DecideProposal transitions a pending proposal to approved or rejected.
// The WHERE clause enforces the lifecycle: deciding an already-decided
// proposal reports ErrProposalNotPending rather than overwriting the verdict.
func (db *DB) DecideProposal(ctx context.Context, id uuid.UUID, decision models.ProposalStatus) (*models.Proposal, error) {
	if decision != models.ProposalStatusApproved && decision != models.ProposalStatusRejected {
		return nil, fmt.Errorf("invalid proposal decision %q", decision)
	}

	tag, err := db.Pool.Exec(ctx,
		`UPDATE proposals SET status = $2, decided_at = $3 WHERE id = $1 AND status = $4`,
		id, decision, time.Now(), models.ProposalStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to decide proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := db.GetProposal(ctx, id); err != nil {
			return nil, err
		}
		return nil, models.ErrProposalNotPending
	}
	return db.GetProposal(ctx, id)
}

// MarkProposalExecuted transitions approved → executed. Returns
// ErrProposalNotApproved when the proposal is in any other state, so the
// transition cannot skip the approval step.
func (db *DB) MarkProposalExecuted(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE proposals SET status = $2, executed_at = $3 WHERE id = $1 AND status = $4`,
		id, models.ProposalStatusExecuted, time.Now(), models.ProposalStatusApproved,
	)
	if err != nil {
		return fmt.Errorf("failed to mark proposal executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrProposalNotApproved
	}
	return nil
}

const proposalSelect = `
	SELECT id, database_id, signal_id, proposal_type, table_name, sql_command,
	       justification, estimated_impact, confidence, status, created_at,
	       decided_at, executed_at
	FROM proposals
`

func scanProposal(row rowScanner) (*models.Proposal, error) {
	var (
		p      models.Proposal
		impact *string
	)
	if err := row.Scan(
		&p.ID, &p.DatabaseID, &p.SignalID, &p.Type, &p.Table, &p.SQLCommand,
		&p.Justification, &impact, &p.Confidence, &p.Status, &p.CreatedAt,
		&p.DecidedAt, &p.ExecutedAt,
	); err != nil {
		return nil, err
	}
	if impact != nil {
		p.EstimatedImpact = *impact
	}
	return &p, nil
}
