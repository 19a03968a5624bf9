package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/models"
)

// InsertAction appends one audit record. Actions are never updated or
// deleted afterwards; there is intentionally no mutating counterpart.
func (db *DB) InsertAction(ctx context.Context, a *models.Action) error {
	query := `
		INSERT INTO actions (id, database_id, proposal_id, agent, action_type, sql_command,
		                     success, duration_ms, result, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := db.Pool.Exec(ctx, query,
		a.ID, a.DatabaseID, a.ProposalID, a.Agent, a.ActionType, a.SQLCommand,
		a.Success, a.DurationMs, nullIfEmpty(a.Result), nullIfEmpty(a.Error), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	return nil
}

// ListActions returns the audit trail for a database, newest first.
func (db *DB) ListActions(ctx context.Context, databaseID uuid.UUID, limit int) ([]*models.Action, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, database_id, proposal_id, agent, action_type, sql_command,
		       success, duration_ms, result, error, created_at
		FROM actions
		WHERE database_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := db.Pool.Query(ctx, query, databaseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var out []*models.Action
	for rows.Next() {
		var (
			a         models.Action
			result    *string
			actionErr *string
		)
		if err := rows.Scan(
			&a.ID, &a.DatabaseID, &a.ProposalID, &a.Agent, &a.ActionType, &a.SQLCommand,
			&a.Success, &a.DurationMs, &result, &actionErr, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		if result != nil {
			a.Result = *result
		}
		if actionErr != nil {
			a.Error = *actionErr
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
