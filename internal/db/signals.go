package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pgsteward/pgsteward/internal/models"
)

// InsertSignals persists a batch of detected signals in detection order.
func (db *DB) InsertSignals(ctx context.Context, signals []*models.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	query := `
		INSERT INTO signals (id, database_id, signal_type, severity, description, details,
		                     table_name, query_fingerprint, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, sig := range signals {
		details, err := json.Marshal(sig.Details)
		if err != nil {
			return fmt.Errorf("failed to encode signal details: %w", err)
		}
		if _, err := db.Pool.Exec(ctx, query,
			sig.ID, sig.DatabaseID, sig.Type, sig.Severity, sig.Description, details,
			nullIfEmpty(sig.Table), nullIfEmpty(sig.QueryFingerprint), sig.Status, sig.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert signal: %w", err)
		}
	}
	return nil
}

// GetSignal retrieves a signal by ID.
func (db *DB) GetSignal(ctx context.Context, id uuid.UUID) (*models.Signal, error) {
	query := `
		SELECT id, database_id, signal_type, severity, description, details,
		       table_name, query_fingerprint, status, created_at
		FROM signals
		WHERE id = $1
	`
	sig, err := scanSignal(db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSignalNotFound
		}
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}
	return sig, nil
}

// ListSignals returns signals for a database, newest first. An empty status
// lists all signals.
func (db *DB) ListSignals(ctx context.Context, databaseID uuid.UUID, status models.SignalStatus, limit int) ([]*models.Signal, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, database_id, signal_type, severity, description, details,
		       table_name, query_fingerprint, status, created_at
		FROM signals
		WHERE database_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := db.Pool.Query(ctx, query, databaseID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer rows.Close()

	var out []*models.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// MarkSignalProcessed transitions a signal new → processed. The WHERE clause
// makes the transition happen exactly once; a second call reports
// ErrSignalAlreadyProcessed instead of reopening the signal.
func (db *DB) MarkSignalProcessed(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE signals SET status = $2 WHERE id = $1 AND status = $3`,
		id, models.SignalStatusProcessed, models.SignalStatusNew,
	)
	if err != nil {
		return fmt.Errorf("failed to mark signal processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM signals WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to mark signal processed: %w", err)
		}
		if !exists {
			return models.ErrSignalNotFound
		}
		return models.ErrSignalAlreadyProcessed
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (*models.Signal, error) {
	var (
		sig         models.Signal
		details     []byte
		table       *string
		fingerprint *string
	)
	if err := row.Scan(
		&sig.ID, &sig.DatabaseID, &sig.Type, &sig.Severity, &sig.Description, &details,
		&table, &fingerprint, &sig.Status, &sig.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &sig.Details); err != nil {
			return nil, fmt.Errorf("failed to decode signal details: %w", err)
		}
	}
	if table != nil {
		sig.Table = *table
	}
	if fingerprint != nil {
		sig.QueryFingerprint = *fingerprint
	}
	return &sig, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
