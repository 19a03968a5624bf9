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

// SaveSnapshot persists a metric snapshot and prunes older captures, keeping
// the most recent few per database for trend detection.
func (db *DB) SaveSnapshot(ctx context.Context, databaseID uuid.UUID, snap *models.MetricSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if _, err := db.Pool.Exec(ctx,
		`INSERT INTO metric_snapshots (database_id, captured_at, data) VALUES ($1, $2, $3)`,
		databaseID, snap.CapturedAt, data,
	); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	// Keep the last 10 captures per database.
	_, err = db.Pool.Exec(ctx, `
		DELETE FROM metric_snapshots
		WHERE database_id = $1 AND id NOT IN (
			SELECT id FROM metric_snapshots
			WHERE database_id = $1
			ORDER BY captured_at DESC
			LIMIT 10
		)
	`, databaseID)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot for a database, or nil
// when none has been captured yet.
func (db *DB) LatestSnapshot(ctx context.Context, databaseID uuid.UUID) (*models.MetricSnapshot, error) {
	var data []byte
	err := db.Pool.QueryRow(ctx, `
		SELECT data FROM metric_snapshots
		WHERE database_id = $1
		ORDER BY captured_at DESC
		LIMIT 1
	`, databaseID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap models.MetricSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
