package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pgsteward/pgsteward/internal/models"
)

// CreateDatabase registers a monitored database.
// Uses INSERT ... ON CONFLICT DO NOTHING on the name unique constraint so two
// concurrent registrations of the same name cannot both succeed.
func (db *DB) CreateDatabase(ctx context.Context, d *models.Database) error {
	query := `
		INSERT INTO databases (id, name, host, port, dbname, db_user, db_password, sslmode, autonomy_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`

	var insertedID uuid.UUID
	err := db.Pool.QueryRow(ctx, query,
		d.ID, d.Name, d.Host, d.Port, d.DBName, d.User, d.Password,
		d.SSLMode, d.AutonomyLevel, d.CreatedAt,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrDatabaseExists
		}
		return fmt.Errorf("failed to create database record: %w", err)
	}
	return nil
}

// GetDatabase retrieves a registered database by ID, including credentials.
func (db *DB) GetDatabase(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	query := `
		SELECT id, name, host, port, dbname, db_user, db_password, sslmode, autonomy_level, created_at
		FROM databases
		WHERE id = $1
	`

	var d models.Database
	err := db.Pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.Name, &d.Host, &d.Port, &d.DBName, &d.User, &d.Password,
		&d.SSLMode, &d.AutonomyLevel, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDatabaseNotFound
		}
		return nil, fmt.Errorf("failed to get database record: %w", err)
	}
	return &d, nil
}

// ListDatabases returns all registered databases, newest first.
func (db *DB) ListDatabases(ctx context.Context) ([]*models.Database, error) {
	query := `
		SELECT id, name, host, port, dbname, db_user, db_password, sslmode, autonomy_level, created_at
		FROM databases
		ORDER BY created_at DESC
	`

	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	var out []*models.Database
	for rows.Next() {
		var d models.Database
		if err := rows.Scan(
			&d.ID, &d.Name, &d.Host, &d.Port, &d.DBName, &d.User, &d.Password,
			&d.SSLMode, &d.AutonomyLevel, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan database record: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// DeleteDatabase removes a registered database and all dependent records.
func (db *DB) DeleteDatabase(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM databases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete database record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDatabaseNotFound
	}
	return nil
}

// GetAutonomyLevel returns the configured autonomy level for a database.
func (db *DB) GetAutonomyLevel(ctx context.Context, id uuid.UUID) (models.AutonomyLevel, error) {
	var level models.AutonomyLevel
	err := db.Pool.QueryRow(ctx, `SELECT autonomy_level FROM databases WHERE id = $1`, id).Scan(&level)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrDatabaseNotFound
		}
		return "", fmt.Errorf("failed to get autonomy level: %w", err)
	}
	return level, nil
}

// SetAutonomyLevel updates the configured autonomy level for a database.
// Invalid levels are rejected before touching the store.
func (db *DB) SetAutonomyLevel(ctx context.Context, id uuid.UUID, level models.AutonomyLevel) error {
	if !level.Valid() {
		return models.ErrInvalidAutonomyLevel
	}
	tag, err := db.Pool.Exec(ctx, `UPDATE databases SET autonomy_level = $2 WHERE id = $1`, id, level)
	if err != nil {
		return fmt.Errorf("failed to set autonomy level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrDatabaseNotFound
	}
	return nil
}
