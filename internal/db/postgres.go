// Package db provides the advisor's state store on PostgreSQL.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgsteward/pgsteward/pkg/config"
)

// DB wraps the state store connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new state store connection pool.
func New(ctx context.Context, cfg *config.StateDBConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse state store config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	// Configure connection settings
	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping state store: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the state store connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Health checks the state store health.
func (db *DB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// BeginTx begins a new transaction.
func (db *DB) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return db.Pool.Begin(ctx)
}

// RunMigrations runs all state store migrations.
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		migrationCreateDatabasesTable,
		migrationCreateSignalsTable,
		migrationCreateProposalsTable,
		migrationCreateActionsTable,
		migrationCreateJobsTable,
		migrationCreateSnapshotsTable,
		migrationCreateIndexes,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	return nil
}

const migrationCreateDatabasesTable = `
CREATE TABLE IF NOT EXISTS databases (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(63) NOT NULL UNIQUE,
    host VARCHAR(255) NOT NULL,
    port INTEGER NOT NULL DEFAULT 5432,
    dbname VARCHAR(63) NOT NULL,
    db_user VARCHAR(63) NOT NULL,
    db_password TEXT NOT NULL,
    sslmode VARCHAR(20) NOT NULL DEFAULT 'prefer',
    autonomy_level VARCHAR(20) NOT NULL DEFAULT 'assisted',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migrationCreateSignalsTable = `
CREATE TABLE IF NOT EXISTS signals (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    database_id UUID NOT NULL REFERENCES databases(id) ON DELETE CASCADE,
    signal_type VARCHAR(50) NOT NULL,
    severity VARCHAR(10) NOT NULL,
    description TEXT NOT NULL,
    details JSONB,
    table_name VARCHAR(255),
    query_fingerprint VARCHAR(64),
    status VARCHAR(20) NOT NULL DEFAULT 'new',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migrationCreateProposalsTable = `
CREATE TABLE IF NOT EXISTS proposals (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    database_id UUID NOT NULL REFERENCES databases(id) ON DELETE CASCADE,
    signal_id UUID REFERENCES signals(id) ON DELETE SET NULL,
    proposal_type VARCHAR(50) NOT NULL,
    table_name VARCHAR(255) NOT NULL,
    sql_command TEXT NOT NULL,
    justification TEXT NOT NULL,
    estimated_impact TEXT,
    confidence DOUBLE PRECISION NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    decided_at TIMESTAMP WITH TIME ZONE,
    executed_at TIMESTAMP WITH TIME ZONE
);
`

const migrationCreateActionsTable = `
CREATE TABLE IF NOT EXISTS actions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    database_id UUID NOT NULL REFERENCES databases(id) ON DELETE CASCADE,
    proposal_id UUID REFERENCES proposals(id) ON DELETE SET NULL,
    agent VARCHAR(50) NOT NULL,
    action_type VARCHAR(50) NOT NULL,
    sql_command TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    result TEXT,
    error TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migrationCreateJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
    id UUID PRIMARY KEY,
    database_id UUID NOT NULL REFERENCES databases(id) ON DELETE CASCADE,
    pipeline VARCHAR(20) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    progress INTEGER NOT NULL DEFAULT 0,
    current_step VARCHAR(100),
    total_steps INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    error TEXT,
    result JSONB,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migrationCreateSnapshotsTable = `
CREATE TABLE IF NOT EXISTS metric_snapshots (
    id BIGSERIAL PRIMARY KEY,
    database_id UUID NOT NULL REFERENCES databases(id) ON DELETE CASCADE,
    captured_at TIMESTAMP WITH TIME ZONE NOT NULL,
    data JSONB NOT NULL
);
`

const migrationCreateIndexes = `
CREATE INDEX IF NOT EXISTS idx_signals_database_status ON signals(database_id, status);
CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_proposals_database_status ON proposals(database_id, status);
CREATE INDEX IF NOT EXISTS idx_proposals_signal_id ON proposals(signal_id);
CREATE INDEX IF NOT EXISTS idx_actions_database_id ON actions(database_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_database_id ON jobs(database_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_metric_snapshots_database ON metric_snapshots(database_id, captured_at DESC);
`
