// Package target manages connection pools to monitored PostgreSQL databases.
//
// Each registered database gets two pools: a read pool for metadata and
// statistics queries, and a deliberately small write pool for executing
// approved commands. Keeping them separate means a long-running CREATE INDEX
// CONCURRENTLY can never starve the collector of connections.
package target

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/pkg/config"
)

// Target holds the connection pools for one monitored database.
type Target struct {
	DatabaseID uuid.UUID
	Read       *pgxpool.Pool
	Write      *pgxpool.Pool
}

// Open connects to a monitored database and verifies reachability.
func Open(ctx context.Context, d *models.Database, cfg *config.TargetPoolConfig) (*Target, error) {
	read, err := openPool(ctx, d.DSN(), cfg.ReadMaxConns, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open read pool for %s: %w", d.Name, err)
	}

	write, err := openPool(ctx, d.DSN(), cfg.WriteMaxConns, cfg)
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("failed to open write pool for %s: %w", d.Name, err)
	}

	t := &Target{
		DatabaseID: d.ID,
		Read:       read,
		Write:      write,
	}

	if err := t.Ping(ctx); err != nil {
		t.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", d.Name, err)
	}
	return t, nil
}

func openPool(ctx context.Context, dsn string, maxConns int32, cfg *config.TargetPoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = maxConns
	// Idle targets should not hold connections open.
	poolConfig.MinConns = 0
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// Ping verifies the target is reachable over the read pool.
func (t *Target) Ping(ctx context.Context) error {
	return t.Read.Ping(ctx)
}

// ExecWrite runs one command on a dedicated write-pool connection. When
// commitBoundary is set, an explicit COMMIT is issued on that connection
// first: CONCURRENTLY index operations refuse to run inside a transaction
// block, and a pooled connection may arrive with one open.
func (t *Target) ExecWrite(ctx context.Context, sql string, commitBoundary bool) error {
	conn, err := t.Write.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire write connection: %w", err)
	}
	defer conn.Release()

	if commitBoundary {
		// A COMMIT outside a transaction only raises a server warning.
		if _, err := conn.Exec(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("failed to close transaction before command: %w", err)
		}
	}

	if _, err := conn.Exec(ctx, sql); err != nil {
		return err
	}
	return nil
}

// Close releases both pools.
func (t *Target) Close() {
	if t.Read != nil {
		t.Read.Close()
	}
	if t.Write != nil {
		t.Write.Close()
	}
}

// Manager caches one Target per registered database so repeated pipeline
// runs reuse pools instead of reconnecting.
type Manager struct {
	cfg *config.TargetPoolConfig

	mu      sync.Mutex
	targets map[uuid.UUID]*Target
}

// NewManager creates an empty target pool manager.
func NewManager(cfg *config.TargetPoolConfig) *Manager {
	return &Manager{
		cfg:     cfg,
		targets: make(map[uuid.UUID]*Target),
	}
}

// Get returns the cached Target for a database, opening it on first use.
func (m *Manager) Get(ctx context.Context, d *models.Database) (*Target, error) {
	m.mu.Lock()
	if t, ok := m.targets[d.ID]; ok {
		m.mu.Unlock()
		return t, nil
	}
	m.mu.Unlock()

	// Connect outside the lock: a slow target must not block other lookups.
	t, err := Open(ctx, d, m.cfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.targets[d.ID]; ok {
		t.Close()
		return existing, nil
	}
	m.targets[d.ID] = t
	return t, nil
}

// Remove closes and forgets the pools of one database, typically when it is
// deregistered.
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	t, ok := m.targets[id]
	delete(m.targets, id)
	m.mu.Unlock()

	if ok {
		t.Close()
	}
}

// CloseAll releases every cached target during shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.targets {
		t.Close()
		delete(m.targets, id)
	}
}
