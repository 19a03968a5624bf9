package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/db"
	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/target"
)

// DatabaseService handles the monitored-database registry and per-database
// autonomy settings.
type DatabaseService struct {
	store   *db.DB
	targets *target.Manager
	logger  *slog.Logger
}

// NewDatabaseService creates a new database service.
func NewDatabaseService(store *db.DB, targets *target.Manager, logger *slog.Logger) *DatabaseService {
	return &DatabaseService{
		store:   store,
		targets: targets,
		logger:  logger.With("service", "databases"),
	}
}

// Register validates a registration request, verifies the target is
// reachable, and persists it. Connectivity is checked before the insert so
// a mistyped host never lands in the registry.
func (s *DatabaseService) Register(ctx context.Context, req *models.DatabaseCreateRequest) (*models.Database, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.ApplyDefaults()

	database := &models.Database{
		ID:            uuid.New(),
		Name:          req.Name,
		Host:          req.Host,
		Port:          req.Port,
		DBName:        req.DBName,
		User:          req.User,
		Password:      req.Password,
		SSLMode:       req.SSLMode,
		AutonomyLevel: req.AutonomyLevel,
		CreatedAt:     time.Now().UTC(),
	}

	if _, err := s.targets.Get(ctx, database); err != nil {
		s.logger.Warn("registration connectivity check failed",
			"name", database.Name, "host", database.Host, "error", err)
		return nil, models.ErrDatabaseUnreachable
	}

	if err := s.store.CreateDatabase(ctx, database); err != nil {
		s.targets.Remove(database.ID)
		return nil, err
	}

	s.logger.Info("database registered",
		"database_id", database.ID, "name", database.Name, "autonomy", database.AutonomyLevel)
	return database, nil
}

// List returns every registered database.
func (s *DatabaseService) List(ctx context.Context) ([]*models.Database, error) {
	return s.store.ListDatabases(ctx)
}

// Get returns one registered database.
func (s *DatabaseService) Get(ctx context.Context, id uuid.UUID) (*models.Database, error) {
	return s.store.GetDatabase(ctx, id)
}

// Delete removes a database from the registry and closes its pools.
// Signals, proposals, actions and jobs recorded for it go with it; the
// schema cascades the delete.
func (s *DatabaseService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteDatabase(ctx, id); err != nil {
		return err
	}
	s.targets.Remove(id)
	s.logger.Info("database deleted", "database_id", id)
	return nil
}

// Autonomy returns the database's configured autonomy level.
func (s *DatabaseService) Autonomy(ctx context.Context, id uuid.UUID) (models.AutonomyLevel, error) {
	return s.store.GetAutonomyLevel(ctx, id)
}

// SetAutonomy changes the database's autonomy level. Invalid levels are
// rejected before touching the store.
func (s *DatabaseService) SetAutonomy(ctx context.Context, id uuid.UUID, req *models.AutonomyUpdateRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.store.SetAutonomyLevel(ctx, id, req.Level); err != nil {
		return err
	}
	s.logger.Info("autonomy level changed", "database_id", id, "level", req.Level)
	return nil
}
