package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/db"
	"github.com/pgsteward/pgsteward/internal/explain"
	"github.com/pgsteward/pgsteward/internal/models"
)

// SignalService exposes detected signals for review. Signals are produced
// by analysis runs; this service only reads them.
type SignalService struct {
	store     *db.DB
	explainer *explain.Explainer
	logger    *slog.Logger
}

// NewSignalService creates a new signal service.
func NewSignalService(store *db.DB, explainer *explain.Explainer, logger *slog.Logger) *SignalService {
	return &SignalService{
		store:     store,
		explainer: explainer,
		logger:    logger.With("service", "signals"),
	}
}

// List returns signals, optionally filtered by database and status.
func (s *SignalService) List(ctx context.Context, databaseID uuid.UUID, status models.SignalStatus, limit int) ([]*models.Signal, error) {
	return s.store.ListSignals(ctx, databaseID, status, limit)
}

// Get returns a single signal by ID.
func (s *SignalService) Get(ctx context.Context, id uuid.UUID) (*models.Signal, error) {
	return s.store.GetSignal(ctx, id)
}

// Explain produces a plain-language explanation of the signal.
func (s *SignalService) Explain(ctx context.Context, id uuid.UUID) (string, error) {
	sig, err := s.store.GetSignal(ctx, id)
	if err != nil {
		return "", err
	}
	return s.explainer.ExplainSignal(ctx, sig), nil
}
