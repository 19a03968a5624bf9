// Package services composes collector, advisor, store, executor and
// explainer into the advisor's pipelines and API-facing operations. Each
// pipeline is an ordered step list over a mutable run state; there is no
// workflow engine.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pgsteward/pgsteward/internal/db"
	"github.com/pgsteward/pgsteward/internal/jobs"
	"github.com/pgsteward/pgsteward/internal/models"
	"github.com/pgsteward/pgsteward/internal/target"
)

// step is one named unit of pipeline work.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// runSteps executes steps in declaration order with one shared
// continue-vs-abort check: a cancelled context or a failed step aborts all
// remaining steps. Each step is announced to progress before it runs;
// progress may be nil for synchronous invocations.
func runSteps(ctx context.Context, progress jobs.ProgressFunc, steps []step) error {
	for i, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if progress != nil {
			progress(i, s.name)
		}
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// openTarget resolves a registered database and its connection pools.
// Unreachable targets surface as ErrDatabaseUnreachable so handlers can
// distinguish them from unknown IDs.
func openTarget(ctx context.Context, store *db.DB, targets *target.Manager, databaseID uuid.UUID) (*models.Database, *target.Target, error) {
	database, err := store.GetDatabase(ctx, databaseID)
	if err != nil {
		return nil, nil, err
	}
	t, err := targets.Get(ctx, database)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrDatabaseUnreachable, err)
	}
	return database, t, nil
}
