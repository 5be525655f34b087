package migration

import (
	"context"

	"goattrib/internal/errors"

	"github.com/jmoiron/sqlx"
)

const fitRunsTable = "fit_runs"

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createFitRunsTable(ctx, db); err != nil {
		return errors.Wrapf(err, "failed to create %s table", fitRunsTable)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrapf(err, "failed to create indexes on %s", fitRunsTable)
	}

	return nil
}

func (r *MigrationRunner) createFitRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fit_runs (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL,
			generation BIGINT NOT NULL,
			method VARCHAR(16) NOT NULL,
			alpha DOUBLE PRECISION NOT NULL DEFAULT 0,
			observations INTEGER NOT NULL,
			r_squared DOUBLE PRECISION NOT NULL,
			adj_r_squared DOUBLE PRECISION,
			aic DOUBLE PRECISION,
			bic DOUBLE PRECISION,
			coefficients JSONB NOT NULL,
			dataset_fingerprint VARCHAR(32) NOT NULL,
			bootstrap_samples INTEGER NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return errors.DatabaseError(err, "CREATE TABLE failed")
	}
	return nil
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_fit_runs_session_created
		ON fit_runs (session_id, created_at DESC)
	`)
	if err != nil {
		return errors.DatabaseError(err, "CREATE INDEX failed")
	}
	return nil
}
