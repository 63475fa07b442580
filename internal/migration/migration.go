package migration

import (
	"context"

	"gol50/internal/errors"

	"github.com/jmoiron/sqlx"
)

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

// step is one idempotent DDL statement
type step struct {
	name string
	sql  string
}

var steps = []step{
	{"create l50_runs table", `
		CREATE TABLE IF NOT EXISTS l50_runs (
			run_id UUID PRIMARY KEY,
			model VARCHAR(64) NOT NULL,
			target VARCHAR(255) NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			mode VARCHAR(32) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`},
	{"create l50_rows table", `
		CREATE TABLE IF NOT EXISTS l50_rows (
			run_id UUID NOT NULL REFERENCES l50_runs(run_id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			auxiliary JSONB NOT NULL,
			solve JSONB NOT NULL,
			interval JSONB,
			error_message TEXT,
			PRIMARY KEY (run_id, position)
		)
	`},
	{"create indexes", `
		CREATE INDEX IF NOT EXISTS idx_l50_runs_created_at ON l50_runs (created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_l50_runs_model ON l50_runs (model)
	`},
}

// Steps returns the migration step names in execution order
func Steps() []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.name
	}
	return names
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, s := range steps {
		if _, err := db.ExecContext(ctx, s.sql); err != nil {
			return errors.Wrapf(errors.WithCode(errors.CodeDatabaseError, err), "failed to %s", s.name)
		}
	}
	return nil
}
