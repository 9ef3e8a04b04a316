package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool *pgxpool.Pool
	once sync.Once
)

// InitDB initializes the shared connection pool. Only the first call connects;
// later calls return the first call's error.
func InitDB(ctx context.Context, dbURL string) error {
	var err error
	once.Do(func() {
		if dbURL == "" {
			err = fmt.Errorf("database URL not set")
			return
		}

		config, parseErr := pgxpool.ParseConfig(dbURL)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse database config: %w", parseErr)
			return
		}

		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			err = fmt.Errorf("failed to create pool: %w", err)
			return
		}
		if pingErr := pool.Ping(ctx); pingErr != nil {
			err = fmt.Errorf("failed to reach database: %w", pingErr)
		}
	})
	return err
}

// GetPool returns the database connection pool
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the database connection pool
func Close() {
	if pool != nil {
		pool.Close()
	}
}

// schemaStatements create the run tables, applied one at a time.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id        TEXT PRIMARY KEY,
		ticker        TEXT NOT NULL,
		cik           TEXT,
		company_name  TEXT,
		period_type   TEXT NOT NULL,
		num_periods   INTEGER NOT NULL,
		status        TEXT NOT NULL,
		config_json   JSONB,
		created_at    TIMESTAMPTZ NOT NULL,
		finished_at   TIMESTAMPTZ,
		artifact_path TEXT,
		warnings_json JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS step_logs (
		id             SERIAL PRIMARY KEY,
		run_id         TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		step_name      TEXT NOT NULL,
		status         TEXT NOT NULL,
		started_at     TIMESTAMPTZ,
		finished_at    TIMESTAMPTZ,
		duration_ms    BIGINT,
		input_summary  TEXT,
		output_summary TEXT,
		warnings_json  JSONB,
		errors_json    JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_step_logs_run_id ON step_logs (run_id)`,
}

// EnsureSchema creates the runs and step_logs tables if they are missing.
func EnsureSchema(ctx context.Context, p *pgxpool.Pool) error {
	if p == nil {
		return fmt.Errorf("database pool not initialized")
	}
	for _, stmt := range schemaStatements {
		if _, err := p.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
