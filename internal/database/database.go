// Package database opens the PostgreSQL pool behind the run ledger.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	return pool, nil
}

// Schema is the DDL of the run ledger.
const Schema = `
CREATE TABLE IF NOT EXISTS report_runs (
	token TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	client_id TEXT NOT NULL DEFAULT '',
	record_id TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	bytes BIGINT NOT NULL DEFAULT 0,
	pages INTEGER NOT NULL DEFAULT 0,
	archive_key TEXT,
	message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_report_runs_state ON report_runs(state);
CREATE INDEX IF NOT EXISTS idx_report_runs_created ON report_runs(created_at);`

// EnsureSchema creates the ledger table if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
