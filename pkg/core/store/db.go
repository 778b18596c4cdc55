package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool    *pgxpool.Pool
	once    sync.Once
	initErr error
)

// Schema creates the session table. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS router_sessions (
	id           TEXT PRIMARY KEY,
	ticker       TEXT NOT NULL,
	final_route  TEXT NOT NULL DEFAULT '',
	converged    BOOLEAN NOT NULL DEFAULT FALSE,
	iterations   INTEGER NOT NULL DEFAULT 0,
	session_json JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS router_sessions_ticker_idx ON router_sessions (ticker, updated_at DESC);
`

// InitDB opens the process-wide pool once. Later calls return the first result.
func InitDB(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	once.Do(func() {
		if dbURL == "" {
			initErr = fmt.Errorf("database url not set")
			return
		}
		config, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			initErr = fmt.Errorf("failed to parse database config: %w", err)
			return
		}
		pool, initErr = pgxpool.NewWithConfig(ctx, config)
	})
	return pool, initErr
}

// EnsureSchema applies Schema on p.
func EnsureSchema(ctx context.Context, p *pgxpool.Pool) error {
	if _, err := p.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
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
