package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agentic_dcf/pkg/core/router"
)

// PGSessionRepo stores sessions as JSONB rows in router_sessions.
type PGSessionRepo struct {
	pool *pgxpool.Pool
}

var _ SessionRepository = (*PGSessionRepo)(nil)

func NewPGSessionRepo(pool *pgxpool.Pool) *PGSessionRepo {
	return &PGSessionRepo{pool: pool}
}

func (r *PGSessionRepo) Save(ctx context.Context, s *router.Session) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	query := `
		INSERT INTO router_sessions (id, ticker, final_route, converged, iterations, session_json, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			ticker = EXCLUDED.ticker,
			final_route = EXCLUDED.final_route,
			converged = EXCLUDED.converged,
			iterations = EXCLUDED.iterations,
			session_json = EXCLUDED.session_json,
			updated_at = EXCLUDED.updated_at;
	`
	_, err = r.pool.Exec(ctx, query,
		s.ID, s.Ticker, s.FinalRoute.String(), s.Converged, s.TotalIterations, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	return nil
}

func (r *PGSessionRepo) Load(ctx context.Context, id string) (*router.Session, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT session_json FROM router_sessions WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	var s router.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}
	return &s, nil
}

// List returns the newest sessions first. An empty ticker lists all tickers.
func (r *PGSessionRepo) List(ctx context.Context, ticker string, limit int) ([]SessionSummary, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, ticker, final_route, converged, iterations, updated_at
		FROM router_sessions
		WHERE $1 = '' OR upper(ticker) = upper($1)
		ORDER BY updated_at DESC
		LIMIT $2`, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			s     SessionSummary
			route string
		)
		if err := rows.Scan(&s.ID, &s.Ticker, &route, &s.Converged, &s.TotalIterations, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		s.FinalRoute, _ = router.ParseRoute(route)
		out = append(out, s)
	}
	return out, rows.Err()
}
