// Package store persists refinement sessions in Postgres, on disk, or both.
package store

import (
	"context"
	"errors"
	"time"

	"agentic_dcf/pkg/core/router"
)

// ErrNotFound is returned by Load for an unknown session id.
var ErrNotFound = errors.New("session not found")

// SessionRepository saves and loads router sessions. Save is an upsert on the session id.
type SessionRepository interface {
	Save(ctx context.Context, s *router.Session) error
	Load(ctx context.Context, id string) (*router.Session, error)
	List(ctx context.Context, ticker string, limit int) ([]SessionSummary, error)
}

// SessionSummary is the listing view of a stored session.
type SessionSummary struct {
	ID              string       `json:"session_id"`
	Ticker          string       `json:"ticker"`
	FinalRoute      router.Route `json:"final_route"`
	Converged       bool         `json:"converged"`
	TotalIterations int          `json:"total_iterations"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func summarize(s *router.Session, at time.Time) SessionSummary {
	return SessionSummary{
		ID:              s.ID,
		Ticker:          s.Ticker,
		FinalRoute:      s.FinalRoute,
		Converged:       s.Converged,
		TotalIterations: s.TotalIterations,
		UpdatedAt:       at,
	}
}
