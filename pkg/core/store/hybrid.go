package store

import (
	"context"
	"errors"

	"github.com/phuslu/log"

	"agentic_dcf/pkg/core/router"
)

// HybridSessionRepo writes to a primary repository and mirrors to a local one.
// Reads try the primary first and fall back when it fails or misses.
type HybridSessionRepo struct {
	primary SessionRepository
	local   SessionRepository
}

var _ SessionRepository = (*HybridSessionRepo)(nil)

// NewHybridSessionRepo accepts a nil primary, in which case only local is used.
func NewHybridSessionRepo(primary, local SessionRepository) *HybridSessionRepo {
	return &HybridSessionRepo{primary: primary, local: local}
}

// Save fails only when every configured backend fails.
func (h *HybridSessionRepo) Save(ctx context.Context, s *router.Session) error {
	var errs []error
	if h.primary != nil {
		if err := h.primary.Save(ctx, s); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("[STORE] primary save failed")
			errs = append(errs, err)
		}
	}
	if h.local != nil {
		if err := h.local.Save(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	if h.primary != nil && h.local != nil && len(errs) < 2 {
		return nil
	}
	return errors.Join(errs...)
}

func (h *HybridSessionRepo) Load(ctx context.Context, id string) (*router.Session, error) {
	if h.primary != nil {
		s, err := h.primary.Load(ctx, id)
		if err == nil {
			return s, nil
		}
		if h.local == nil {
			return nil, err
		}
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("session", id).Msg("[STORE] primary load failed, using local")
		}
	}
	if h.local == nil {
		return nil, ErrNotFound
	}
	return h.local.Load(ctx, id)
}

func (h *HybridSessionRepo) List(ctx context.Context, ticker string, limit int) ([]SessionSummary, error) {
	if h.primary != nil {
		out, err := h.primary.List(ctx, ticker, limit)
		if err == nil || h.local == nil {
			return out, err
		}
		log.Warn().Err(err).Msg("[STORE] primary list failed, using local")
	}
	if h.local == nil {
		return nil, nil
	}
	return h.local.List(ctx, ticker, limit)
}
