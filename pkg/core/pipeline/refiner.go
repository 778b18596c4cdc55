// Package pipeline runs the routed refinement loop around the valuation kernel.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/phuslu/log"

	"agentic_dcf/pkg/core/refine"
	"agentic_dcf/pkg/core/router"
	"agentic_dcf/pkg/core/sensitivity"
	"agentic_dcf/pkg/core/stability"
	"agentic_dcf/pkg/core/store"
	"agentic_dcf/pkg/core/valuation"
)

// Options configures a Refiner.
type Options struct {
	Router      router.Config
	Sensitivity sensitivity.Options
	Caps        refine.Caps
	// PeerCapBps bounds one comparables step; 0 uses refine.DefaultPeerCapBps.
	PeerCapBps float64
	// StopOnStability ends the loop as soon as the detector recommends stopping.
	StopOnStability bool
}

// DefaultOptions returns the standard loop settings.
func DefaultOptions() Options {
	return Options{
		Router:      router.DefaultConfig(),
		Sensitivity: sensitivity.DefaultOptions(),
		Caps:        refine.DefaultCaps(),
		PeerCapBps:  refine.DefaultPeerCapBps,
	}
}

// Outcome is the final state of one refinement run.
type Outcome struct {
	Inputs      valuation.Inputs    `json:"inputs"`
	Result      valuation.Result    `json:"result"`
	Sensitivity *sensitivity.Result `json:"sensitivity,omitempty"`
	Session     *router.Session     `json:"session"`
	Stability   *stability.Metrics  `json:"stability,omitempty"`
}

// Refiner manages the loop: value, route, transform, re-value until the router ends it.
type Refiner struct {
	opts     Options
	sources  refine.Sources
	detector *stability.Detector
	repo     store.SessionRepository
}

// NewRefiner creates a refiner with the default detector and no repository.
func NewRefiner(opts Options) *Refiner {
	return &Refiner{
		opts:     opts,
		detector: stability.New(),
	}
}

// SetRepository allows injecting a session store. A nil repository disables persistence.
func (r *Refiner) SetRepository(repo store.SessionRepository) {
	r.repo = repo
}

// SetSources sets the consensus, peer and news data the transforms draw on.
func (r *Refiner) SetSources(src refine.Sources) {
	r.sources = src
}

// SetDetector replaces the advisory stability detector. A nil detector disables it.
func (r *Refiner) SetDetector(d *stability.Detector) {
	r.detector = d
}

// Run refines in until the router emits RouteEnd. Kernel errors abort the run and are
// returned wrapped; errors.Is still matches the valuation sentinels.
func (r *Refiner) Run(ctx context.Context, in valuation.Inputs) (*Outcome, error) {
	start := time.Now()
	cfg := r.opts.Router

	res, err := valuation.Value(in)
	if err != nil {
		return nil, fmt.Errorf("initial valuation: %w", err)
	}

	session := router.NewSession(in.Ticker, cfg)
	out := &Outcome{Inputs: in.Clone(), Result: res, Session: session}
	state := router.Context{
		HaveConsensus:   r.sources.HaveConsensus(),
		HaveComparables: r.sources.HaveComparables(),
		AllowNews:       r.sources.HaveNews(),
	}

	log.Info().Str("ticker", in.Ticker).Str("session", session.ID).
		Float64("vps", res.ValuePerShare).
		Bool("consensus", state.HaveConsensus).Bool("comparables", state.HaveComparables).Bool("news", state.AllowNews).
		Msg("[ROUTER] refinement started")

	for {
		if err := ctx.Err(); err != nil {
			r.abort(ctx, session, err)
			return out, err
		}

		d := session.Record(router.ChooseNextRoute(cfg, out.Inputs, out.Result, state))
		log.Debug().Str("session", session.ID).Int("iter", d.Iteration).Str("route", d.Route.String()).
			Float64("vps", d.CurrentValue).Msg("[ROUTER] " + d.Reason)

		if d.Route == router.RouteEnd {
			session.End(router.RouteEnd, d.Reason)
			break
		}

		if r.detector != nil {
			m := r.detector.Analyze(session.Decisions)
			out.Stability = &m
			if m.ShouldStop {
				log.Info().Str("session", session.ID).Str("state", string(m.State)).Msg("[ROUTER] detector suggests stopping: " + m.StopReason)
				if r.opts.StopOnStability {
					session.End(router.RouteEnd, "stability detector: "+m.StopReason)
					break
				}
			}
		}

		prev := out.Result.ValuePerShare
		if d.Route == router.RouteSensitivity {
			grid, err := sensitivity.Compute(ctx, out.Inputs, r.opts.Sensitivity)
			if err != nil {
				r.abort(ctx, session, err)
				return out, fmt.Errorf("sensitivity at iteration %d: %w", d.Iteration, err)
			}
			out.Sensitivity = grid
			state.RanSensitivityRecently = true
		} else {
			next := r.apply(d.Route, out.Inputs)
			nextRes, err := valuation.Value(next)
			if err != nil {
				r.abort(ctx, session, err)
				return out, fmt.Errorf("%s step at iteration %d: %w", d.Route, d.Iteration, err)
			}
			log.Debug().Str("session", session.ID).Str("route", d.Route.String()).
				Float64("from", prev).Float64("to", nextRes.ValuePerShare).Msg("[REFINE] transform applied")
			out.Inputs, out.Result = next, nextRes
			state.RanSensitivityRecently = false
		}

		if out.Result.ValuePerShare == prev {
			state.UnchangedSteps++
		} else {
			state.UnchangedSteps = 0
		}
		state.LastValue = &prev
		state.Iteration++
		state.LastRoute = d.Route
	}

	if r.detector != nil {
		m := r.detector.Analyze(session.Decisions)
		out.Stability = &m
	}
	r.persist(ctx, session)

	log.Info().Str("session", session.ID).Int("iterations", session.TotalIterations).
		Bool("converged", session.Converged).Float64("vps", out.Result.ValuePerShare).
		Dur("elapsed", time.Since(start)).Msg("[ROUTER] refinement finished: " + session.TerminationReason)
	return out, nil
}

func (r *Refiner) apply(route router.Route, in valuation.Inputs) valuation.Inputs {
	switch route {
	case router.RouteMarket:
		return refine.ApplyMarket(in)
	case router.RouteConsensus:
		return refine.ApplyConsensus(in, r.sources.Consensus)
	case router.RouteComparables:
		return refine.ApplyComparables(in, r.sources.Peers, r.opts.PeerCapBps)
	case router.RouteNews:
		if r.sources.News != nil {
			return refine.ApplyNews(in, *r.sources.News, r.opts.Caps)
		}
	}
	return in.Clone()
}

func (r *Refiner) abort(ctx context.Context, session *router.Session, cause error) {
	session.End(router.RouteEnd, "aborted: "+cause.Error())
	r.persist(context.WithoutCancel(ctx), session)
}

// persist saves the session. Failures are logged and never fail the run.
func (r *Refiner) persist(ctx context.Context, session *router.Session) {
	if r.repo == nil {
		return
	}
	if err := r.repo.Save(ctx, session); err != nil {
		log.Warn().Err(err).Str("session", session.ID).Msg("[STORE] failed to save router session")
		return
	}
	log.Debug().Str("session", session.ID).Msg("[STORE] router session saved")
}
