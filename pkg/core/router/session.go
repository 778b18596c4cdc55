package router

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"agentic_dcf/pkg/core/valuation"
)

// Session is the append-only telemetry of one refinement run.
type Session struct {
	ID        string     `json:"session_id"`
	Ticker    string     `json:"ticker"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Config    Config     `json:"config"`

	Decisions       []Decision `json:"decisions"`
	ValueTrajectory []float64  `json:"value_trajectory"`

	FinalRoute        Route  `json:"final_route"`
	TerminationReason string `json:"termination_reason"`
	Converged         bool   `json:"converged"`
	TotalIterations   int    `json:"total_iterations"`

	EfficiencyScore     float64 `json:"efficiency_score"`
	RouteDiversity      float64 `json:"route_diversity"`
	StabilityViolations int     `json:"stability_violations"`
}

// NewSession starts telemetry for ticker with a short random id.
func NewSession(ticker string, cfg Config) *Session {
	return &Session{
		ID:        uuid.NewString()[:8],
		Ticker:    ticker,
		StartTime: time.Now().UTC(),
		Config:    cfg,
	}
}

// Record appends d, filling in the timestamp and the trajectory-based stability score.
// The stored decision is returned.
func (s *Session) Record(d Decision) Decision {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	s.ValueTrajectory = append(s.ValueTrajectory, d.CurrentValue)
	d.StabilityScore = StabilityScore(d.UnchangedSteps, s.Config.StabilityWindow, s.ValueTrajectory)
	s.Decisions = append(s.Decisions, d)
	return d
}

// End closes the session and computes its summary metrics.
func (s *Session) End(final Route, reason string) {
	now := time.Now().UTC()
	s.EndTime = &now
	s.FinalRoute = final
	s.TerminationReason = reason
	s.TotalIterations = len(s.Decisions)

	lower := strings.ToLower(reason)
	s.Converged = final == RouteEnd &&
		(strings.Contains(lower, "converge") || strings.Contains(lower, "stability"))

	if len(s.Decisions) == 0 {
		return
	}
	unique := make(map[Route]struct{})
	for _, d := range s.Decisions {
		unique[d.Route] = struct{}{}
	}
	n := float64(len(s.Decisions))
	s.EfficiencyScore = min(float64(len(unique))/n, 1.0)
	s.RouteDiversity = float64(len(unique)) / n

	s.StabilityViolations = 0
	for _, d := range s.Decisions {
		if d.ValueDeltaPct != nil && *d.ValueDeltaPct > s.Config.ValidationThreshold {
			s.StabilityViolations++
		}
	}
}

// LastValue returns the most recent value in the trajectory.
func (s *Session) LastValue() (float64, bool) {
	if len(s.ValueTrajectory) == 0 {
		return 0, false
	}
	return s.ValueTrajectory[len(s.ValueTrajectory)-1], true
}

// StabilityScore blends the unchanged-step ratio with the spread of the last three values.
// It lies in [0, 1]; higher means more stable.
func StabilityScore(unchanged, window int, trajectory []float64) float64 {
	fromUnchanged := 0.0
	if window > 0 {
		fromUnchanged = min(float64(unchanged)/float64(window), 1.0)
	}

	fromVariance := 0.5
	if len(trajectory) >= 3 {
		recent := trajectory[len(trajectory)-3:]
		mean := (recent[0] + recent[1] + recent[2]) / 3
		var ss float64
		for _, v := range recent {
			ss += (v - mean) * (v - mean)
		}
		fromVariance = 1.0 / (1.0 + ss)
	}
	return (fromUnchanged + fromVariance) / 2.0
}

// Simulate runs the router against a constant valuation and returns the emitted routes,
// stopping at RouteEnd. Sensitivity is treated as already run.
func Simulate(cfg Config, haveConsensus, haveComparables, allowNews bool, steps int) []Route {
	ctx := Context{
		MaxIterations:          steps,
		RanSensitivityRecently: true,
		HaveConsensus:          haveConsensus,
		HaveComparables:        haveComparables,
		AllowNews:              allowNews,
	}
	v := valuation.Result{ValuePerShare: 1.0}

	var routes []Route
	for i := 0; i < steps; i++ {
		ctx.Iteration = i
		d := ChooseNextRoute(cfg, valuation.Inputs{}, v, ctx)
		if d.Route == RouteEnd {
			break
		}
		routes = append(routes, d.Route)
		ctx.LastRoute = d.Route
	}
	return routes
}
