// Package router decides which refinement step runs next.
//
// The router holds no state between calls. Everything it needs is threaded through
// Context, which the refinement loop owns and updates after every step.
package router

import (
	"fmt"
	"math"
	"strings"
	"time"

	"agentic_dcf/pkg/core/valuation"
)

// DefaultMaxIterations applies when neither Context nor Config set a cap.
const DefaultMaxIterations = 10

// StopReason indicates why the router emitted RouteEnd.
type StopReason string

const (
	StopReasonNone          StopReason = ""
	StopReasonMaxIterations StopReason = "max_iterations"
	StopReasonStability     StopReason = "stability"
)

// Config holds the routing thresholds and feature switches.
// A disabled route is skipped even when the context says its data is available.
type Config struct {
	MaxIterations        int     `json:"max_iterations" yaml:"max_iterations" validate:"gte=0"`
	ConvergenceThreshold float64 `json:"convergence_threshold" yaml:"convergence_threshold" validate:"gte=0,lt=1"`
	StabilityWindow      int     `json:"stability_window" yaml:"stability_window" validate:"gte=1"`
	ValidationThreshold  float64 `json:"validation_threshold" yaml:"validation_threshold" validate:"gte=0"`

	EnableConsensus   bool `json:"enable_consensus" yaml:"enable_consensus"`
	EnableComparables bool `json:"enable_comparables" yaml:"enable_comparables"`
	EnableNews        bool `json:"enable_news" yaml:"enable_news"`
	EnableSensitivity bool `json:"enable_sensitivity" yaml:"enable_sensitivity"`
}

// DefaultConfig returns the standard router settings.
func DefaultConfig() Config {
	return Config{
		MaxIterations:        DefaultMaxIterations,
		ConvergenceThreshold: 0.005,
		StabilityWindow:      2,
		ValidationThreshold:  0.10,
		EnableConsensus:      true,
		EnableComparables:    true,
		EnableNews:           true,
		EnableSensitivity:    true,
	}
}

// Context is the loop state read by ChooseNextRoute. The zero value is a valid first call.
type Context struct {
	Iteration              int      `json:"iteration"`
	MaxIterations          int      `json:"max_iterations"` // 0 uses Config.MaxIterations
	LastValue              *float64 `json:"last_value"`
	UnchangedSteps         int      `json:"unchanged_steps"`
	RanSensitivityRecently bool     `json:"ran_sensitivity_recently"`
	HaveConsensus          bool     `json:"have_consensus"`
	HaveComparables        bool     `json:"have_comparables"`
	AllowNews              bool     `json:"allow_news"`
	LastRoute              Route    `json:"last_route"`
}

func (c Context) maxIterations(cfg Config) int {
	if c.MaxIterations > 0 {
		return c.MaxIterations
	}
	if cfg.MaxIterations > 0 {
		return cfg.MaxIterations
	}
	return DefaultMaxIterations
}

// Decision is the telemetry record of one routing call.
type Decision struct {
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`

	CurrentValue  float64  `json:"current_value"`
	PreviousValue *float64 `json:"previous_value"`
	ValueDeltaPct *float64 `json:"value_delta_pct"`

	UnchangedSteps         int   `json:"unchanged_steps"`
	RanSensitivityRecently bool  `json:"ran_sensitivity_recently"`
	HaveConsensus          bool  `json:"have_consensus"`
	HaveComparables        bool  `json:"have_comparables"`
	AllowNews              bool  `json:"allow_news"`
	LastRoute              Route `json:"last_route"`

	Route       Route      `json:"chosen_route"`
	Reason      string     `json:"decision_reason"`
	Instruction string     `json:"instruction,omitempty"`
	Stop        StopReason `json:"stop_reason,omitempty"`

	ConvergenceMetric float64 `json:"convergence_metric"`
	StabilityScore    float64 `json:"stability_score"`
}

// RelativeDelta returns |cur-prev|/|prev|, or false when prev is missing or zero.
func RelativeDelta(cur float64, prev *float64) (float64, bool) {
	if prev == nil || *prev == 0 {
		return 0, false
	}
	return math.Abs(cur-*prev) / math.Abs(*prev), true
}

// ChooseNextRoute picks the next step. Identical arguments always give the same decision.
//
// Precedence: iteration cap, unchanged-value run, near-convergence sensitivity, then the
// fixed cycle market -> consensus -> comparables -> news. Convergence only suppresses a
// second sensitivity run; it does not end the loop by itself. The inputs are not
// consulted by the current rules.
func ChooseNextRoute(cfg Config, in valuation.Inputs, v valuation.Result, c Context) Decision {
	current := v.ValuePerShare
	d := Decision{
		Iteration:              c.Iteration,
		CurrentValue:           current,
		PreviousValue:          c.LastValue,
		UnchangedSteps:         c.UnchangedSteps,
		RanSensitivityRecently: c.RanSensitivityRecently,
		HaveConsensus:          c.HaveConsensus,
		HaveComparables:        c.HaveComparables,
		AllowNews:              c.AllowNews,
		LastRoute:              c.LastRoute,
		ConvergenceMetric:      1.0,
	}

	rd, haveDelta := RelativeDelta(current, c.LastValue)
	if haveDelta {
		d.ValueDeltaPct = &rd
		d.ConvergenceMetric = rd
	}

	// 1. Iteration cap
	if limit := c.maxIterations(cfg); c.Iteration >= limit {
		d.Route, d.Stop = RouteEnd, StopReasonMaxIterations
		d.Reason = fmt.Sprintf("maximum iterations (%d) reached", limit)
		return d
	}

	// 2. Bit-exact stability
	window := cfg.StabilityWindow
	if window <= 0 {
		window = DefaultConfig().StabilityWindow
	}
	if c.UnchangedSteps >= window {
		d.Route, d.Stop = RouteEnd, StopReasonStability
		d.Reason = fmt.Sprintf("stability reached: %d unchanged steps", c.UnchangedSteps)
		return d
	}

	// 3. Near convergence: characterize the point once, then keep cycling
	if haveDelta && rd <= cfg.ConvergenceThreshold {
		if !c.RanSensitivityRecently && cfg.EnableSensitivity {
			d.Route = RouteSensitivity
			d.Instruction = RouteSensitivity.describe()
			d.Reason = fmt.Sprintf("near convergence (delta=%.3f%%), running sensitivity analysis", rd*100)
			return d
		}
	}

	// 4. Fixed cycle
	cycle := eligibleRoutes(cfg, c)
	next := nextInCycle(c.LastRoute, cycle)
	d.Route = next
	d.Instruction = next.describe()
	d.Reason = fmt.Sprintf("following routing cycle: cycle=[%s], last=%s, next=%s",
		joinRoutes(cycle), routeLabel(c.LastRoute), next)
	return d
}

func eligibleRoutes(cfg Config, c Context) []Route {
	cycle := []Route{RouteMarket}
	if cfg.EnableConsensus && c.HaveConsensus {
		cycle = append(cycle, RouteConsensus)
	}
	if cfg.EnableComparables && c.HaveComparables {
		cycle = append(cycle, RouteComparables)
	}
	if cfg.EnableNews && c.AllowNews {
		cycle = append(cycle, RouteNews)
	}
	return cycle
}

// nextInCycle returns the entry after last, wrapping. A last route outside the cycle restarts it.
func nextInCycle(last Route, cycle []Route) Route {
	for i, r := range cycle {
		if r == last {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return cycle[0]
}

func joinRoutes(routes []Route) string {
	names := make([]string, len(routes))
	for i, r := range routes {
		names[i] = r.String()
	}
	return strings.Join(names, ",")
}

func routeLabel(r Route) string {
	if r == RouteNone {
		return "none"
	}
	return r.String()
}
