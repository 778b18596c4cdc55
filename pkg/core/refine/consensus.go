package refine

import (
	"math"
	"strings"

	"agentic_dcf/pkg/core/valuation"
)

// Driver bounds applied to consensus-written values.
var (
	DefaultGrowthBounds = Range{-0.99, 0.60}
	DefaultMarginBounds = Range{-0.60, 0.60}
)

// SmoothingMode selects how the tail after the consensus window returns to stable values.
type SmoothingMode string

const (
	// SmoothLinearSpan interpolates linearly so the final year lands on the stable value.
	SmoothLinearSpan SmoothingMode = "linear_span"
	// SmoothSlope moves by at most SlopeBpsPerYear per year, as late as the horizon allows.
	SmoothSlope SmoothingMode = "slope"
	// SmoothHalfLife closes a fixed share of the gap every year.
	SmoothHalfLife SmoothingMode = "half_life"
)

// Range is an inclusive [lo, hi] pair.
type Range [2]float64

func (r Range) clamp(x float64) float64 { return clamp(x, r[0], r[1]) }

// Smoothing configures the tail return to stable growth and margin.
type Smoothing struct {
	Mode            SmoothingMode `json:"mode" yaml:"mode"`
	SlopeBpsPerYear float64       `json:"slope_bps_per_year" yaml:"slope_bps_per_year"`
	HalfLifeYears   float64       `json:"half_life_years" yaml:"half_life_years"`
}

// Bounds overrides the clamp ranges for the smoothed tail.
type Bounds struct {
	Growth *Range `json:"growth,omitempty" yaml:"growth,omitempty"`
	Margin *Range `json:"margin,omitempty" yaml:"margin,omitempty"`
}

// Consensus is analyst consensus for the first years of the forecast.
// Growth and Margin are used directly; Revenue and EBIT, when both present,
// are converted to growth and margin and take precedence.
type Consensus struct {
	Revenue []float64 `json:"revenue,omitempty"`
	EBIT    []float64 `json:"ebit,omitempty"`
	Growth  []float64 `json:"growth,omitempty"`
	Margin  []float64 `json:"margin,omitempty"`

	// SmoothToStable defaults to true when nil.
	SmoothToStable *bool      `json:"smooth_to_stable,omitempty"`
	Smoothing      *Smoothing `json:"smoothing,omitempty"`
	Bounds         *Bounds    `json:"bounds,omitempty"`
}

// Empty reports whether c carries no usable data.
func (c *Consensus) Empty() bool {
	if c == nil {
		return true
	}
	return len(c.Growth) == 0 && len(c.Margin) == 0 && (len(c.Revenue) == 0 || len(c.EBIT) == 0)
}

// ApplyConsensus writes consensus into the leading years of the growth and margin paths,
// then smooths the remaining years back toward StableGrowth and StableMargin.
// A nil or empty consensus returns an unchanged copy.
func ApplyConsensus(in valuation.Inputs, c *Consensus) valuation.Inputs {
	out := in.Clone()
	if c.Empty() {
		return out
	}

	g, m := out.SalesGrowth, out.OperMargin
	lastG, lastM := -1, -1

	for i := 0; i < min(len(g), len(c.Growth)); i++ {
		g[i] = DefaultGrowthBounds.clamp(c.Growth[i])
		lastG = max(lastG, i)
	}
	for i := 0; i < min(len(m), len(c.Margin)); i++ {
		m[i] = DefaultMarginBounds.clamp(c.Margin[i])
		lastM = max(lastM, i)
	}

	if len(c.Revenue) > 0 && len(c.EBIT) > 0 {
		prev := out.RevenueT0
		n := min(len(g), len(c.Revenue), len(c.EBIT))
		for i := 0; i < n; i++ {
			r, e := c.Revenue[i], c.EBIT[i]
			if prev != 0 {
				g[i] = DefaultGrowthBounds.clamp((r - prev) / prev)
				lastG = max(lastG, i)
			}
			if r != 0 && i < len(m) {
				m[i] = DefaultMarginBounds.clamp(e / r)
				lastM = max(lastM, i)
			}
			prev = r
		}
	}

	if c.SmoothToStable != nil && !*c.SmoothToStable {
		return out
	}

	sm := c.smoothing()
	gb, mb := DefaultGrowthBounds, DefaultMarginBounds
	if c.Bounds != nil {
		if c.Bounds.Growth != nil {
			gb = *c.Bounds.Growth
		}
		if c.Bounds.Margin != nil {
			mb = *c.Bounds.Margin
		}
	}
	if lastG >= 0 {
		smoothTail(g, lastG+1, out.StableGrowth, sm, gb)
	}
	if lastM >= 0 {
		smoothTail(m, lastM+1, out.StableMargin, sm, mb)
	}
	return out
}

// smoothing resolves the effective configuration. Without an explicit block the
// tail is interpolated linearly; an explicit block defaults to slope mode.
func (c *Consensus) smoothing() Smoothing {
	if c.Smoothing == nil {
		return Smoothing{Mode: SmoothLinearSpan}
	}
	s := *c.Smoothing
	s.Mode = SmoothingMode(strings.ToLower(string(s.Mode)))
	if s.Mode == "" {
		s.Mode = SmoothSlope
	}
	if s.SlopeBpsPerYear == 0 {
		s.SlopeBpsPerYear = 50
	}
	if s.HalfLifeYears <= 0 {
		s.HalfLifeYears = 2
	}
	return s
}

// smoothTail rewrites path[from:] in place so it approaches target.
func smoothTail(path []float64, from int, target float64, s Smoothing, b Range) {
	T := len(path)
	if from <= 0 || from >= T {
		return
	}
	prev := path[from-1]

	switch s.Mode {
	case SmoothLinearSpan:
		span := float64(max(1, T-from))
		for i := from; i < T; i++ {
			alpha := float64(i-from+1) / span
			path[i] = b.clamp((1-alpha)*prev + alpha*target)
		}

	case SmoothHalfLife:
		k := 1 - math.Pow(0.5, 1/s.HalfLifeYears)
		for i := from; i < T; i++ {
			p := path[i-1]
			path[i] = b.clamp(p + (target-p)*k)
		}

	default:
		step := math.Abs(s.SlopeBpsPerYear) / 10000
		for i := from; i < T; i++ {
			p := path[i-1]
			gap := target - p
			remaining := float64(T - 1 - i)
			move := min(step, max(0, math.Abs(gap)-step*remaining))
			v := p + math.Copysign(move, gap)
			if (gap >= 0 && v > target) || (gap < 0 && v < target) {
				v = target
			}
			path[i] = b.clamp(v)
		}
	}
}
