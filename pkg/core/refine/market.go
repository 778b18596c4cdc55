// Package refine holds the bounded input transforms run by the refinement loop.
// Each transform returns a fresh copy of the inputs and leaves its argument untouched.
package refine

import (
	"agentic_dcf/pkg/core/valuation"
)

const (
	// MinTerminalSpread is the WACC premium over stable growth that the market step enforces.
	MinTerminalSpread = 0.01
	// MaxMarketStep caps the WACC increase applied by one market step.
	MaxMarketStep = 0.02
)

// ApplyMarket widens a thin terminal spread. When the final WACC sits less than
// MinTerminalSpread above stable growth, every year is raised on a ramp that reaches
// the full increase in the final year. The result stays inside the WACC path bounds.
func ApplyMarket(in valuation.Inputs) valuation.Inputs {
	out := in.Clone()
	T := len(out.WACC)
	if T == 0 {
		return out
	}

	target := out.StableGrowth + MinTerminalSpread
	last := out.WACC[T-1]
	if last >= target {
		return out
	}

	inc := min(target-last, MaxMarketStep)
	for t := range out.WACC {
		ramp := float64(t+1) / float64(T)
		out.WACC[t] = clamp(out.WACC[t]+inc*ramp, valuation.MinPathWACC, valuation.MaxPathWACC)
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	return max(lo, min(hi, x))
}
