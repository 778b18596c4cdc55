package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic_dcf/pkg/core/valuation"
)

func TestSession_RecordAndEnd(t *testing.T) {
	cfg := DefaultConfig()
	s := NewSession("ACME", cfg)
	require.Len(t, s.ID, 8)

	values := []float64{100, 120, 120.2, 120.2}
	ctx := Context{HaveConsensus: true}
	for i, v := range values {
		ctx.Iteration = i
		d := s.Record(ChooseNextRoute(cfg, valuation.Inputs{}, vps(v), ctx))
		assert.False(t, d.Timestamp.IsZero())
		if prev, ok := s.LastValue(); ok {
			ctx.LastValue = &prev
		}
		ctx.LastRoute = d.Route
	}
	s.End(RouteEnd, "stability reached: 2 unchanged steps")

	assert.Equal(t, values, s.ValueTrajectory)
	assert.Equal(t, 4, s.TotalIterations)
	assert.True(t, s.Converged)
	require.NotNil(t, s.EndTime)
	// 100 -> 120 is a 20% jump
	assert.Equal(t, 1, s.StabilityViolations)
	assert.Greater(t, s.RouteDiversity, 0.0)
	assert.LessOrEqual(t, s.EfficiencyScore, 1.0)
}

func TestSession_EndNotConverged(t *testing.T) {
	s := NewSession("X", DefaultConfig())
	s.Record(Decision{Route: RouteMarket, CurrentValue: 1})
	s.End(RouteEnd, "maximum iterations (10) reached")
	assert.False(t, s.Converged)
	assert.Equal(t, 1.0, s.RouteDiversity)
}

func TestStabilityScore(t *testing.T) {
	assert.Equal(t, 0.25, StabilityScore(0, 2, []float64{1, 2}))
	assert.Equal(t, 1.0, StabilityScore(5, 2, []float64{3, 3, 3}))
	assert.InDelta(t, (0.5+1.0/3.0)/2, StabilityScore(1, 2, []float64{0, 1, 2}), 1e-12)
}
