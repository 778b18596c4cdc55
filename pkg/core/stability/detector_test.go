package stability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic_dcf/pkg/core/router"
)

func history(values ...float64) []router.Decision {
	out := make([]router.Decision, len(values))
	for i, v := range values {
		out[i] = router.Decision{Iteration: i, CurrentValue: v, Route: router.RouteMarket}
	}
	return out
}

func TestAnalyze_StableExample(t *testing.T) {
	d := New(WithConvergenceThreshold(0.01))
	m := d.Analyze(history(100.0, 100.05, 99.98, 100.02))

	assert.Equal(t, Stable, m.State)
	assert.True(t, m.ShouldStop)
	assert.Contains(t, m.StopReason, "stable state")
	assert.Equal(t, ActionTerminate, m.SuggestedAction)
	require.NotNil(t, m.TimeToStability)
	assert.Equal(t, 0.0, *m.TimeToStability)
	assert.Equal(t, 4, m.WindowSize)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	m := New().Analyze(history(10, 11))
	assert.Equal(t, Converging, m.State)
	assert.Equal(t, 0.0, m.Confidence)
	assert.False(t, m.ShouldStop)
	assert.Equal(t, TrendInsufficient, m.Trend)
	assert.Equal(t, ActionContinueMonitoring, m.SuggestedAction)

	assert.Equal(t, Converging, New().Analyze(nil).State)
}

func TestAnalyze_Oscillating(t *testing.T) {
	m := New().Analyze(history(100, 110, 100, 110, 100))
	assert.Equal(t, Oscillating, m.State)
	assert.False(t, m.ShouldStop)
	require.NotNil(t, m.OscillationFrequency)
	assert.InDelta(t, 1.0, *m.OscillationFrequency, 1e-12)
}

func TestAnalyze_LowAmplitudeOscillationStops(t *testing.T) {
	m := New().Analyze(history(99.4, 100.6, 99.4, 100.6, 99.4))
	assert.Equal(t, Oscillating, m.State)
	assert.True(t, m.ShouldStop)
	assert.Contains(t, m.StopReason, "low-amplitude")
}

func TestAnalyze_Diverging(t *testing.T) {
	d := New(WithWindow(3))
	m := d.Analyze(history(100, 100.1, 100.2, 100, 130, 170))
	assert.Equal(t, Diverging, m.State)
	assert.True(t, m.ShouldStop)
	assert.Contains(t, m.StopReason, "diverging")
	assert.Nil(t, m.TimeToStability)
}

func TestAnalyze_Chaotic(t *testing.T) {
	m := New().Analyze(history(100, 130, 131, 132, 100))
	assert.Equal(t, Chaotic, m.State)
	assert.False(t, m.ShouldStop)
	assert.Less(t, m.Predictability, 0.3)
}

func TestAnalyze_Converging(t *testing.T) {
	m := New().Analyze(history(100, 110, 115, 117.5, 118.75))
	assert.Equal(t, Converging, m.State)
	assert.Equal(t, TrendIncreasing, m.Trend)
	require.NotNil(t, m.ConvergenceRate)
	assert.Greater(t, *m.ConvergenceRate, 0.0)
	require.NotNil(t, m.TimeToStability)
	assert.GreaterOrEqual(t, *m.TimeToStability, 1.0)
	require.NotNil(t, m.LastSignificantChange)
	assert.Equal(t, 1, *m.LastSignificantChange)
}

func TestAnalyze_UnchangedRunStops(t *testing.T) {
	h := history(100, 120, 140, 160, 180)
	h[4].UnchangedSteps = 5
	m := New().Analyze(h)
	assert.True(t, m.ShouldStop)
	assert.Equal(t, "no significant change for 5 steps", m.StopReason)
}

func TestAnalyze_FlatTrend(t *testing.T) {
	m := New().Analyze(history(42, 42, 42))
	assert.Equal(t, Stable, m.State)
	assert.Equal(t, TrendStable, m.Trend)
	assert.Equal(t, 0.0, m.Variance)
	assert.Equal(t, 0.0, m.Predictability)
}

func TestStats(t *testing.T) {
	assert.InDelta(t, 2.0, slope([]float64{1, 3, 5, 7}), 1e-12)
	assert.InDelta(t, 1.0, predictability([]float64{1, 3, 5, 7}), 1e-12)
	assert.InDelta(t, 1.25, variance1([]float64{1, 2, 3, 4}), 1e-12)
	assert.Nil(t, convergenceRate([]float64{1, 1, 2, 3}))
	assert.False(t, isOscillating([]float64{1, 2, 3, 4, 5}))
	assert.True(t, isOscillating([]float64{1, 2, 1, 2}))
}
