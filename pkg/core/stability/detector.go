// Package stability analyzes the value trajectory of a refinement session.
// It is advisory; the router's own termination rules still apply.
package stability

import (
	"fmt"
	"math"

	"agentic_dcf/pkg/core/router"
)

// State classifies the recent behavior of the value trajectory.
type State string

const (
	Converging  State = "converging"
	Stable      State = "stable"
	Oscillating State = "oscillating"
	Diverging   State = "diverging"
	Chaotic     State = "chaotic"
)

// Trend directions.
const (
	TrendInsufficient = "insufficient_data"
	TrendIncreasing   = "increasing"
	TrendDecreasing   = "decreasing"
	TrendStable       = "stable"
)

// Suggested actions.
const (
	ActionContinueMonitoring    = "continue_monitoring"
	ActionLowConfidence         = "continue_monitoring_low_confidence"
	ActionTerminate             = "terminate_routing"
	ActionContinueConverging    = "continue_routing_converging"
	ActionConsiderOscillating   = "consider_early_termination_oscillating"
	ActionInvestigateDivergence = "investigate_divergence_causes"
	ActionInvestigateChaos      = "reset_or_investigate_chaos"
)

// Metrics is the result of one analysis.
type Metrics struct {
	State           State    `json:"stability_state"`
	Confidence      float64  `json:"confidence_score"`
	ConvergenceRate *float64 `json:"convergence_rate"`

	Variance             float64  `json:"value_variance"`
	Trend                string   `json:"trend_direction"`
	OscillationFrequency *float64 `json:"oscillation_frequency"`

	TimeToStability       *float64 `json:"time_to_stability_est"`
	WindowSize            int      `json:"stability_window_size"`
	LastSignificantChange *int     `json:"last_significant_change"`

	NoiseLevel     float64 `json:"noise_level"`
	Predictability float64 `json:"predictability_score"`

	ShouldStop      bool   `json:"should_stop"`
	StopReason      string `json:"stop_reason,omitempty"`
	SuggestedAction string `json:"suggested_action"`
}

// Detector holds the analysis thresholds.
type Detector struct {
	// Relative dispersion (std/|mean|) at or below which the window counts as stable.
	ConvergenceThreshold float64
	Window               int
	MinObservations      int
	// Absolute slope per step below which the trend is flat.
	NoiseThreshold float64
	// Absolute variance above which divergence stops the loop.
	DivergenceVarianceLimit float64
}

// Option configures a Detector.
type Option func(*Detector)

func WithConvergenceThreshold(v float64) Option {
	return func(d *Detector) { d.ConvergenceThreshold = v }
}

func WithWindow(n int) Option {
	return func(d *Detector) { d.Window = n }
}

func WithMinObservations(n int) Option {
	return func(d *Detector) { d.MinObservations = n }
}

func WithNoiseThreshold(v float64) Option {
	return func(d *Detector) { d.NoiseThreshold = v }
}

func WithDivergenceVarianceLimit(v float64) Option {
	return func(d *Detector) { d.DivergenceVarianceLimit = v }
}

// New returns a detector with the default thresholds, then applies opts.
func New(opts ...Option) *Detector {
	d := &Detector{
		ConvergenceThreshold:    0.005,
		Window:                  5,
		MinObservations:         3,
		NoiseThreshold:          0.001,
		DivergenceVarianceLimit: 1.0,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.Window < 1 {
		d.Window = 1
	}
	return d
}

// Analyze classifies the decision history. It never fails; short histories
// yield a zero-confidence Converging result.
func (d *Detector) Analyze(decisions []router.Decision) Metrics {
	if len(decisions) < d.MinObservations || len(decisions) == 0 {
		return insufficient(len(decisions))
	}

	values := make([]float64, len(decisions))
	for i, dec := range decisions {
		values[i] = dec.CurrentValue
	}

	window := min(d.Window, len(values))
	recent := values[len(values)-window:]

	variance := 0.0
	if len(recent) > 1 {
		variance = variance1(recent)
	}
	state := d.classify(values, recent)
	rate := convergenceRate(values)
	pred := predictability(recent)
	noise := noiseLevel(recent)

	stop, reason := d.shouldStop(state, variance, recent, decisions)
	confidence := d.confidence(len(values), pred, noise)

	return Metrics{
		State:                 state,
		Confidence:            confidence,
		ConvergenceRate:       rate,
		Variance:              variance,
		Trend:                 d.trend(recent),
		OscillationFrequency:  oscillationFrequency(recent),
		TimeToStability:       d.timeToStability(state, rate, relativeVariance(recent)),
		WindowSize:            window,
		LastSignificantChange: d.lastSignificantChange(values),
		NoiseLevel:            noise,
		Predictability:        pred,
		ShouldStop:            stop,
		StopReason:            reason,
		SuggestedAction:       suggest(state, stop, confidence),
	}
}

func insufficient(n int) Metrics {
	return Metrics{
		State:           Converging,
		Trend:           TrendInsufficient,
		WindowSize:      n,
		SuggestedAction: ActionContinueMonitoring,
	}
}

// classify applies: stable, oscillating, diverging, chaotic, else converging.
func (d *Detector) classify(all, recent []float64) State {
	if len(recent) < 2 {
		return Converging
	}
	if dispersion(recent) <= d.ConvergenceThreshold {
		return Stable
	}
	if isOscillating(recent) {
		return Oscillating
	}
	if len(all) >= 2*d.Window {
		early := variance1(all[:d.Window])
		if variance1(recent) > 2*early {
			return Diverging
		}
	}
	if predictability(recent) < 0.3 {
		return Chaotic
	}
	return Converging
}

func (d *Detector) trend(values []float64) string {
	if len(values) < 2 {
		return TrendInsufficient
	}
	s := slope(values)
	switch {
	case math.Abs(s) < d.NoiseThreshold:
		return TrendStable
	case s > 0:
		return TrendIncreasing
	default:
		return TrendDecreasing
	}
}

func (d *Detector) shouldStop(state State, variance float64, recent []float64, decisions []router.Decision) (bool, string) {
	thr2 := d.ConvergenceThreshold * d.ConvergenceThreshold

	if state == Stable {
		return true, fmt.Sprintf("system reached stable state (variance=%.6f)", variance)
	}
	if state == Oscillating && relativeVariance(recent) < 2*thr2 {
		return true, fmt.Sprintf("low-amplitude oscillation detected (variance=%.6f)", variance)
	}

	unchanged := 0
	from := max(0, len(decisions)-d.Window)
	for _, dec := range decisions[from:] {
		unchanged = max(unchanged, dec.UnchangedSteps)
	}
	if unchanged >= d.Window {
		return true, fmt.Sprintf("no significant change for %d steps", unchanged)
	}

	if state == Diverging && variance > d.DivergenceVarianceLimit {
		return true, fmt.Sprintf("system diverging dangerously (variance=%.6f)", variance)
	}
	return false, ""
}

func (d *Detector) timeToStability(state State, rate *float64, relVar float64) *float64 {
	switch state {
	case Stable:
		return ptr(0)
	case Diverging, Chaotic:
		return nil
	}
	if rate == nil || *rate <= 0 {
		return nil
	}
	target := d.ConvergenceThreshold * d.ConvergenceThreshold
	if relVar <= target {
		return ptr(1)
	}
	if *rate >= 1 {
		return ptr(1)
	}
	// exponential decay of the variance at the observed rate
	est := math.Log(target/relVar) / math.Log(1-*rate)
	return ptr(math.Max(1, est))
}

func (d *Detector) lastSignificantChange(values []float64) *int {
	if len(values) < 2 {
		return nil
	}
	for i := len(values) - 1; i > 0; i-- {
		prev := values[i-1]
		if prev == 0 {
			continue
		}
		if math.Abs(values[i]-prev)/math.Abs(prev) > d.ConvergenceThreshold {
			n := len(values) - i
			return &n
		}
	}
	n := len(values) - 1
	return &n
}

func (d *Detector) confidence(n int, predictability, noise float64) float64 {
	obs := math.Min(float64(n)/float64(2*d.Window), 1.0)
	noiseConf := 1.0 / (1.0 + noise*100)
	return obs*0.4 + predictability*0.4 + noiseConf*0.2
}

func suggest(state State, stop bool, confidence float64) string {
	if stop {
		return ActionTerminate
	}
	if confidence < 0.3 {
		return ActionLowConfidence
	}
	switch state {
	case Stable:
		return ActionTerminate
	case Converging:
		return ActionContinueConverging
	case Oscillating:
		return ActionConsiderOscillating
	case Diverging:
		return ActionInvestigateDivergence
	default:
		return ActionInvestigateChaos
	}
}

func ptr(v float64) *float64 { return &v }
