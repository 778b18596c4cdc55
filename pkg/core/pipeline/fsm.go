package pipeline

import (
	"agentic_dcf/pkg/core/router"
)

// FSMContext holds the thresholds and data availability for the compact state machine.
type FSMContext struct {
	DeltaValueThreshold float64
	// UnchangedStepsBreak ends the run after this many consecutive steps within
	// DeltaValueThreshold. 0 disables the check.
	UnchangedStepsBreak int
	HaveConsensus       bool
	HaveComparables     bool
	AllowNews           bool
	MaxIters            int
}

// DefaultFSMContext mirrors router.DefaultConfig with no optional data.
func DefaultFSMContext() FSMContext {
	return FSMContext{
		DeltaValueThreshold: 0.005,
		UnchangedStepsBreak: 2,
		MaxIters:            router.DefaultMaxIterations,
	}
}

// FSMState is the value threaded between Step calls.
type FSMState struct {
	Iter                 int
	LastRoute            router.Route
	LastValue            *float64
	RanSensitivityRecent bool
	WithinThresholdSteps int
}

// Step picks the next action for value given state. It is a pure function: the
// returned state is a copy.
//
// A step within the threshold triggers sensitivity once; that step does not move
// LastValue, so the next delta is still measured against the pre-sensitivity value.
func Step(s FSMState, c FSMContext, value float64) (FSMState, router.Route, string) {
	if s.Iter >= c.MaxIters {
		return s, router.RouteEnd, "max_iters"
	}

	if rd, ok := router.RelativeDelta(value, s.LastValue); ok && rd <= c.DeltaValueThreshold {
		s.WithinThresholdSteps++
		if c.UnchangedStepsBreak > 0 && s.WithinThresholdSteps >= c.UnchangedStepsBreak {
			return s, router.RouteEnd, "converged"
		}
		if !s.RanSensitivityRecent {
			s.Iter++
			s.LastRoute = router.RouteSensitivity
			s.RanSensitivityRecent = true
			return s, router.RouteSensitivity, "near_convergence_sensitivity"
		}
	} else {
		s.WithinThresholdSteps = 0
	}

	options := []router.Route{router.RouteMarket}
	if c.HaveConsensus {
		options = append(options, router.RouteConsensus)
	}
	if c.HaveComparables {
		options = append(options, router.RouteComparables)
	}
	if c.AllowNews {
		options = append(options, router.RouteNews)
	}
	action := options[0]
	for i, r := range options {
		if r == s.LastRoute {
			action = options[(i+1)%len(options)]
			break
		}
	}

	s.Iter++
	s.LastRoute = action
	v := value
	s.LastValue = &v
	return s, action, ""
}

// FSMRun is the output of RunFSM.
type FSMRun struct {
	Steps []router.Route
	Final FSMState
}

// RunFSM feeds values through Step until it ends or the values run out.
func RunFSM(initial FSMState, c FSMContext, values []float64) FSMRun {
	s := initial
	var steps []router.Route
	for _, v := range values {
		var action router.Route
		s, action, _ = Step(s, c, v)
		if action == router.RouteEnd {
			break
		}
		steps = append(steps, action)
	}
	return FSMRun{Steps: steps, Final: s}
}
