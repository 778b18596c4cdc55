// Package sensitivity revalues the kernel over a grid of uniform growth and margin path shifts.
package sensitivity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"agentic_dcf/pkg/core/assumption"
	"agentic_dcf/pkg/core/valuation"
)

// Bounds applied to every shifted driver value.
const (
	GrowthFloor = -0.99
	MarginBound = 0.60
)

// MaxSteps is the largest accepted axis length.
const MaxSteps = 101

// ErrInvalidOptions is returned by Compute for negative deltas or oversized axes.
var ErrInvalidOptions = errors.New("invalid sensitivity options")

// Options controls the grid. Deltas are used as given, so a zero delta yields an
// all-zero axis; start from DefaultOptions for the standard grid. Steps and Workers
// at or below zero take the defaults.
type Options struct {
	GrowthDelta float64 `json:"growth_delta" yaml:"growth_delta" validate:"gte=0"`
	MarginDelta float64 `json:"margin_delta" yaml:"margin_delta" validate:"gte=0"`
	GrowthSteps int     `json:"growth_steps" yaml:"growth_steps" validate:"gte=0,lte=101"`
	MarginSteps int     `json:"margin_steps" yaml:"margin_steps" validate:"gte=0,lte=101"`
	Workers     int     `json:"workers" yaml:"workers" validate:"gte=0"` // GOMAXPROCS
}

// DefaultOptions returns a 5x5 grid of ±2% growth by ±1% margin.
func DefaultOptions() Options {
	return Options{GrowthDelta: 0.02, MarginDelta: 0.01, GrowthSteps: 5, MarginSteps: 5}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.GrowthSteps <= 0 {
		o.GrowthSteps = d.GrowthSteps
	}
	if o.MarginSteps <= 0 {
		o.MarginSteps = d.MarginSteps
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

func (o Options) check() error {
	if o.GrowthDelta < 0 || o.MarginDelta < 0 {
		return fmt.Errorf("%w: deltas must be >= 0, got (%g, %g)", ErrInvalidOptions, o.GrowthDelta, o.MarginDelta)
	}
	if o.GrowthSteps > MaxSteps || o.MarginSteps > MaxSteps {
		return fmt.Errorf("%w: steps must be <= %d, got (%d, %d)", ErrInvalidOptions, MaxSteps, o.GrowthSteps, o.MarginSteps)
	}
	return nil
}

// Result is the value-per-share grid. Grid[row][col] is margin shift MarginAxis[row]
// combined with growth shift GrowthAxis[col].
type Result struct {
	Grid              [][]float64 `json:"grid"`
	GrowthAxis        []float64   `json:"growth_axis"`
	MarginAxis        []float64   `json:"margin_axis"`
	BaseValuePerShare float64     `json:"base_value_per_share"`
}

// Center returns the unshifted cell when both axes have odd length.
func (r *Result) Center() (float64, bool) {
	rows, cols := len(r.MarginAxis), len(r.GrowthAxis)
	if rows%2 == 0 || cols%2 == 0 {
		return 0, false
	}
	return r.Grid[rows/2][cols/2], true
}

// CellError locates the grid cell whose valuation failed.
type CellError struct {
	Row, Col    int
	GrowthShift float64
	MarginShift float64
	Err         error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("sensitivity cell [%d][%d] (dg=%+.4f, dm=%+.4f): %v",
		e.Row, e.Col, e.GrowthShift, e.MarginShift, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// Compute builds the sensitivity grid for in. The input is never modified.
// Any cell failure aborts the whole grid.
func Compute(ctx context.Context, in valuation.Inputs, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := opts.check(); err != nil {
		return nil, err
	}

	base, err := valuation.Value(in)
	if err != nil {
		return nil, fmt.Errorf("base valuation: %w", err)
	}

	growthAxis := Axis(opts.GrowthDelta, opts.GrowthSteps)
	marginAxis := Axis(opts.MarginDelta, opts.MarginSteps)

	grid := make([][]float64, len(marginAxis))
	for i := range grid {
		grid[i] = make([]float64, len(growthAxis))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, dm := range marginAxis {
		for j, dg := range growthAxis {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := valuation.Value(Shift(in, dg, dm))
				if err != nil {
					return &CellError{Row: i, Col: j, GrowthShift: dg, MarginShift: dm, Err: err}
				}
				// each goroutine owns exactly one cell
				grid[i][j] = res.ValuePerShare
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Grid:              grid,
		GrowthAxis:        growthAxis,
		MarginAxis:        marginAxis,
		BaseValuePerShare: base.ValuePerShare,
	}, nil
}

// Axis returns n shifts evenly spaced over [-delta, +delta]. A single step is the zero shift.
func Axis(delta float64, n int) []float64 {
	if n == 1 {
		return []float64{0}
	}
	return assumption.Linspace(-delta, delta, n)
}

// Shift returns a deep copy of in with every growth and margin entry moved by dg and dm.
// Growth is floored at GrowthFloor and margin clamped to ±MarginBound.
func Shift(in valuation.Inputs, dg, dm float64) valuation.Inputs {
	out := in.Clone()
	for t := range out.SalesGrowth {
		out.SalesGrowth[t] = math.Max(GrowthFloor, out.SalesGrowth[t]+dg)
	}
	for t := range out.OperMargin {
		out.OperMargin[t] = math.Min(MarginBound, math.Max(-MarginBound, out.OperMargin[t]+dm))
	}
	return out
}
