package sensitivity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic_dcf/pkg/core/valuation"
)

func sampleInputs() valuation.Inputs {
	return valuation.Inputs{
		Horizon:        3,
		RevenueT0:      1000,
		SalesGrowth:    []float64{0.1, 0.08, 0.05},
		OperMargin:     []float64{0.2, 0.2, 0.2},
		WACC:           []float64{0.1, 0.1, 0.1},
		SalesToCapital: []float64{2, 2, 2},
		TaxRate:        0.25,
		StableGrowth:   0.03,
		StableMargin:   0.2,
		SharesOut:      100,
	}
}

func TestCompute_ShapeAndCenter(t *testing.T) {
	in := sampleInputs()
	res, err := Compute(context.Background(), in, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, res.Grid, 5)
	for _, row := range res.Grid {
		assert.Len(t, row, 5)
	}
	assert.InDeltaSlice(t, []float64{-0.02, -0.01, 0, 0.01, 0.02}, res.GrowthAxis, 1e-12)
	assert.Equal(t, 0.0, res.MarginAxis[2])

	base, err := valuation.Value(in)
	require.NoError(t, err)
	center, ok := res.Center()
	require.True(t, ok)
	assert.Equal(t, base.ValuePerShare, center)
	assert.Equal(t, base.ValuePerShare, res.BaseValuePerShare)
}

func TestCompute_MatchesSequential(t *testing.T) {
	in := sampleInputs()
	opts := Options{GrowthDelta: 0.03, MarginDelta: 0.02, GrowthSteps: 7, MarginSteps: 3, Workers: 4}
	res, err := Compute(context.Background(), in, opts)
	require.NoError(t, err)

	for i, dm := range res.MarginAxis {
		for j, dg := range res.GrowthAxis {
			want, err := valuation.Value(Shift(in, dg, dm))
			require.NoError(t, err)
			assert.Equal(t, want.ValuePerShare, res.Grid[i][j], "cell [%d][%d]", i, j)
		}
	}
	// rows grow with margin, columns grow with growth
	assert.Less(t, res.Grid[0][3], res.Grid[2][3])
	assert.Less(t, res.Grid[1][0], res.Grid[1][6])
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	in := sampleInputs()
	before := in.Clone()
	_, err := Compute(context.Background(), in, Options{})
	require.NoError(t, err)
	assert.Equal(t, before, in)
}

func TestCompute_SingleStepAxis(t *testing.T) {
	res, err := Compute(context.Background(), sampleInputs(), Options{GrowthSteps: 1, MarginSteps: 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, res.GrowthAxis)
	assert.Equal(t, []float64{0}, res.MarginAxis)
	assert.Equal(t, res.BaseValuePerShare, res.Grid[0][0])
}

func TestCompute_PropagatesKernelErrors(t *testing.T) {
	in := sampleInputs()
	in.WACC = in.WACC[:2]
	_, err := Compute(context.Background(), in, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, valuation.ErrShapeMismatch))

	in = sampleInputs()
	in.StableGrowth = 0.12
	_, err = Compute(context.Background(), in, Options{})
	assert.True(t, errors.Is(err, valuation.ErrInvalidTerminalValue))
}

func TestCompute_ZeroDeltasStayAtBase(t *testing.T) {
	res, err := Compute(context.Background(), sampleInputs(), Options{GrowthSteps: 3, MarginSteps: 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, res.GrowthAxis)
	assert.Equal(t, []float64{0, 0, 0}, res.MarginAxis)
	for _, row := range res.Grid {
		for _, v := range row {
			assert.Equal(t, res.BaseValuePerShare, v)
		}
	}
}

func TestCompute_DefaultsOnlyFillSteps(t *testing.T) {
	res, err := Compute(context.Background(), sampleInputs(), Options{GrowthDelta: 0.01, MarginDelta: 0.01})
	require.NoError(t, err)
	assert.Len(t, res.GrowthAxis, 5)
	assert.Len(t, res.MarginAxis, 5)
	assert.InDelta(t, 0.01, res.GrowthAxis[4], 1e-12)
}

func TestCompute_RejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"growth steps over max", Options{GrowthSteps: MaxSteps + 1, MarginSteps: 3}},
		{"margin steps over max", Options{GrowthSteps: 3, MarginSteps: 1500}},
		{"negative delta", Options{GrowthDelta: -0.01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compute(context.Background(), sampleInputs(), tt.opts)
			assert.ErrorIs(t, err, ErrInvalidOptions)
			assert.Nil(t, res)
		})
	}

	_, err := Compute(context.Background(), sampleInputs(), Options{GrowthSteps: MaxSteps, MarginSteps: 1})
	assert.NoError(t, err)
}

func TestCellError_Unwrap(t *testing.T) {
	err := &CellError{Row: 1, Col: 2, Err: &valuation.DivisionByZeroError{Field: "shares_out", Index: -1}}
	assert.True(t, errors.Is(err, valuation.ErrDivisionByZero))
	assert.Contains(t, err.Error(), "[1][2]")
}

func TestCompute_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compute(ctx, sampleInputs(), Options{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShift_Clamps(t *testing.T) {
	in := sampleInputs()
	in.SalesGrowth[0] = -0.98
	in.OperMargin[1] = 0.59

	out := Shift(in, -0.05, 0.05)
	assert.Equal(t, GrowthFloor, out.SalesGrowth[0])
	assert.Equal(t, MarginBound, out.OperMargin[1])
	assert.Equal(t, -0.98, in.SalesGrowth[0])

	out = Shift(in, 0, -1.5)
	assert.Equal(t, -MarginBound, out.OperMargin[0])
}
