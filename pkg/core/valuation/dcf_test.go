package valuation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseInputs(T int, mode DiscountMode) Inputs {
	return Inputs{
		Company:        "SyntheticCo",
		Ticker:         "SYN",
		Currency:       "USD",
		Horizon:        T,
		RevenueT0:      1000,
		SalesGrowth:    repeat(0.04, T),
		OperMargin:     repeat(0.12, T),
		WACC:           repeat(0.06, T),
		SalesToCapital: repeat(2.0, T),
		TaxRate:        0.25,
		StableGrowth:   0.02,
		StableMargin:   0.12,
		SharesOut:      1000,
		Discounting:    mode,
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestValue_SingleYearByHand(t *testing.T) {
	in := Inputs{
		Horizon:        1,
		RevenueT0:      1000,
		SalesGrowth:    []float64{0.10},
		OperMargin:     []float64{0.20},
		WACC:           []float64{0.10},
		SalesToCapital: []float64{2},
		TaxRate:        0.25,
		StableGrowth:   0.03,
		StableMargin:   0.20,
		SharesOut:      100,
	}

	// Year 1: Rev 1100, EBIT 220, NOPAT 165, Reinvest 50, FCFF 115, DF 1/1.1
	// Year 2: Rev 1133, NOPAT 169.95, Reinvest 16.5, FCFF 153.45, TV = 153.45 / 0.07
	res, err := Value(in)
	require.NoError(t, err)

	assert.InDelta(t, 115.0/1.1, res.PVExplicit, 1e-9)
	assert.InDelta(t, 153.45, res.TerminalFCFF, 1e-9)
	assert.InDelta(t, 153.45/0.07, res.TerminalValue, 1e-9)
	assert.InDelta(t, 153.45/0.07/1.1, res.PVTerminal, 1e-9)
	assert.InDelta(t, res.EquityValue/100, res.ValuePerShare, 1e-12)
	require.Len(t, res.Path, 1)
	assert.InDelta(t, 1100.0, res.Path[0].Revenue, 1e-9)
	assert.InDelta(t, 50.0, res.Path[0].Reinvestment, 1e-9)
	assert.Equal(t, "end-year", res.Notes)
}

func TestValue_EndToEndScenario(t *testing.T) {
	in := Inputs{
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

	first, err := Value(in)
	require.NoError(t, err)
	second, err := Value(in)
	require.NoError(t, err)

	assert.Greater(t, first.ValuePerShare, 0.0)
	assert.False(t, math.IsInf(first.ValuePerShare, 0) || math.IsNaN(first.ValuePerShare))
	assert.InDelta(t, 22.014049586776, first.ValuePerShare, 1e-9)
	assert.Equal(t, first, second, "kernel must be bit-for-bit deterministic")
}

func TestValue_PVBridge(t *testing.T) {
	in := baseInputs(8, EndOfYear)
	in.NetDebt = 250
	in.CashNonOp = 75

	res, err := Value(in)
	require.NoError(t, err)

	assert.InDelta(t, res.PVOperAssets, res.PVExplicit+res.PVTerminal, 1e-8)
	assert.InDelta(t, res.PVOperAssets-250+75, res.EquityValue, 1e-8)

	var sum float64
	for _, y := range res.Path {
		sum += y.PV
	}
	assert.InDelta(t, res.PVExplicit, sum, 1e-8)
}

func TestValue_MidYearUplift(t *testing.T) {
	end, err := Value(baseInputs(12, EndOfYear))
	require.NoError(t, err)
	mid, err := Value(baseInputs(12, MidYear))
	require.NoError(t, err)

	uplift := mid.PVOperAssets/end.PVOperAssets - 1.0
	// sqrt(1.06) - 1 ≈ 2.96%
	assert.InDelta(t, math.Sqrt(1.06)-1, uplift, 1e-9)
	assert.Equal(t, "mid-year", mid.Notes)
}

func TestValue_GradientSigns(t *testing.T) {
	in := baseInputs(10, EndOfYear)
	base, err := Value(in)
	require.NoError(t, err)

	upMargin := in.Clone()
	for i := range upMargin.OperMargin {
		upMargin.OperMargin[i] += 0.01
	}
	vm, err := Value(upMargin)
	require.NoError(t, err)
	assert.Greater(t, vm.ValuePerShare, base.ValuePerShare)

	for year := 0; year < in.Horizon; year++ {
		upWACC := in.Clone()
		upWACC.WACC[year] += 0.01
		vw, err := Value(upWACC)
		require.NoError(t, err)
		assert.Less(t, vw.ValuePerShare, base.ValuePerShare, "raising wacc[%d] must lower value", year)
	}
}

func TestValue_NegativeGrowthReleasesCapital(t *testing.T) {
	in := baseInputs(3, EndOfYear)
	in.SalesGrowth = []float64{-0.10, -0.05, 0.0}

	res, err := Value(in)
	require.NoError(t, err)
	assert.Less(t, res.Path[0].Reinvestment, 0.0)
	assert.Greater(t, res.Path[0].FCFF, res.Path[0].NOPAT)
	assert.Equal(t, 0.0, res.Path[2].Reinvestment)
}

func TestValue_ShapeMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Inputs)
		field  string
	}{
		{"short growth", func(in *Inputs) { in.SalesGrowth = in.SalesGrowth[:3] }, "sales_growth"},
		{"long margin", func(in *Inputs) { in.OperMargin = append(in.OperMargin, 0.1) }, "oper_margin"},
		{"nil wacc", func(in *Inputs) { in.WACC = nil }, "wacc"},
		{"short s2c", func(in *Inputs) { in.SalesToCapital = in.SalesToCapital[1:] }, "sales_to_capital"},
		{"zero horizon", func(in *Inputs) { in.Horizon = 0 }, "horizon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInputs(5, EndOfYear)
			tt.mutate(&in)

			_, err := Value(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrShapeMismatch))

			var shape *ShapeMismatchError
			require.True(t, errors.As(err, &shape))
			assert.Equal(t, tt.field, shape.Field)
		})
	}
}

func TestValue_InvalidTerminalValue(t *testing.T) {
	for _, g := range []float64{0.06, 0.08} {
		in := baseInputs(5, EndOfYear)
		in.StableGrowth = g

		_, err := Value(in)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidTerminalValue))

		var tv *InvalidTerminalValueError
		require.True(t, errors.As(err, &tv))
		assert.Equal(t, 0.06, tv.WACC)
		assert.Equal(t, g, tv.StableGrowth)
	}
}

func TestValue_DivisionByZero(t *testing.T) {
	in := baseInputs(4, EndOfYear)
	in.SharesOut = 0
	_, err := Value(in)
	assert.True(t, errors.Is(err, ErrDivisionByZero))

	in = baseInputs(4, EndOfYear)
	in.SalesToCapital[2] = 0
	_, err = Value(in)
	var dz *DivisionByZeroError
	require.True(t, errors.As(err, &dz))
	assert.Equal(t, "sales_to_capital", dz.Field)
	assert.Equal(t, 2, dz.Index)
}

func TestInputs_CloneIsDeep(t *testing.T) {
	in := baseInputs(4, MidYear)
	cp := in.Clone()
	cp.SalesGrowth[0] = 0.5
	cp.OperMargin[1] = 0.5
	cp.WACC[2] = 0.5
	cp.SalesToCapital[3] = 9

	assert.Equal(t, 0.04, in.SalesGrowth[0])
	assert.Equal(t, 0.12, in.OperMargin[1])
	assert.Equal(t, 0.06, in.WACC[2])
	assert.Equal(t, 2.0, in.SalesToCapital[3])
	assert.Equal(t, MidYear, cp.Discounting)
}

func TestDiscountMode_Text(t *testing.T) {
	var m DiscountMode
	require.NoError(t, m.UnmarshalText([]byte("mid-year")))
	assert.Equal(t, MidYear, m)

	b, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "midyear", string(b))

	require.NoError(t, m.UnmarshalText([]byte("")))
	assert.Equal(t, EndOfYear, m)
	assert.Error(t, m.UnmarshalText([]byte("quarterly")))
}
