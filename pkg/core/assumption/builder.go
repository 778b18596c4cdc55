package assumption

import (
	"fmt"
	"math"

	"agentic_dcf/pkg/core/valuation"
	"agentic_dcf/pkg/models"
)

// BuildInputs maps fundamentals to kernel inputs.
//
// Start growth is the revenue CAGR over the last five years (clamped to [-20%, 25%]); start margin
// prefers TTM EBIT/revenue over the last reported year. Default paths trend from the start values
// to the stable targets; explicit overrides replace their prefix. WACC is rf[t] + beta*(ERP+CRP)
// clamped to [2%, 20%].
func BuildInputs(f *models.Fundamentals, opts BuildOptions) (valuation.Inputs, error) {
	if f == nil {
		return valuation.Inputs{}, fmt.Errorf("fundamentals are nil")
	}
	horizon := opts.Horizon
	if horizon == 0 {
		horizon = DefaultHorizon
	}
	if horizon < 0 {
		return valuation.Inputs{}, fmt.Errorf("invalid horizon %d", horizon)
	}
	beta := opts.Beta
	if beta == 0 {
		beta = 1.0
	}
	trend := opts.Trend
	if trend == "" {
		trend = TrendLinear
	}

	revenues := f.RevenueSeries()
	margins := f.MarginSeries()

	// 1. Starting points
	window := revenues
	if len(window) > 5 {
		window = window[len(window)-5:]
	}
	g0 := clamp(cagr(window), MinStartGrowth, MaxStartGrowth)

	m0 := 0.1
	if f.RevenueTTM != nil && f.EBITTTM != nil && *f.RevenueTTM > 0 {
		m0 = *f.EBITTTM / *f.RevenueTTM
	} else if len(margins) > 0 {
		m0 = margins[len(margins)-1]
	}

	macro := DefaultMacro(horizon)
	if opts.Macro != nil {
		macro = *opts.Macro
	}
	if len(macro.RiskFreeCurve) == 0 {
		macro.RiskFreeCurve = fill(0.03, horizon)
	}

	// 2. Stable targets
	var stableGrowth float64
	if opts.StableGrowth != nil {
		stableGrowth = *opts.StableGrowth
	} else {
		rf := macro.RiskFreeCurve[len(macro.RiskFreeCurve)-1]
		stableGrowth = math.Min(MaxStableGrowth, math.Max(0, rf))
	}
	var stableMargin float64
	if opts.StableMargin != nil {
		stableMargin = *opts.StableMargin
	} else {
		stableMargin = clamp(m0, MinStableMargin, MaxStableMargin)
	}

	// 3. Driver paths
	growth := resolvePath(opts.SalesGrowth, trend, g0, stableGrowth, horizon)
	margin := resolvePath(opts.OperMargin, trend, m0, stableMargin, horizon)
	s2c := resolvePath(opts.SalesToCapital, TrendLinear, StartSalesToCapital, EndSalesToCapital, horizon)

	// 4. Discount rate path
	wacc := valuation.WACCPath(valuation.WACCInput{
		UnleveredBeta:     beta,
		RiskFreeRate:      macro.RiskFreeCurve[0],
		MarketRiskPremium: macro.ERP,
		CountryRisk:       macro.CountryRisk,
	}, macro.RiskFreeCurve, horizon)

	// 5. Scalars
	revenueT0 := 0.0
	if f.RevenueTTM != nil && *f.RevenueTTM > 0 {
		revenueT0 = *f.RevenueTTM
	} else if len(revenues) > 0 {
		revenueT0 = revenues[len(revenues)-1]
	}
	if revenueT0 <= 0 {
		return valuation.Inputs{}, fmt.Errorf("no positive base revenue for %s", f.Ticker)
	}

	in := valuation.Inputs{
		Company:        f.Company,
		Ticker:         f.Ticker,
		Currency:       f.Currency,
		Horizon:        horizon,
		RevenueT0:      revenueT0,
		SalesGrowth:    growth,
		OperMargin:     margin,
		WACC:           wacc,
		SalesToCapital: s2c,
		TaxRate:        valueOr(f.TaxRate, 0.25),
		StableGrowth:   stableGrowth,
		StableMargin:   stableMargin,
		SharesOut:      valueOr(f.SharesOut, 1.0),
		NetDebt:        f.ResolvedNetDebt(),
		CashNonOp:      valueOr(f.CashNonOp, 0),
	}
	if opts.MidYear {
		in.Discounting = valuation.MidYear
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}

	if err := in.Validate(); err != nil {
		return valuation.Inputs{}, fmt.Errorf("built inputs for %s are invalid: %w", f.Ticker, err)
	}
	return in, nil
}

func resolvePath(o *Override, trend TrendType, start, target float64, horizon int) []float64 {
	if o == nil || len(o.Values) == 0 {
		return Path(trend, start, target, horizon)
	}
	return MergePath(o.Values, target, horizon)
}

// cagr over the series. Fewer than two points yields 3%; a non-positive endpoint yields 2%.
func cagr(series []float64) float64 {
	if len(series) < 2 {
		return 0.03
	}
	s0, sN := series[0], series[len(series)-1]
	if s0 <= 0 || sN <= 0 {
		return 0.02
	}
	n := float64(len(series) - 1)
	return math.Pow(sN/s0, 1/n) - 1
}

func valueOr(p *float64, def float64) float64 {
	if p == nil || *p == 0 {
		return def
	}
	return *p
}
