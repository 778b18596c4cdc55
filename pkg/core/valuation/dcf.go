package valuation

import (
	"math"
)

// YearProjection is one explicit forecast year of the FCFF build.
type YearProjection struct {
	Year           int     `json:"year"` // 1-based offset from the base year
	Revenue        float64 `json:"revenue"`
	EBIT           float64 `json:"ebit"`
	NOPAT          float64 `json:"nopat"`
	Reinvestment   float64 `json:"reinvestment"`
	FCFF           float64 `json:"fcff"`
	WACC           float64 `json:"wacc"`
	DiscountFactor float64 `json:"discount_factor"`
	PV             float64 `json:"pv"`
}

// Result holds the valuation outputs of a single kernel call.
type Result struct {
	PVExplicit    float64 `json:"pv_explicit"`
	PVTerminal    float64 `json:"pv_terminal"`
	PVOperAssets  float64 `json:"pv_oper_assets"`
	NetDebt       float64 `json:"net_debt"`
	CashNonOp     float64 `json:"cash_nonop"`
	EquityValue   float64 `json:"equity_value"`
	SharesOut     float64 `json:"shares_out"`
	ValuePerShare float64 `json:"value_per_share"`

	TerminalFCFF  float64 `json:"terminal_fcff"`  // FCFF in year T+1
	TerminalValue float64 `json:"terminal_value"` // Undiscounted, at year T
	Notes         string  `json:"notes"`

	Path []YearProjection `json:"path"`
}

// Value performs the driver-based FCFF DCF.
//
// Explicit years project revenue from RevenueT0, derive reinvestment from incremental revenue
// and the sales-to-capital ratio, and discount at the cumulative per-year WACC. The terminal
// value is a Gordon growth perpetuity on year T+1 FCFF at the final-year WACC.
func Value(in Inputs) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	T := in.Horizon
	path := make([]YearProjection, T)

	var pvExplicit float64
	prevRevenue := in.RevenueT0
	cumDiscountFactor := 1.0

	for t := 0; t < T; t++ {
		// 1. Revenue and operating income
		revenue := prevRevenue * (1.0 + in.SalesGrowth[t])
		ebit := revenue * in.OperMargin[t]
		nopat := ebit * (1.0 - in.TaxRate)

		// 2. Reinvestment (negative when revenue shrinks: capital is released)
		reinvest := reinvestment(revenue-prevRevenue, in.SalesToCapital[t])
		fcff := nopat - reinvest

		// 3. Discount (dynamic WACC)
		wacc := in.WACC[t]
		cumDiscountFactor /= (1.0 + wacc)
		df := cumDiscountFactor
		if in.Discounting == MidYear {
			df *= math.Sqrt(1.0 + wacc)
		}

		pv := fcff * df
		pvExplicit += pv

		path[t] = YearProjection{
			Year:           t + 1,
			Revenue:        revenue,
			EBIT:           ebit,
			NOPAT:          nopat,
			Reinvestment:   reinvest,
			FCFF:           fcff,
			WACC:           wacc,
			DiscountFactor: df,
			PV:             pv,
		}
		prevRevenue = revenue
	}

	// 4. Terminal Value (Gordon Growth) at the final-year WACC
	fcffT1, tv, err := terminalValue(in, path[T-1].Revenue)
	if err != nil {
		return Result{}, err
	}
	pvTerminal := tv * path[T-1].DiscountFactor

	// 5. Equity bridge
	pvOper := pvExplicit + pvTerminal
	equity := pvOper - in.NetDebt + in.CashNonOp

	notes := "end-year"
	if in.Discounting == MidYear {
		notes = "mid-year"
	}

	return Result{
		PVExplicit:    pvExplicit,
		PVTerminal:    pvTerminal,
		PVOperAssets:  pvOper,
		NetDebt:       in.NetDebt,
		CashNonOp:     in.CashNonOp,
		EquityValue:   equity,
		SharesOut:     in.SharesOut,
		ValuePerShare: equity / in.SharesOut,
		TerminalFCFF:  fcffT1,
		TerminalValue: tv,
		Notes:         notes,
		Path:          path,
	}, nil
}

// terminalValue returns FCFF(T+1) and the undiscounted perpetuity value at year T.
// Year T+1 runs at the stable growth and stable margin; reinvestment uses the last sales-to-capital.
func terminalValue(in Inputs, revenueT float64) (float64, float64, error) {
	g := in.StableGrowth
	r := in.WACC[in.Horizon-1]
	if r-g <= 0 {
		return 0, 0, &InvalidTerminalValueError{WACC: r, StableGrowth: g}
	}

	revenueT1 := revenueT * (1.0 + g)
	nopatT1 := revenueT1 * in.StableMargin * (1.0 - in.TaxRate)
	reinvestT1 := reinvestment(revenueT1-revenueT, in.SalesToCapital[in.Horizon-1])

	fcffT1 := nopatT1 - reinvestT1
	return fcffT1, fcffT1 / (r - g), nil
}

// reinvestment converts incremental revenue to required net capital.
// Validate rejects zero ratios; a negative ratio carries no reinvestment.
func reinvestment(deltaRevenue, salesToCapital float64) float64 {
	if salesToCapital > 0 {
		return deltaRevenue / salesToCapital
	}
	return 0
}
