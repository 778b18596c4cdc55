package valuation

// WACCInput parameters for calculating Cost of Capital
type WACCInput struct {
	UnleveredBeta     float64 `json:"unlevered_beta" yaml:"unlevered_beta"`
	RiskFreeRate      float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
	MarketRiskPremium float64 `json:"market_risk_premium" yaml:"market_risk_premium"`
	CountryRisk       float64 `json:"country_risk" yaml:"country_risk"`
	PreTaxCostOfDebt  float64 `json:"pre_tax_cost_of_debt" yaml:"pre_tax_cost_of_debt"`
	TaxRate           float64 `json:"tax_rate" yaml:"tax_rate"`
	DebtToEquityRatio float64 `json:"debt_to_equity" yaml:"debt_to_equity"` // Target Leverage (D/E)
}

// WACCResult holds the calculated rates
type WACCResult struct {
	LeveredBeta  float64 `json:"levered_beta"`
	CostOfEquity float64 `json:"cost_of_equity"`
	CostOfDebt   float64 `json:"cost_of_debt"` // After-tax
	WACC         float64 `json:"wacc"`
	WeightDebt   float64 `json:"weight_debt"`
	WeightEquity float64 `json:"weight_equity"`
}

// WACC path bounds applied by WACCPath.
const (
	MinPathWACC = 0.02
	MaxPathWACC = 0.20
)

// CalculateWACC computes the Weighted Average Cost of Capital using CAPM and Hamada Equation
func CalculateWACC(input WACCInput) WACCResult {
	// 1. Re-lever Beta (Hamada)
	// BetaL = BetaU * (1 + (1-t)*(D/E))
	leveredBeta := input.UnleveredBeta * (1 + (1-input.TaxRate)*input.DebtToEquityRatio)

	// 2. Cost of Equity (CAPM, country risk added to the premium)
	// Ke = Rf + BetaL * (ERP + CRP)
	ke := input.RiskFreeRate + leveredBeta*(input.MarketRiskPremium+input.CountryRisk)

	// 3. Cost of Debt (After-tax)
	kd := input.PreTaxCostOfDebt * (1 - input.TaxRate)

	// 4. Weights from D/E = x: Wd = x/(1+x), We = 1/(1+x)
	wd := input.DebtToEquityRatio / (1 + input.DebtToEquityRatio)
	we := 1.0 / (1 + input.DebtToEquityRatio)

	return WACCResult{
		LeveredBeta:  leveredBeta,
		CostOfEquity: ke,
		CostOfDebt:   kd,
		WACC:         (ke * we) + (kd * wd),
		WeightDebt:   wd,
		WeightEquity: we,
	}
}

// WACCPath calculates a WACC for each projection year by swapping in that year's risk-free rate.
// The curve is padded with its last value (or base.RiskFreeRate when empty) and every rate is
// clamped to [MinPathWACC, MaxPathWACC].
func WACCPath(base WACCInput, riskFree []float64, horizon int) []float64 {
	if horizon <= 0 {
		return nil
	}
	waccs := make([]float64, horizon)

	last := base.RiskFreeRate
	for t := 0; t < horizon; t++ {
		if t < len(riskFree) {
			last = riskFree[t]
		}
		yearInput := base
		yearInput.RiskFreeRate = last

		waccs[t] = clamp(CalculateWACC(yearInput).WACC, MinPathWACC, MaxPathWACC)
	}
	return waccs
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
