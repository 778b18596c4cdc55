// Package assumption turns company fundamentals into per-year kernel driver paths.
// Explicit overrides take precedence; the remaining years trend toward the stable targets.
package assumption

// TrendType selects how a default path moves from its start value to the stable target.
type TrendType string

const (
	TrendLinear      TrendType = "Linear"
	TrendSCurve      TrendType = "S-Curve"
	TrendConstant    TrendType = "Constant"
	TrendExponential TrendType = "Exponential"
)

// Macro holds the market inputs of the discount-rate path.
type Macro struct {
	RiskFreeCurve []float64 `json:"risk_free_curve" yaml:"risk_free_curve"`
	ERP           float64   `json:"erp" yaml:"erp"`
	CountryRisk   float64   `json:"country_risk" yaml:"country_risk"`
}

// DefaultMacro is used when no curve is supplied.
func DefaultMacro(horizon int) Macro {
	return Macro{RiskFreeCurve: fill(0.03, horizon), ERP: 0.05}
}

// Override is an explicit user view on one driver. Values shorter than the
// horizon are extended toward the driver's stable target.
type Override struct {
	Values []float64 `json:"values" yaml:"values"`
}

// BuildOptions tunes BuildInputs. Zero values fall back to the defaults noted on each field.
type BuildOptions struct {
	Horizon      int      `json:"horizon" yaml:"horizon"`             // 10
	StableGrowth *float64 `json:"stable_growth" yaml:"stable_growth"` // min(3%, last rf), floored at 0
	StableMargin *float64 `json:"stable_margin" yaml:"stable_margin"` // start margin clamped to [5%, 35%]
	Beta         float64  `json:"beta" yaml:"beta"`                   // 1.0
	Macro        *Macro   `json:"macro" yaml:"macro"`

	Trend TrendType `json:"trend" yaml:"trend"` // Linear

	SalesGrowth    *Override `json:"sales_growth" yaml:"sales_growth"`
	OperMargin     *Override `json:"oper_margin" yaml:"oper_margin"`
	SalesToCapital *Override `json:"sales_to_capital" yaml:"sales_to_capital"`

	MidYear bool `json:"mid_year" yaml:"mid_year"`
}

// Builder bounds.
const (
	DefaultHorizon      = 10
	MinStartGrowth      = -0.20
	MaxStartGrowth      = 0.25
	MinStableMargin     = 0.05
	MaxStableMargin     = 0.35
	MaxStableGrowth     = 0.03
	StartSalesToCapital = 2.0
	EndSalesToCapital   = 2.5
)
