package valuation

import (
	"fmt"
	"strings"
)

// DiscountMode selects the timing convention used when discounting explicit-period cash flows.
type DiscountMode int

const (
	// EndOfYear discounts each year's FCFF as if received on the last day of the year.
	EndOfYear DiscountMode = iota
	// MidYear assumes cash arrives evenly through the year (half a period earlier).
	MidYear
)

func (m DiscountMode) String() string {
	switch m {
	case EndOfYear:
		return "end"
	case MidYear:
		return "midyear"
	default:
		return fmt.Sprintf("DiscountMode(%d)", int(m))
	}
}

// MarshalText encodes the mode as "end" or "midyear".
func (m DiscountMode) MarshalText() ([]byte, error) {
	switch m {
	case EndOfYear, MidYear:
		return []byte(m.String()), nil
	}
	return nil, fmt.Errorf("unknown discount mode %d", int(m))
}

// UnmarshalText accepts "end", "end-year", "midyear" and "mid-year". Empty means end of year.
func (m *DiscountMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "end", "end-year", "endyear":
		*m = EndOfYear
	case "midyear", "mid-year", "mid":
		*m = MidYear
	default:
		return fmt.Errorf("unknown discount mode %q", string(text))
	}
	return nil
}

// Inputs holds the per-run driver paths consumed by Value.
// All per-year slices must have exactly Horizon entries.
type Inputs struct {
	Company  string `json:"company,omitempty"`
	Ticker   string `json:"ticker,omitempty"`
	Currency string `json:"currency,omitempty"`

	Horizon   int     `json:"horizon"`
	RevenueT0 float64 `json:"revenue_t0"`

	// Driver paths (decimal rates)
	SalesGrowth    []float64 `json:"sales_growth"`
	OperMargin     []float64 `json:"oper_margin"`
	WACC           []float64 `json:"wacc"`
	SalesToCapital []float64 `json:"sales_to_capital"`

	TaxRate      float64 `json:"tax_rate"`
	StableGrowth float64 `json:"stable_growth"`
	StableMargin float64 `json:"stable_margin"`

	// Equity bridge
	SharesOut float64 `json:"shares_out"`
	NetDebt   float64 `json:"net_debt"`
	CashNonOp float64 `json:"cash_nonop"`

	Discounting DiscountMode `json:"discounting"`
}

// Validate checks the structural invariants the kernel relies on.
// It does not bound the economic values (growth, margins) themselves.
func (in Inputs) Validate() error {
	if in.Horizon < 1 {
		return &ShapeMismatchError{Field: "horizon", Got: in.Horizon, Want: 1}
	}

	paths := []struct {
		name string
		vals []float64
	}{
		{"sales_growth", in.SalesGrowth},
		{"oper_margin", in.OperMargin},
		{"wacc", in.WACC},
		{"sales_to_capital", in.SalesToCapital},
	}
	for _, p := range paths {
		if len(p.vals) != in.Horizon {
			return &ShapeMismatchError{Field: p.name, Got: len(p.vals), Want: in.Horizon}
		}
	}

	if in.SharesOut == 0 {
		return &DivisionByZeroError{Field: "shares_out", Index: -1}
	}
	for t, s := range in.SalesToCapital {
		if s == 0 {
			return &DivisionByZeroError{Field: "sales_to_capital", Index: t}
		}
	}
	return nil
}

// Clone returns a deep copy. The returned slices never alias the receiver's.
func (in Inputs) Clone() Inputs {
	out := in
	out.SalesGrowth = cloneFloats(in.SalesGrowth)
	out.OperMargin = cloneFloats(in.OperMargin)
	out.WACC = cloneFloats(in.WACC)
	out.SalesToCapital = cloneFloats(in.SalesToCapital)
	return out
}

func cloneFloats(src []float64) []float64 {
	if src == nil {
		return nil
	}
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst
}
