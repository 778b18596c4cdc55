package models

import (
	"sort"
	"time"
)

// BalanceSheet carries the few balance-sheet lines the equity bridge needs.
type BalanceSheet struct {
	CashAndEquivalents   float64 `json:"cash_and_equivalents"`
	ShortTermInvestments float64 `json:"short_term_investments"`
	ShortTermDebt        float64 `json:"short_term_debt"`
	LongTermDebt         float64 `json:"long_term_debt"`
	LeaseLiabilities     float64 `json:"lease_liabilities"`
}

// NetDebt is total debt (including leases) less cash and short-term investments.
func (b BalanceSheet) NetDebt() float64 {
	debt := b.ShortTermDebt + b.LongTermDebt + b.LeaseLiabilities
	return debt - b.CashAndEquivalents - b.ShortTermInvestments
}

// Fundamentals is the parsed company history consumed by the input builder.
type Fundamentals struct {
	Company  string    `json:"company"`
	Ticker   string    `json:"ticker"`
	Currency string    `json:"currency"`
	AsOf     time.Time `json:"asof_date,omitempty"`

	// Annual history keyed by fiscal year (YYYY)
	Revenue map[int]float64 `json:"revenue"`
	EBIT    map[int]float64 `json:"ebit"`

	// Trailing-twelve-month aggregates, preferred when present
	RevenueTTM *float64 `json:"revenue_ttm,omitempty"`
	EBITTTM    *float64 `json:"ebit_ttm,omitempty"`
	TaxRate    *float64 `json:"tax_rate,omitempty"`

	SharesOut *float64 `json:"shares_out,omitempty"`
	NetDebt   *float64 `json:"net_debt,omitempty"`
	CashNonOp *float64 `json:"cash_nonop,omitempty"`

	// Used for NetDebt when the scalar is absent
	BalanceSheet *BalanceSheet `json:"balance_sheet,omitempty"`

	SIC string `json:"sic,omitempty"`
}

// Years returns the fiscal years with revenue, ascending.
func (f *Fundamentals) Years() []int {
	years := make([]int, 0, len(f.Revenue))
	for y := range f.Revenue {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// RevenueSeries returns revenue ordered by fiscal year.
func (f *Fundamentals) RevenueSeries() []float64 {
	years := f.Years()
	out := make([]float64, len(years))
	for i, y := range years {
		out[i] = f.Revenue[y]
	}
	return out
}

// MarginSeries returns EBIT/revenue per fiscal year; a zero-revenue year has margin 0.
func (f *Fundamentals) MarginSeries() []float64 {
	years := f.Years()
	out := make([]float64, len(years))
	for i, y := range years {
		if r := f.Revenue[y]; r != 0 {
			out[i] = f.EBIT[y] / r
		}
	}
	return out
}

// ResolvedNetDebt prefers the explicit scalar, then the balance sheet, then zero.
func (f *Fundamentals) ResolvedNetDebt() float64 {
	if f.NetDebt != nil {
		return *f.NetDebt
	}
	if f.BalanceSheet != nil {
		return f.BalanceSheet.NetDebt()
	}
	return 0
}
