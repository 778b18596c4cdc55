// Package report renders a valuation run as Markdown or HTML.
package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"agentic_dcf/pkg/core/refine"
	"agentic_dcf/pkg/core/router"
	"agentic_dcf/pkg/core/sensitivity"
	"agentic_dcf/pkg/core/stability"
	"agentic_dcf/pkg/core/valuation"
)

// Section anchors used when merging narrative text.
const (
	SectionSummary   = "## Summary"
	SectionPerYear   = "## Per-Year Detail"
	SectionTerminal  = "## Terminal Value"
	SectionGrid      = "## Sensitivity"
	SectionRouter    = "## Router Trail"
	SectionStability = "## Stability"
)

var printer = message.NewPrinter(language.English)

// Report is everything a rendered report may show. Only Inputs and Result are required.
type Report struct {
	Inputs      valuation.Inputs
	Result      valuation.Result
	Sensitivity *sensitivity.Result
	Session     *router.Session
	Stability   *stability.Metrics
	News        *refine.NewsSummary
	Peers       []refine.Peer
}

// Markdown renders the deterministic report for one valuation.
func Markdown(in valuation.Inputs, res valuation.Result, grid *sensitivity.Result, session *router.Session) string {
	return Report{Inputs: in, Result: res, Sensitivity: grid, Session: session}.Markdown()
}

// Markdown renders the report. Identical reports always render identically.
func (r Report) Markdown() string {
	var b strings.Builder
	in, v := r.Inputs, r.Result

	title := in.Company
	if title == "" {
		title = in.Ticker
	}
	if in.Ticker != "" && in.Company != "" {
		title = fmt.Sprintf("%s (%s)", in.Company, in.Ticker)
	}
	fmt.Fprintf(&b, "# Valuation: %s\n\n", title)
	if in.Currency != "" {
		fmt.Fprintf(&b, "Currency: %s\n\n", in.Currency)
	}

	b.WriteString(SectionSummary + "\n")
	fmt.Fprintf(&b, "- Value per share: %s\n", money2(v.ValuePerShare))
	fmt.Fprintf(&b, "- Equity value: %s\n", money(v.EquityValue))
	fmt.Fprintf(&b, "- PV (explicit): %s\n", money(v.PVExplicit))
	fmt.Fprintf(&b, "- PV (terminal): %s\n", money(v.PVTerminal))
	fmt.Fprintf(&b, "- Terminal share of value: %s\n", pct(share(v.PVTerminal, v.PVOperAssets)))
	fmt.Fprintf(&b, "- Shares out: %s\n\n", money(v.SharesOut))

	b.WriteString("## Drivers & Assumptions\n")
	fmt.Fprintf(&b, "- Discounting convention: %s\n", v.Notes)
	fmt.Fprintf(&b, "- Tax rate: %s\n", pct(in.TaxRate))
	fmt.Fprintf(&b, "- Stable growth: %s\n", pct(in.StableGrowth))
	fmt.Fprintf(&b, "- Stable margin: %s\n", pct(in.StableMargin))
	if n := len(in.SalesToCapital); n > 0 {
		fmt.Fprintf(&b, "- Sales-to-capital (last): %.2f\n", in.SalesToCapital[n-1])
	}
	if n := len(in.WACC); n > 0 {
		fmt.Fprintf(&b, "- WACC (last): %s\n", pct(in.WACC[n-1]))
	}
	fmt.Fprintf(&b, "- Net debt: %s; Cash (non-op): %s\n\n", money(in.NetDebt), money(in.CashNonOp))

	r.writePerYear(&b)
	r.writeTerminal(&b)
	r.writeGrid(&b)
	r.writeNews(&b)
	r.writePeers(&b)
	r.writeRouter(&b)
	r.writeStability(&b)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func (r Report) writePerYear(b *strings.Builder) {
	in := r.Inputs
	b.WriteString(SectionPerYear + "\n")
	row(b, "Year", "Revenue", "Growth", "Margin", "Sales/Capital", "ROIC", "Reinvest", "FCFF", "WACC", "DF", "PV(FCFF)")
	row(b, "---", "---", "---", "---", "---", "---", "---", "---", "---", "---", "---")
	for t, y := range r.Result.Path {
		g, m, s2c := at(in.SalesGrowth, t), at(in.OperMargin, t), at(in.SalesToCapital, t)
		row(b,
			fmt.Sprint(y.Year), money(y.Revenue), pct(g), pct(m), fmt.Sprintf("%.2f", s2c),
			pct(m*(1-in.TaxRate)*s2c), money(y.Reinvestment), money(y.FCFF),
			pct(y.WACC), fmt.Sprintf("%.4f", y.DiscountFactor), money(y.PV),
		)
	}
	b.WriteString("\n")
}

func (r Report) writeTerminal(b *strings.Builder) {
	in, v := r.Inputs, r.Result
	b.WriteString(SectionTerminal + "\n")
	fmt.Fprintf(b, "- Next-year FCFF (T+1): %s\n", money(v.TerminalFCFF))
	if n := len(in.WACC); n > 0 {
		fmt.Fprintf(b, "- r - g: %s\n", pct(in.WACC[n-1]-in.StableGrowth))
	}
	fmt.Fprintf(b, "- TV at T: %s\n", money(v.TerminalValue))
	if n := len(v.Path); n > 0 {
		fmt.Fprintf(b, "- Discount factor at T: %.4f\n", v.Path[n-1].DiscountFactor)
	}
	fmt.Fprintf(b, "- PV(TV): %s\n\n", money(v.PVTerminal))
}

func (r Report) writeGrid(b *strings.Builder) {
	g := r.Sensitivity
	if g == nil || len(g.Grid) == 0 {
		return
	}
	b.WriteString(SectionGrid + "\n")
	b.WriteString("Value per share by margin shift (rows) and growth shift (columns).\n\n")

	header := []string{"Margin \\ Growth"}
	for _, dg := range g.GrowthAxis {
		header = append(header, signedPct(dg))
	}
	row(b, header...)
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	row(b, sep...)
	for i, dm := range g.MarginAxis {
		cells := []string{signedPct(dm)}
		for _, vps := range g.Grid[i] {
			cells = append(cells, money2(vps))
		}
		row(b, cells...)
	}
	b.WriteString("\n")
}

func (r Report) writeNews(b *strings.Builder) {
	n := r.News
	if n == nil || (len(n.Facts) == 0 && len(n.Impacts) == 0) {
		return
	}
	b.WriteString("## News & Impacts\n")
	for i, f := range n.Facts {
		if i == 8 {
			break
		}
		tags := ""
		if len(f.Tags) > 0 {
			tags = " [" + strings.Join(f.Tags, ", ") + "]"
		}
		fmt.Fprintf(b, "- %s%s\n", f.Title, tags)
	}
	if len(n.Impacts) > 0 {
		b.WriteString("\n")
		row(b, "Driver", "Window", "Delta", "Confidence", "Facts")
		row(b, "---", "---", "---", "---", "---")
		for _, imp := range n.Impacts {
			row(b, imp.Driver,
				fmt.Sprintf("Y+%d to Y+%d", imp.StartYearOffset, imp.EndYearOffset),
				fmt.Sprintf("%+.4f", imp.Delta), fmt.Sprintf("%.2f", imp.Confidence),
				strings.Join(imp.FactIDs, ","))
		}
	}
	b.WriteString("\n")
}

func (r Report) writePeers(b *strings.Builder) {
	if len(r.Peers) == 0 {
		return
	}
	b.WriteString("## Comparables\n")
	row(b, "Ticker", "Name", "Stable margin", "EV/Sales", "EV/EBITDA")
	row(b, "---", "---", "---", "---", "---")
	for _, p := range r.Peers {
		row(b, p.Ticker, p.Name, optPct(p.StableMargin), optMultiple(p.EVSales), optMultiple(p.EVEBITDA))
	}
	if med, ok := refine.PeerMedianMargin(r.Peers); ok {
		fmt.Fprintf(b, "\nPeer median stable margin: %s\n", pct(med))
	}
	b.WriteString("\n")
}

func (r Report) writeRouter(b *strings.Builder) {
	s := r.Session
	if s == nil || len(s.Decisions) == 0 {
		return
	}
	b.WriteString(SectionRouter + "\n")
	row(b, "Iter", "Route", "Value/share", "Delta", "Reason")
	row(b, "---", "---", "---", "---", "---")
	for _, d := range s.Decisions {
		delta := "n/a"
		if d.ValueDeltaPct != nil {
			delta = pct(*d.ValueDeltaPct)
		}
		row(b, fmt.Sprint(d.Iteration), d.Route.String(), money2(d.CurrentValue), delta, d.Reason)
	}
	fmt.Fprintf(b, "\n- Termination: %s\n", s.TerminationReason)
	fmt.Fprintf(b, "- Converged: %t\n", s.Converged)
	fmt.Fprintf(b, "- Route diversity: %.2f\n\n", s.RouteDiversity)
}

func (r Report) writeStability(b *strings.Builder) {
	m := r.Stability
	if m == nil {
		return
	}
	b.WriteString(SectionStability + "\n")
	fmt.Fprintf(b, "- State: %s\n", m.State)
	fmt.Fprintf(b, "- Confidence: %.2f\n", m.Confidence)
	fmt.Fprintf(b, "- Trend: %s\n", m.Trend)
	fmt.Fprintf(b, "- Suggested action: %s\n\n", m.SuggestedAction)
}

func row(b *strings.Builder, cells ...string) {
	for i, c := range cells {
		cells[i] = strings.ReplaceAll(c, "|", "\\|")
	}
	b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}

func share(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole
}

func pct(x float64) string       { return fmt.Sprintf("%.2f%%", x*100) }
func signedPct(x float64) string { return fmt.Sprintf("%+.2f%%", x*100) }
func money(x float64) string     { return printer.Sprintf("%.0f", x) }
func money2(x float64) string    { return printer.Sprintf("%.2f", x) }

func optPct(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return pct(*p)
}

func optMultiple(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1fx", *p)
}
