package refine

import (
	"slices"
	"strings"

	"agentic_dcf/pkg/core/valuation"
)

// Driver names accepted in a NewsImpact.
const (
	DriverGrowth = "growth"
	DriverMargin = "margin"
	DriverS2C    = "s2c"
)

const (
	maxFacts   = 10
	maxImpacts = 5
)

// NewsItem is one article or filing headline.
type NewsItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Source      string   `json:"source"`
	PublishedAt string   `json:"published_at,omitempty"`
	Snippet     string   `json:"snippet,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// NewsBundle is the raw news for one ticker.
type NewsBundle struct {
	Ticker string     `json:"ticker"`
	AsOf   string     `json:"asof,omitempty"`
	Items  []NewsItem `json:"items"`
}

// NewsImpact is a proposed delta to one driver over a range of forecast years.
type NewsImpact struct {
	Driver          string   `json:"driver"`
	StartYearOffset int      `json:"start_year_offset"`
	EndYearOffset   int      `json:"end_year_offset"`
	Delta           float64  `json:"delta"`
	Confidence      float64  `json:"confidence"`
	Rationale       string   `json:"rationale,omitempty"`
	FactIDs         []string `json:"fact_ids,omitempty"`
}

// NewsSummary is the tagged facts plus the impacts derived from them.
type NewsSummary struct {
	Facts   []NewsItem   `json:"facts"`
	Impacts []NewsImpact `json:"impacts"`
	Notes   string       `json:"notes,omitempty"`
}

// Caps bounds every impact applied from news.
type Caps struct {
	GrowthBps     float64 `json:"growth_bps" yaml:"growth_bps" validate:"gte=0"`
	MarginBps     float64 `json:"margin_bps" yaml:"margin_bps" validate:"gte=0"`
	S2CAbs        float64 `json:"s2c_abs" yaml:"s2c_abs" validate:"gte=0"`
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence" validate:"gte=0,lte=1"`
}

// DefaultCaps returns 50 bps growth, 30 bps margin and 0.1 sales-to-capital.
func DefaultCaps() Caps {
	return Caps{GrowthBps: 50, MarginBps: 30, S2CAbs: 0.1}
}

var tagKeywords = []struct {
	tag  string
	keys []string
}{
	{"guidance", []string{"guidance", "raises outlook", "updates outlook", "beats", "misses"}},
	{"regulation", []string{"tariff", "sanction", "ban", "export control", "regulation"}},
	{"capacity", []string{"capacity", "fab", "factory", "plant"}},
	{"capex", []string{"capex", "capital expenditure"}},
	{"restructuring", []string{"layoff", "restructuring"}},
	{"legal", []string{"lawsuit", "litigation", "fine"}},
	{"product", []string{"launch", "unveil", "product"}},
}

// TagItem returns the topic tags matched by keyword in the title or snippet.
func TagItem(title, snippet string) []string {
	t, s := strings.ToLower(title), strings.ToLower(snippet)
	var tags []string
	for _, kw := range tagKeywords {
		for _, k := range kw.keys {
			if strings.Contains(t, k) || strings.Contains(s, k) {
				tags = append(tags, kw.tag)
				break
			}
		}
	}
	return tags
}

// SummarizeNews tags every item and maps tags to impacts:
// guidance lifts near-term growth, regulation trims this year's margin, and
// capacity or capex raises sales-to-capital in years 1 to 3.
// At most 10 facts and 5 impacts are returned.
func SummarizeNews(bundle NewsBundle, caps Caps) NewsSummary {
	capG := caps.GrowthBps / 10000
	capM := caps.MarginBps / 10000

	facts := make([]NewsItem, 0, len(bundle.Items))
	var impacts []NewsImpact
	for _, it := range bundle.Items {
		f := it
		f.Tags = TagItem(it.Title, it.Snippet)
		facts = append(facts, f)

		ids := []string{f.ID}
		if slices.Contains(f.Tags, "guidance") {
			impacts = append(impacts, NewsImpact{
				Driver: DriverGrowth, StartYearOffset: 0, EndYearOffset: 1,
				Delta: capG, Confidence: 0.6, Rationale: "Positive guidance", FactIDs: ids,
			})
		}
		if slices.Contains(f.Tags, "regulation") {
			impacts = append(impacts, NewsImpact{
				Driver: DriverMargin, StartYearOffset: 0, EndYearOffset: 0,
				Delta: -capM, Confidence: 0.5, Rationale: "Regulatory/tariff risk", FactIDs: ids,
			})
		}
		if slices.Contains(f.Tags, "capacity") || slices.Contains(f.Tags, "capex") {
			impacts = append(impacts, NewsImpact{
				Driver: DriverS2C, StartYearOffset: 1, EndYearOffset: 3,
				Delta: caps.S2CAbs * 0.2, Confidence: 0.5, Rationale: "Capacity/Capex expands", FactIDs: ids,
			})
		}
	}

	if len(facts) > maxFacts {
		facts = facts[:maxFacts]
	}
	if len(impacts) > maxImpacts {
		impacts = impacts[:maxImpacts]
	}
	return NewsSummary{Facts: facts, Impacts: impacts}
}

// ApplyNews applies each impact, capped by caps, over its year range clipped to the horizon.
// Impacts below MinConfidence and unknown drivers are skipped. Stable growth is never touched.
func ApplyNews(in valuation.Inputs, summary NewsSummary, caps Caps) valuation.Inputs {
	out := in.Clone()
	T := out.Horizon
	if T <= 0 {
		return out
	}
	capG := caps.GrowthBps / 10000
	capM := caps.MarginBps / 10000

	for _, imp := range summary.Impacts {
		if imp.Confidence < caps.MinConfidence {
			continue
		}
		a := max(0, imp.StartYearOffset)
		b := max(a, min(T-1, imp.EndYearOffset))
		if a >= T {
			continue
		}

		var (
			path   []float64
			delta  float64
			bounds Range
		)
		switch imp.Driver {
		case DriverGrowth:
			path, delta, bounds = out.SalesGrowth, clamp(imp.Delta, -capG, capG), Range{-0.99, 0.60}
		case DriverMargin:
			path, delta, bounds = out.OperMargin, clamp(imp.Delta, -capM, capM), Range{0, 0.60}
		case DriverS2C:
			path, delta, bounds = out.SalesToCapital, clamp(imp.Delta, -caps.S2CAbs, caps.S2CAbs), Range{0.10, 10}
		default:
			continue
		}
		for t := a; t <= b && t < len(path); t++ {
			path[t] = bounds.clamp(path[t] + delta)
		}
	}
	return out
}
