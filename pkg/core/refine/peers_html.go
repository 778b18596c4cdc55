package refine

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoPeerTable is returned when no table with a ticker column is found.
var ErrNoPeerTable = errors.New("no peer table found")

// peerColumn maps a normalized header cell to the Peer field it fills.
func peerColumn(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	switch {
	case h == "ticker" || h == "symbol":
		return "ticker"
	case h == "name" || h == "company":
		return "name"
	case strings.Contains(h, "margin"):
		return "margin"
	case strings.Contains(h, "ebitda"):
		return "ev_ebitda"
	case strings.Contains(h, "sales") || strings.Contains(h, "revenue"):
		return "ev_sales"
	}
	return ""
}

// ParsePeerTable reads comparables from the first HTML table whose header row has a
// ticker or symbol column. Margins may be written as "12.5%" or 0.125.
// Rows without a ticker are skipped.
func ParsePeerTable(html string) ([]Peer, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var (
		peers []Peer
		found bool
	)
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr")
		var cols []string
		rows.First().Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cols = append(cols, peerColumn(cell.Text()))
		})
		if !slices.Contains(cols, "ticker") {
			return true
		}
		found = true

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			var p Peer
			row.Find("td, th").Each(func(j int, cell *goquery.Selection) {
				if j >= len(cols) {
					return
				}
				text := strings.TrimSpace(cell.Text())
				switch cols[j] {
				case "ticker":
					p.Ticker = strings.ToUpper(text)
				case "name":
					p.Name = text
				case "margin":
					p.StableMargin = parseRatio(text)
				case "ev_sales":
					p.EVSales = parseMultiple(text)
				case "ev_ebitda":
					p.EVEBITDA = parseMultiple(text)
				}
			})
			if p.Ticker != "" {
				peers = append(peers, p)
			}
		})
		return false
	})

	if !found {
		return nil, ErrNoPeerTable
	}
	return peers, nil
}

// parseRatio accepts "12.5%", "12.5" (read as percent when above 1) or "0.125".
func parseRatio(s string) *float64 {
	pct := strings.HasSuffix(s, "%")
	v, ok := parseNumber(strings.TrimSuffix(s, "%"))
	if !ok {
		return nil
	}
	if pct || v > 1 || v < -1 {
		v /= 100
	}
	return &v
}

// parseMultiple accepts "12.3x" or "12.3".
func parseMultiple(s string) *float64 {
	v, ok := parseNumber(strings.TrimRight(strings.ToLower(s), "x"))
	if !ok {
		return nil
	}
	return &v
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	if s == "" || s == "-" || strings.EqualFold(s, "n/a") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}
