package refine

import (
	"sort"

	"agentic_dcf/pkg/core/valuation"
)

const (
	// DefaultPeerCapBps is the largest stable margin move per comparables step.
	DefaultPeerCapBps = 100

	MinStableMargin = 0.05
	MaxStableMargin = 0.35
)

// Peer is one comparable company. Only StableMargin feeds the transform; the
// multiples are carried for the report.
type Peer struct {
	Ticker       string   `json:"ticker"`
	Name         string   `json:"name,omitempty"`
	StableMargin *float64 `json:"stable_margin,omitempty"`
	EVSales      *float64 `json:"ev_sales,omitempty"`
	EVEBITDA     *float64 `json:"ev_ebitda,omitempty"`
}

// PeerMedianMargin returns the upper median of the peers' stable margins.
func PeerMedianMargin(peers []Peer) (float64, bool) {
	var margins []float64
	for _, p := range peers {
		if p.StableMargin != nil {
			margins = append(margins, *p.StableMargin)
		}
	}
	if len(margins) == 0 {
		return 0, false
	}
	sort.Float64s(margins)
	return margins[len(margins)/2], true
}

// ApplyComparables moves StableMargin toward the peer median by at most capBps basis
// points and clamps it to [MinStableMargin, MaxStableMargin]. The yearly margin path
// is left alone. capBps <= 0 uses DefaultPeerCapBps.
func ApplyComparables(in valuation.Inputs, peers []Peer, capBps float64) valuation.Inputs {
	out := in.Clone()
	med, ok := PeerMedianMargin(peers)
	if !ok {
		return out
	}
	if capBps <= 0 {
		capBps = DefaultPeerCapBps
	}
	limit := capBps / 10000
	delta := clamp(med-out.StableMargin, -limit, limit)
	out.StableMargin = clamp(out.StableMargin+delta, MinStableMargin, MaxStableMargin)
	return out
}
