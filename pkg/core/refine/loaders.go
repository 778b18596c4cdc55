package refine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agentic_dcf/pkg/core/utils"
)

// Sources is the external data available to the refinement loop.
// A nil field disables the matching route.
type Sources struct {
	Consensus *Consensus   `json:"consensus,omitempty"`
	Peers     []Peer       `json:"peers,omitempty"`
	News      *NewsSummary `json:"news,omitempty"`
}

func (s Sources) HaveConsensus() bool   { return !s.Consensus.Empty() }
func (s Sources) HaveComparables() bool { return len(s.Peers) > 0 }
func (s Sources) HaveNews() bool        { return s.News != nil && len(s.News.Impacts) > 0 }

// LoadConsensus reads a consensus file. JSON and Hjson are accepted.
func LoadConsensus(path string) (*Consensus, error) {
	var c Consensus
	if err := loadFile(path, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadPeers reads a peer list. An .html or .htm file is parsed as a table; anything
// else is decoded as a JSON or Hjson array, or an object with a "peers" key.
func LoadPeers(path string) ([]Peer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read peers %s: %w", path, err)
		}
		peers, err := ParsePeerTable(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse peers %s: %w", path, err)
		}
		return peers, nil
	}

	var peers []Peer
	if err := loadFile(path, &peers); err == nil {
		return peers, nil
	}
	var wrapped struct {
		Peers []Peer `json:"peers"`
	}
	if err := loadFile(path, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Peers, nil
}

// LoadNews reads either a NewsSummary (with impacts) or a raw NewsBundle, which is
// summarized with caps.
func LoadNews(path string, caps Caps) (*NewsSummary, error) {
	var probe struct {
		Items   []NewsItem   `json:"items"`
		Facts   []NewsItem   `json:"facts"`
		Impacts []NewsImpact `json:"impacts"`
		Notes   string       `json:"notes"`
		Ticker  string       `json:"ticker"`
		AsOf    string       `json:"asof"`
	}
	if err := loadFile(path, &probe); err != nil {
		return nil, err
	}
	if len(probe.Impacts) > 0 || len(probe.Facts) > 0 {
		return &NewsSummary{Facts: probe.Facts, Impacts: probe.Impacts, Notes: probe.Notes}, nil
	}
	s := SummarizeNews(NewsBundle{Ticker: probe.Ticker, AsOf: probe.AsOf, Items: probe.Items}, caps)
	return &s, nil
}

func loadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := utils.ParseHJSON(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
