package router

import (
	"fmt"
	"strings"
)

// Route is the closed set of refinement steps the router can emit.
type Route int

const (
	// RouteNone means no route has been taken yet. ChooseNextRoute never returns it.
	RouteNone Route = iota
	RouteMarket
	RouteConsensus
	RouteComparables
	RouteSensitivity
	RouteNews
	RouteEnd
)

var routeNames = map[Route]string{
	RouteNone:        "",
	RouteMarket:      "market",
	RouteConsensus:   "consensus",
	RouteComparables: "comparables",
	RouteSensitivity: "sensitivity",
	RouteNews:        "news",
	RouteEnd:         "end",
}

func (r Route) String() string {
	if name, ok := routeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Route(%d)", int(r))
}

// IsTerminal reports whether no transitions leave r.
func (r Route) IsTerminal() bool { return r == RouteEnd }

// ParseRoute maps a route name to its Route. The empty string parses as RouteNone.
func ParseRoute(s string) (Route, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range routeNames {
		if name == s {
			return r, true
		}
	}
	return RouteNone, false
}

func (r Route) MarshalText() ([]byte, error) {
	if _, ok := routeNames[r]; !ok {
		return nil, fmt.Errorf("unknown route %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Route) UnmarshalText(text []byte) error {
	parsed, ok := ParseRoute(string(text))
	if !ok {
		return fmt.Errorf("unknown route %q", string(text))
	}
	*r = parsed
	return nil
}

// describe is the instruction attached to a decision for the step that runs it.
func (r Route) describe() string {
	switch r {
	case RouteMarket:
		return "calibrate discount rates against market bounds"
	case RouteConsensus:
		return "blend near-term consensus estimates into growth and margin"
	case RouteComparables:
		return "nudge stable margin toward the peer median"
	case RouteSensitivity:
		return "compute the growth x margin sensitivity grid"
	case RouteNews:
		return "apply bounded news impacts to drivers"
	}
	return ""
}
