package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yardsim/yard/internal/geom"
)

// RouteEntry is one row of route_list.yaml.
type RouteEntry struct {
	ID        string       `yaml:"id"`
	Name      string       `yaml:"name"`
	Waypoints []geom.Point `yaml:"waypoints"`
}

// Route is a loaded, immutable route with precomputed arc lengths.
type Route struct {
	RouteEntry
	Path geom.Polyline
}

// RouteTable is an indexed registry of routes: contiguous storage plus an id
// index, resolved once at load.
type RouteTable struct {
	routes []Route
	index  map[string]int
}

// LoadRouteTable loads route_list.yaml.
func LoadRouteTable(path string) (*RouteTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route list: %w", err)
	}
	t, err := ParseRouteTable(raw)
	if err != nil {
		return nil, fmt.Errorf("route list %s: %w", path, err)
	}
	return t, nil
}

// ParseRouteTable parses route YAML. Every route needs an id that is unique
// and at least one waypoint.
func ParseRouteTable(raw []byte) (*RouteTable, error) {
	var entries []RouteEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse route list: %w", err)
	}
	return NewRouteTable(entries)
}

// NewRouteTable builds a table from already-decoded entries.
func NewRouteTable(entries []RouteEntry) (*RouteTable, error) {
	t := &RouteTable{
		routes: make([]Route, 0, len(entries)),
		index:  make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("route without id")
		}
		if _, dup := t.index[e.ID]; dup {
			return nil, fmt.Errorf("duplicate route id %q", e.ID)
		}
		if len(e.Waypoints) == 0 {
			return nil, fmt.Errorf("route %q has no waypoints", e.ID)
		}
		t.index[e.ID] = len(t.routes)
		t.routes = append(t.routes, Route{RouteEntry: e, Path: geom.NewPolyline(e.Waypoints)})
	}
	return t, nil
}

// Index resolves a route id to its registry index.
func (t *RouteTable) Index(id string) (int, bool) {
	i, ok := t.index[id]
	return i, ok
}

// Get returns the route with the given id, or nil if none.
func (t *RouteTable) Get(id string) *Route {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	return &t.routes[i]
}

// At returns the route at registry index i.
func (t *RouteTable) At(i int) *Route {
	return &t.routes[i]
}

// Count returns the total number of routes loaded.
func (t *RouteTable) Count() int {
	return len(t.routes)
}

// Entries returns the routes in load order, as written in the source file.
func (t *RouteTable) Entries() []RouteEntry {
	out := make([]RouteEntry, len(t.routes))
	for i := range t.routes {
		out[i] = t.routes[i].RouteEntry
	}
	return out
}

// Encode serializes the table back to YAML, preserving order and ids.
func (t *RouteTable) Encode() ([]byte, error) {
	return yaml.Marshal(t.Entries())
}
