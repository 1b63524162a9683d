package data

import (
	"errors"
	"fmt"
	"os"

	sf "github.com/peterstace/simplefeatures/geom"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/yardsim/yard/internal/geom"
	"github.com/yardsim/yard/internal/path"
)

// ErrInvalidGeometry marks an obstacle excluded from collision checks.
var ErrInvalidGeometry = errors.New("invalid obstacle geometry")

// ObstacleEntry is one row of obstacle_list.yaml.
type ObstacleEntry struct {
	ID      string       `yaml:"id"`
	Radius  float64      `yaml:"radius"`
	Polygon []geom.Point `yaml:"polygon"`
}

// ObstacleTable keeps every entry for round-tripping but exposes only the
// valid ones to the pathfinder.
type ObstacleTable struct {
	entries []ObstacleEntry
	valid   []path.Obstacle
	invalid map[string]error
	area    float64
}

// LoadObstacleTable loads obstacle_list.yaml. Invalid polygons are logged once
// here and left out of Obstacles().
func LoadObstacleTable(filePath string, log *zap.Logger) (*ObstacleTable, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read obstacle list: %w", err)
	}
	t, err := ParseObstacleTable(raw, log)
	if err != nil {
		return nil, fmt.Errorf("obstacle list %s: %w", filePath, err)
	}
	return t, nil
}

// ParseObstacleTable parses obstacle YAML.
func ParseObstacleTable(raw []byte, log *zap.Logger) (*ObstacleTable, error) {
	var entries []ObstacleEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse obstacle list: %w", err)
	}
	return NewObstacleTable(entries, log)
}

// NewObstacleTable validates entries and builds the table.
func NewObstacleTable(entries []ObstacleEntry, log *zap.Logger) (*ObstacleTable, error) {
	if log == nil {
		log = zap.NewNop()
	}
	t := &ObstacleTable{
		entries: entries,
		valid:   make([]path.Obstacle, 0, len(entries)),
		invalid: make(map[string]error),
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("obstacle without id")
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate obstacle id %q", e.ID)
		}
		seen[e.ID] = true

		ob, area, err := BuildObstacle(e)
		if err != nil {
			t.invalid[e.ID] = err
			log.Warn("obstacle excluded: invalid geometry",
				zap.String("obstacle", e.ID),
				zap.Int("vertices", len(e.Polygon)),
				zap.Error(err))
			continue
		}
		t.valid = append(t.valid, ob)
		t.area += area
	}
	return t, nil
}

// BuildObstacle validates a single entry and converts it for the pathfinder,
// returning the polygon area as well.
func BuildObstacle(e ObstacleEntry) (path.Obstacle, float64, error) {
	if len(e.Polygon) < 3 {
		return path.Obstacle{}, 0, fmt.Errorf("%w: %d vertices", ErrInvalidGeometry, len(e.Polygon))
	}
	if e.Radius < 0 {
		return path.Obstacle{}, 0, fmt.Errorf("%w: negative radius %v", ErrInvalidGeometry, e.Radius)
	}

	// Closed ring for the validity check.
	coords := make([]float64, 0, 2*(len(e.Polygon)+1))
	for _, p := range e.Polygon {
		coords = append(coords, p.X, p.Y)
	}
	coords = append(coords, e.Polygon[0].X, e.Polygon[0].Y)
	ring, err := sf.NewLineString(sf.NewSequence(coords, sf.DimXY))
	if err != nil {
		return path.Obstacle{}, 0, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	poly, err := sf.NewPolygon([]sf.LineString{ring})
	if err != nil {
		return path.Obstacle{}, 0, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	return path.Obstacle{
		ID:      e.ID,
		Polygon: append(geom.Polygon(nil), e.Polygon...),
		Radius:  e.Radius,
	}, poly.Area(), nil
}

// Obstacles returns the valid obstacles in load order.
func (t *ObstacleTable) Obstacles() []path.Obstacle {
	return t.valid
}

// Invalid returns the ids of excluded obstacles with their reasons.
func (t *ObstacleTable) Invalid() map[string]error {
	return t.invalid
}

// Count returns the number of entries, valid or not.
func (t *ObstacleTable) Count() int {
	return len(t.entries)
}

// Area returns the summed polygon area of the valid obstacles.
func (t *ObstacleTable) Area() float64 {
	return t.area
}

// Entries returns every entry in load order.
func (t *ObstacleTable) Entries() []ObstacleEntry {
	return t.entries
}

// Encode serializes the table back to YAML, invalid entries included.
func (t *ObstacleTable) Encode() ([]byte, error) {
	return yaml.Marshal(t.entries)
}
