package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Behavior selects how an actor kind spends its time.
type Behavior string

const (
	BehaviorScheduled Behavior = "scheduled" // driven by the task queue
	BehaviorRoam      Behavior = "roam"      // ping-pongs along RoamRoute, ignores tasks
)

// KindDefaults are the per-kind motion parameters used when the roster leaves
// them unset.
var KindDefaults = map[string]KindEntry{
	"truck":        {Kind: "truck", Speed: 0.08, Size: 0.02, Behavior: BehaviorScheduled},
	"distribution": {Kind: "distribution", Speed: 0.07, Size: 0.018, Behavior: BehaviorScheduled},
	"crane":        {Kind: "crane", Speed: 0.03, Size: 0.04, Behavior: BehaviorRoam},
}

// KindEntry is one row of roster.yaml: a kind and how many actors to create.
// IDs, when set, are used verbatim instead of synthesized "<kind>-<n>" ids.
type KindEntry struct {
	Kind      string   `yaml:"kind"`
	Count     int      `yaml:"count"`
	IDs       []string `yaml:"ids,omitempty"`
	Speed     float64  `yaml:"speed,omitempty"`
	Size      float64  `yaml:"size,omitempty"`
	Behavior  Behavior `yaml:"behavior,omitempty"`
	RoamRoute string   `yaml:"roam_route,omitempty"`
}

// ActorSpec is a concrete actor to create at startup.
type ActorSpec struct {
	ID        string
	Kind      string
	Speed     float64
	Size      float64
	Behavior  Behavior
	RoamRoute string
}

// Roster is the actor roster in file order.
type Roster struct {
	kinds []KindEntry
}

// LoadRoster loads roster.yaml.
func LoadRoster(path string) (*Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	r, err := ParseRoster(raw)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return r, nil
}

// ParseRoster parses roster YAML.
func ParseRoster(raw []byte) (*Roster, error) {
	var kinds []KindEntry
	if err := yaml.Unmarshal(raw, &kinds); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return NewRoster(kinds)
}

// NewRoster validates kind entries.
func NewRoster(kinds []KindEntry) (*Roster, error) {
	for _, k := range kinds {
		if k.Kind == "" {
			return nil, fmt.Errorf("roster entry without kind")
		}
		if k.Count < 0 {
			return nil, fmt.Errorf("kind %q: negative count %d", k.Kind, k.Count)
		}
		if len(k.IDs) > 0 && k.Count != 0 && len(k.IDs) != k.Count {
			return nil, fmt.Errorf("kind %q: %d ids for count %d", k.Kind, len(k.IDs), k.Count)
		}
		if k.Behavior != "" && k.Behavior != BehaviorScheduled && k.Behavior != BehaviorRoam {
			return nil, fmt.Errorf("kind %q: unknown behavior %q", k.Kind, k.Behavior)
		}
	}
	return &Roster{kinds: kinds}, nil
}

// Kinds returns the raw roster rows.
func (r *Roster) Kinds() []KindEntry {
	return r.kinds
}

// WithDefaults fills unset motion parameters from KindDefaults.
func (a ActorSpec) WithDefaults() ActorSpec {
	def, ok := KindDefaults[a.Kind]
	if !ok {
		def = KindEntry{Speed: 0.05, Size: 0.02, Behavior: BehaviorScheduled}
	}
	if a.Speed <= 0 {
		a.Speed = def.Speed
	}
	if a.Size <= 0 {
		a.Size = def.Size
	}
	if a.Behavior == "" {
		a.Behavior = def.Behavior
	}
	return a
}

// Expand produces the concrete actors in roster order, filling unset motion
// parameters from KindDefaults. Duplicate ids are rejected.
func (r *Roster) Expand() ([]ActorSpec, error) {
	var out []ActorSpec
	seen := make(map[string]bool)
	for _, k := range r.kinds {
		n := k.Count
		if len(k.IDs) > 0 {
			n = len(k.IDs)
		}
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("%s-%d", k.Kind, i+1)
			if len(k.IDs) > 0 {
				id = k.IDs[i]
			}
			if seen[id] {
				return nil, fmt.Errorf("duplicate actor id %q", id)
			}
			seen[id] = true
			out = append(out, ActorSpec{
				ID:        id,
				Kind:      k.Kind,
				Speed:     k.Speed,
				Size:      k.Size,
				Behavior:  k.Behavior,
				RoamRoute: k.RoamRoute,
			}.WithDefaults())
		}
	}
	return out, nil
}

// Encode serializes the roster back to YAML.
func (r *Roster) Encode() ([]byte, error) {
	return yaml.Marshal(r.kinds)
}
