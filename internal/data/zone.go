package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SlotEntry is a single parking/loading position inside a zone.
type SlotEntry struct {
	ID       string  `yaml:"id"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Rotation float64 `yaml:"rotation"`
}

// ZoneEntry is one row of zone_list.yaml. AllowedKinds empty means any kind.
type ZoneEntry struct {
	ID           string      `yaml:"id"`
	AllowedKinds []string    `yaml:"allowed_kinds,omitempty"`
	Slots        []SlotEntry `yaml:"slots"`
}

// Allows reports whether actors of the given kind may use the zone.
func (z *ZoneEntry) Allows(kind string) bool {
	if len(z.AllowedKinds) == 0 {
		return true
	}
	for _, k := range z.AllowedKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ZoneTable holds the zone/slot layout in file order.
type ZoneTable struct {
	zones []ZoneEntry
	index map[string]int
	slots int
}

// LoadZoneTable loads zone_list.yaml.
func LoadZoneTable(path string) (*ZoneTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zone list: %w", err)
	}
	t, err := ParseZoneTable(raw)
	if err != nil {
		return nil, fmt.Errorf("zone list %s: %w", path, err)
	}
	return t, nil
}

// ParseZoneTable parses zone YAML. Zone ids and slot ids must be unique; slot
// ids are unique across all zones, not just within one.
func ParseZoneTable(raw []byte) (*ZoneTable, error) {
	var entries []ZoneEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse zone list: %w", err)
	}
	return NewZoneTable(entries)
}

// NewZoneTable builds a table from decoded entries.
func NewZoneTable(entries []ZoneEntry) (*ZoneTable, error) {
	t := &ZoneTable{
		zones: entries,
		index: make(map[string]int, len(entries)),
	}
	slotSeen := make(map[string]string)
	for i, z := range entries {
		if z.ID == "" {
			return nil, fmt.Errorf("zone without id")
		}
		if _, dup := t.index[z.ID]; dup {
			return nil, fmt.Errorf("duplicate zone id %q", z.ID)
		}
		t.index[z.ID] = i
		for _, s := range z.Slots {
			if s.ID == "" {
				return nil, fmt.Errorf("zone %q: slot without id", z.ID)
			}
			if other, dup := slotSeen[s.ID]; dup {
				return nil, fmt.Errorf("slot id %q used in zones %q and %q", s.ID, other, z.ID)
			}
			slotSeen[s.ID] = z.ID
		}
		t.slots += len(z.Slots)
	}
	return t, nil
}

// Get returns the zone with the given id, or nil if none.
func (t *ZoneTable) Get(id string) *ZoneEntry {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	return &t.zones[i]
}

// Zones returns all zones in file order.
func (t *ZoneTable) Zones() []ZoneEntry {
	return t.zones
}

// Count returns the number of zones.
func (t *ZoneTable) Count() int {
	return len(t.zones)
}

// SlotCount returns the number of slots across all zones.
func (t *ZoneTable) SlotCount() int {
	return t.slots
}

// Encode serializes the table back to YAML.
func (t *ZoneTable) Encode() ([]byte, error) {
	return yaml.Marshal(t.zones)
}
