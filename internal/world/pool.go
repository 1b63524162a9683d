package world

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/yardsim/yard/internal/data"
	"github.com/yardsim/yard/internal/geom"
)

// SlotID is an arena index into the pool's slot storage.
type SlotID int

// NoSlot marks "holds nothing".
const NoSlot SlotID = -1

// Slot is one parking/loading position. Occupied is true iff Holder is set.
type Slot struct {
	ID       string
	Zone     int // zone arena index
	Position geom.Point
	Rotation float64
	Occupied bool
	Holder   string
}

// Zone is an ordered group of slots with an optional kind allow-list.
type Zone struct {
	ID           string
	AllowedKinds []string
	Slots        []SlotID
}

// Allows reports whether actors of kind may use the zone.
func (z *Zone) Allows(kind string) bool {
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

// SlotChange is reported after every occupy or release.
type SlotChange struct {
	Slot       *Slot
	PrevHolder string
}

// Placement is where InitialBulkAssign put an actor.
type Placement struct {
	ActorID  string
	Slot     SlotID // NoSlot for a synthetic fallback position
	Position geom.Point
	Rotation float64
}

// Candidate is an actor waiting for its initial placement.
type Candidate struct {
	ID   string
	Kind string
}

// Fallback spreads actors that found no slot along a horizontal line.
type Fallback struct {
	Y       float64
	Spacing float64
}

// Pool owns all slot occupancy. It is the only place a slot's Occupied flag
// changes. Tick goroutine only.
type Pool struct {
	slots     []Slot
	slotIndex map[string]SlotID
	zones     []Zone
	zoneIndex map[string]int

	fallback  Fallback
	fallbacks int
	observers []func(SlotChange)
	log       *zap.Logger
}

// NewPool resolves the zone table into arena storage.
func NewPool(zt *data.ZoneTable, fb Fallback, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	if fb.Spacing <= 0 {
		fb.Spacing = 0.05
	}
	p := &Pool{
		slotIndex: make(map[string]SlotID),
		zoneIndex: make(map[string]int),
		fallback:  fb,
		log:       log,
	}
	if zt == nil {
		return p
	}
	for zi, ze := range zt.Zones() {
		z := Zone{ID: ze.ID, AllowedKinds: ze.AllowedKinds}
		for _, se := range ze.Slots {
			id := SlotID(len(p.slots))
			p.slots = append(p.slots, Slot{
				ID:       se.ID,
				Zone:     zi,
				Position: geom.Pt(se.X, se.Y),
				Rotation: se.Rotation,
			})
			p.slotIndex[se.ID] = id
			z.Slots = append(z.Slots, id)
		}
		p.zoneIndex[ze.ID] = len(p.zones)
		p.zones = append(p.zones, z)
	}
	return p
}

// OnChange registers an observer for occupancy changes.
func (p *Pool) OnChange(fn func(SlotChange)) {
	p.observers = append(p.observers, fn)
}

// Lookup resolves a slot id.
func (p *Pool) Lookup(id string) (SlotID, bool) {
	s, ok := p.slotIndex[id]
	return s, ok
}

// Slot returns the slot at the arena index, or nil when out of range.
func (p *Pool) Slot(id SlotID) *Slot {
	if id < 0 || int(id) >= len(p.slots) {
		return nil
	}
	return &p.slots[id]
}

// Zone returns the zone with the given id, or nil.
func (p *Pool) Zone(id string) *Zone {
	i, ok := p.zoneIndex[id]
	if !ok {
		return nil
	}
	return &p.zones[i]
}

// Zones returns the zones in table order.
func (p *Pool) Zones() []Zone {
	return p.zones
}

// SlotCount returns the number of slots across all zones.
func (p *Pool) SlotCount() int {
	return len(p.slots)
}

// FindNearestFreeSlot returns the unoccupied slot in zone closest to ref by
// squared distance. A zone that does not allow kind yields nothing. Ties go to
// the earlier slot.
func (p *Pool) FindNearestFreeSlot(zoneID string, ref geom.Point, kind string) (SlotID, bool) {
	z := p.Zone(zoneID)
	if z == nil || !z.Allows(kind) {
		return NoSlot, false
	}
	best, bestD := NoSlot, math.Inf(1)
	for _, id := range z.Slots {
		s := &p.slots[id]
		if s.Occupied {
			continue
		}
		if d := s.Position.DistSq(ref); d < bestD {
			best, bestD = id, d
		}
	}
	return best, best != NoSlot
}

// Occupy marks the slot as held by actorID. Occupying a slot the actor
// already holds is a no-op.
func (p *Pool) Occupy(id SlotID, actorID string) error {
	s := p.Slot(id)
	if s == nil {
		return fmt.Errorf("occupy %d: %w", id, ErrUnknownSlot)
	}
	if s.Occupied {
		if s.Holder == actorID {
			return nil
		}
		return fmt.Errorf("occupy %s for %s: %w by %s", s.ID, actorID, ErrSlotOccupied, s.Holder)
	}
	s.Occupied = true
	s.Holder = actorID
	p.changed(s, "")
	return nil
}

// Release frees the slot. Releasing NoSlot or a free slot does nothing.
func (p *Pool) Release(id SlotID) {
	s := p.Slot(id)
	if s == nil || !s.Occupied {
		return
	}
	prev := s.Holder
	s.Occupied = false
	s.Holder = ""
	p.changed(s, prev)
}

func (p *Pool) changed(s *Slot, prev string) {
	for _, fn := range p.observers {
		fn(SlotChange{Slot: s, PrevHolder: prev})
	}
}

// OccupiedCount returns how many slots of zone are held.
func (p *Pool) OccupiedCount(zoneID string) int {
	z := p.Zone(zoneID)
	if z == nil {
		return 0
	}
	n := 0
	for _, id := range z.Slots {
		if p.slots[id].Occupied {
			n++
		}
	}
	return n
}

// InitialBulkAssign gives each candidate, in order, the first free slot of
// the first zone (table order) that allows its kind. Candidates left over get
// a synthetic position on the fallback line and a warning.
func (p *Pool) InitialBulkAssign(cands []Candidate) []Placement {
	out := make([]Placement, 0, len(cands))
	for _, c := range cands {
		out = append(out, p.place(c))
	}
	return out
}

func (p *Pool) place(c Candidate) Placement {
	for zi := range p.zones {
		z := &p.zones[zi]
		if !z.Allows(c.Kind) {
			continue
		}
		for _, id := range z.Slots {
			if p.slots[id].Occupied {
				continue
			}
			// Free by the check above; cannot fail.
			_ = p.Occupy(id, c.ID)
			s := &p.slots[id]
			return Placement{ActorID: c.ID, Slot: id, Position: s.Position, Rotation: s.Rotation}
		}
	}
	pos := p.nextFallback()
	p.log.Warn("no free slot at startup, using fallback position",
		zap.String("actor", c.ID),
		zap.String("kind", c.Kind),
		zap.Float64("x", pos.X),
		zap.Float64("y", pos.Y))
	return Placement{ActorID: c.ID, Slot: NoSlot, Position: pos}
}

func (p *Pool) nextFallback() geom.Point {
	p.fallbacks++
	x := math.Mod(p.fallback.Spacing*float64(p.fallbacks), 1)
	return geom.Pt(x, p.fallback.Y)
}
