package world

import (
	"math"

	"github.com/yardsim/yard/internal/data"
	"github.com/yardsim/yard/internal/geom"
)

// Mode is the actor's current activity. Exactly one of Parked,
// Transitioning, FollowingRoute or FreeRoaming.
type Mode interface {
	Name() string
	isMode()
}

// Target is where a transition ends.
type Target int

const (
	TargetRouteStart Target = iota
	TargetSlot
	TargetExit
)

func (t Target) String() string {
	switch t {
	case TargetRouteStart:
		return "route-start"
	case TargetSlot:
		return "slot"
	case TargetExit:
		return "exit"
	}
	return "unknown"
}

// Parked is idle at a slot or, with Slot == NoSlot, at a free position.
type Parked struct {
	Slot     SlotID
	Position geom.Point
	Rotation float64
}

// Transitioning follows a computed point-to-point path. For TargetSlot, Slot
// is already claimed. For TargetRouteStart, HeldSlot is the slot the actor
// left and RouteIdx the route it is heading for.
type Transitioning struct {
	Path        geom.Polyline
	Origin      geom.Point
	Destination geom.Point
	Target      Target
	Slot        SlotID
	HeldSlot    SlotID
	RouteIdx    int
	Traveled    float64
}

// Progress returns the travelled fraction in [0, 1].
func (m *Transitioning) Progress() float64 {
	l := m.Path.Length()
	if l <= 0 {
		return 1
	}
	return math.Min(m.Traveled/l, 1)
}

// FollowingRoute advances along a route. Cursor is arc length travelled.
type FollowingRoute struct {
	RouteIdx int
	Cursor   float64
	HeldSlot SlotID
}

// FreeRoaming ping-pongs along a route without tasks. Direction is +1 or -1.
type FreeRoaming struct {
	RouteIdx  int
	Cursor    float64
	Direction int
}

func (*Parked) Name() string         { return "parked" }
func (*Transitioning) Name() string  { return "transitioning" }
func (*FollowingRoute) Name() string { return "following-route" }
func (*FreeRoaming) Name() string    { return "free-roaming" }

func (*Parked) isMode()         {}
func (*Transitioning) isMode()  {}
func (*FollowingRoute) isMode() {}
func (*FreeRoaming) isMode()    {}

// Actor is a truck, crane or other yard agent. Created once, never removed;
// Exited actors are frozen.
type Actor struct {
	ID        string
	Kind      string
	Speed     float64 // normalized units per simulated second
	Size      float64
	Behavior  data.Behavior
	RoamRoute string

	Mode   Mode
	Exited bool
	TaskID string // task currently being executed, empty when idle
}

// HeldSlot returns the slot the actor's mode references, or NoSlot.
func (a *Actor) HeldSlot() SlotID {
	switch m := a.Mode.(type) {
	case *Parked:
		return m.Slot
	case *Transitioning:
		if m.Target == TargetSlot {
			return m.Slot
		}
		return m.HeldSlot
	case *FollowingRoute:
		return m.HeldSlot
	}
	return NoSlot
}

// Pose returns the actor's position and heading.
func (a *Actor) Pose(routes *data.RouteTable) (geom.Point, float64) {
	switch m := a.Mode.(type) {
	case *Parked:
		return m.Position, m.Rotation
	case *Transitioning:
		return m.Path.At(m.Traveled)
	case *FollowingRoute:
		return routes.At(m.RouteIdx).Path.At(m.Cursor)
	case *FreeRoaming:
		p, h := routes.At(m.RouteIdx).Path.At(m.Cursor)
		if m.Direction < 0 {
			h = normalizeAngle(h + math.Pi)
		}
		return p, h
	}
	return geom.Point{}, 0
}

func normalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
