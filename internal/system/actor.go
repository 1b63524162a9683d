package system

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/yardsim/yard/internal/core/event"
	coresys "github.com/yardsim/yard/internal/core/system"
	"github.com/yardsim/yard/internal/data"
	"github.com/yardsim/yard/internal/geom"
	"github.com/yardsim/yard/internal/path"
	"github.com/yardsim/yard/internal/task"
	"github.com/yardsim/yard/internal/world"
)

// Paths shorter than this are applied without a Transitioning state.
const zeroLength = 1e-9

// ActorSystem runs the per-actor state machine: task pickup, motion along
// transitions and routes, arrival and slot handoff. Actors are processed in
// creation order, so slot claims within a tick never conflict.
// Phase 2 (Update).
type ActorSystem struct {
	world *world.State
	pf    *path.Pathfinder
	log   *zap.Logger
}

func NewActorSystem(ws *world.State, pf *path.Pathfinder, log *zap.Logger) *ActorSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &ActorSystem{world: ws, pf: pf, log: log}
}

func (s *ActorSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ActorSystem) Update(dt time.Duration) {
	step := dt.Seconds()
	for _, a := range s.world.Actors() {
		if a.Exited {
			continue
		}
		switch m := a.Mode.(type) {
		case *world.Parked:
			s.tickParked(a, m)
		case *world.Transitioning:
			s.tickTransition(a, m, step)
		case *world.FollowingRoute:
			s.tickRoute(a, m, step)
		case *world.FreeRoaming:
			s.tickRoam(a, m, step)
		}
	}
}

// ---------- Parked ----------

func (s *ActorSystem) tickParked(a *world.Actor, m *world.Parked) {
	if a.TaskID != "" {
		t := s.world.Tasks.Get(a.TaskID)
		if t == nil || t.Status.Terminal() {
			a.TaskID = ""
			return
		}
		if t.Kind == task.KindWait && s.world.Now >= t.StartedAt+t.Payload.Duration {
			s.finish(a)
		}
		return
	}

	t := s.world.Tasks.NextEligible(a.ID, s.world.Now)
	if t == nil {
		return
	}
	switch t.Kind {
	case task.KindWait:
		if !s.start(a, t) {
			return
		}
		if t.Payload.Duration <= 0 {
			s.finish(a)
		}
	case task.KindFollowRoute:
		idx, err := s.resolve(t)
		if err != nil {
			s.reject(a, t, err)
			return
		}
		if !s.start(a, t) {
			return
		}
		first := s.world.Routes.At(idx).Path.First()
		s.travel(a, m.Position, first, world.Transitioning{
			Target:   world.TargetRouteStart,
			Slot:     world.NoSlot,
			HeldSlot: m.Slot,
			RouteIdx: idx,
		})
	default:
		s.reject(a, t, fmt.Errorf("%w: unknown task kind %q", world.ErrConfiguration, t.Kind))
	}
}

// resolve checks every reference a followRoute task makes before it is
// allowed to run.
func (s *ActorSystem) resolve(t *task.Task) (int, error) {
	p := t.Payload
	idx, ok := s.world.Routes.Index(p.RouteID)
	if !ok {
		return 0, fmt.Errorf("%w: unknown route %q", world.ErrConfiguration, p.RouteID)
	}
	if p.TargetSlotID != "" {
		if _, ok := s.world.Pool.Lookup(p.TargetSlotID); !ok {
			return 0, fmt.Errorf("%w: %w %q", world.ErrConfiguration, world.ErrUnknownSlot, p.TargetSlotID)
		}
		return idx, nil
	}
	if p.TargetZone != s.world.ExitZone && s.world.Pool.Zone(p.TargetZone) == nil {
		return 0, fmt.Errorf("%w: unknown zone %q", world.ErrConfiguration, p.TargetZone)
	}
	return idx, nil
}

func (s *ActorSystem) start(a *world.Actor, t *task.Task) bool {
	if err := s.world.Tasks.Start(t.ID, s.world.Now); err != nil {
		s.log.Warn("task start refused", zap.String("actor", a.ID), zap.String("task", t.ID), zap.Error(err))
		return false
	}
	a.TaskID = t.ID
	return true
}

// reject retires a task that can never run. The actor is left untouched.
func (s *ActorSystem) reject(a *world.Actor, t *task.Task, err error) {
	s.log.Warn("task rejected",
		zap.String("actor", a.ID),
		zap.String("task", t.ID),
		zap.String("kind", string(t.Kind)),
		zap.Error(err))
	if cerr := s.world.Tasks.Complete(t.ID, s.world.Now); cerr != nil {
		s.log.Warn("task reject failed", zap.String("task", t.ID), zap.Error(cerr))
	}
}

func (s *ActorSystem) finish(a *world.Actor) {
	if a.TaskID == "" {
		return
	}
	if err := s.world.Tasks.Complete(a.TaskID, s.world.Now); err != nil {
		s.log.Warn("task complete failed", zap.String("actor", a.ID), zap.String("task", a.TaskID), zap.Error(err))
	}
	a.TaskID = ""
}

// ---------- Transitioning ----------

// travel computes a path and enters Transitioning, or arrives at once when
// the path has no length.
func (s *ActorSystem) travel(a *world.Actor, from, to geom.Point, tr world.Transitioning) {
	tr.Path = geom.NewPolyline(s.pf.FindPath(from, to, s.world.Obstacles()))
	tr.Origin = from
	tr.Destination = to
	if tr.Path.Length() <= zeroLength {
		s.arrive(a, &tr)
		return
	}
	a.Mode = &tr
}

func (s *ActorSystem) tickTransition(a *world.Actor, m *world.Transitioning, dt float64) {
	m.Traveled += a.Speed * dt
	if m.Traveled >= m.Path.Length() {
		m.Traveled = m.Path.Length()
		s.arrive(a, m)
	}
}

func (s *ActorSystem) arrive(a *world.Actor, m *world.Transitioning) {
	switch m.Target {
	case world.TargetRouteStart:
		fr := &world.FollowingRoute{RouteIdx: m.RouteIdx, HeldSlot: m.HeldSlot}
		a.Mode = fr
		if s.world.Routes.At(m.RouteIdx).Path.Length() <= zeroLength {
			s.routeEnd(a, fr)
		}
	case world.TargetSlot:
		sl := s.world.Pool.Slot(m.Slot)
		a.Mode = &world.Parked{Slot: m.Slot, Position: sl.Position, Rotation: sl.Rotation}
		s.finish(a)
	case world.TargetExit:
		_, h := m.Path.At(m.Path.Length())
		a.Mode = &world.Parked{Slot: world.NoSlot, Position: s.world.Exit, Rotation: h}
		a.Exited = true
		s.finish(a)
		event.Emit(s.world.Bus, event.ActorExited{ActorID: a.ID, At: s.world.Now, Tick: s.world.Tick})
	}
}

// ---------- FollowingRoute ----------

func (s *ActorSystem) tickRoute(a *world.Actor, m *world.FollowingRoute, dt float64) {
	if t := s.world.Tasks.Get(a.TaskID); t != nil && t.Status == task.StatusWaitingForSlot {
		s.routeEnd(a, m)
		return
	}
	l := s.world.Routes.At(m.RouteIdx).Path.Length()
	m.Cursor += a.Speed * dt
	if m.Cursor >= l {
		m.Cursor = l
		s.routeEnd(a, m)
	}
}

// routeEnd decides where an actor goes once its route is done: the exit, a
// specific slot, or the nearest free slot of the target zone.
func (s *ActorSystem) routeEnd(a *world.Actor, m *world.FollowingRoute) {
	route := s.world.Routes.At(m.RouteIdx)
	end := route.Path.Last()
	t := s.world.Tasks.Get(a.TaskID)
	if t == nil {
		s.parkAt(a, m, route)
		return
	}
	p := t.Payload

	switch {
	case p.TargetSlotID != "":
		sid, _ := s.world.Pool.Lookup(p.TargetSlotID)
		sl := s.world.Pool.Slot(sid)
		if sl.Occupied && sl.Holder != a.ID {
			if t.Status == task.StatusRunning {
				if err := s.world.Tasks.SetWaiting(t.ID); err == nil {
					s.log.Info("target slot held, waiting",
						zap.String("actor", a.ID),
						zap.String("task", t.ID),
						zap.String("slot", sl.ID),
						zap.String("holder", sl.Holder))
				}
			}
			return
		}
		if t.Status == task.StatusWaitingForSlot {
			_ = s.world.Tasks.Resume(t.ID)
		}
		s.claim(a, m.HeldSlot, sid, end)

	case p.TargetZone == s.world.ExitZone:
		s.world.Pool.Release(m.HeldSlot)
		s.travel(a, end, s.world.Exit, world.Transitioning{
			Target:   world.TargetExit,
			Slot:     world.NoSlot,
			HeldSlot: world.NoSlot,
		})

	default:
		sid, ok := s.world.Pool.FindNearestFreeSlot(p.TargetZone, end, a.Kind)
		if !ok && s.heldIn(m.HeldSlot, p.TargetZone, a.Kind) {
			sid, ok = m.HeldSlot, true
		}
		if !ok {
			s.log.Warn("no free slot, parking at route end",
				zap.String("actor", a.ID),
				zap.String("task", t.ID),
				zap.Error(fmt.Errorf("%w in zone %s", world.ErrResourceExhausted, p.TargetZone)))
			s.parkAt(a, m, route)
			return
		}
		s.claim(a, m.HeldSlot, sid, end)
	}
}

// heldIn reports whether the actor's own slot belongs to zone, so it can go
// back to it when the zone is otherwise full.
func (s *ActorSystem) heldIn(held world.SlotID, zoneID, kind string) bool {
	sl := s.world.Pool.Slot(held)
	z := s.world.Pool.Zone(zoneID)
	if sl == nil || z == nil || !z.Allows(kind) {
		return false
	}
	return s.world.Pool.Zones()[sl.Zone].ID == zoneID
}

// claim releases the previous slot and occupies the new one in one step,
// then heads for it.
func (s *ActorSystem) claim(a *world.Actor, held, sid world.SlotID, from geom.Point) {
	if held != sid {
		s.world.Pool.Release(held)
	}
	if err := s.world.Pool.Occupy(sid, a.ID); err != nil {
		s.log.Warn("slot claim failed", zap.String("actor", a.ID), zap.Error(err))
		s.finish(a)
		a.Mode = &world.Parked{Slot: world.NoSlot, Position: from}
		return
	}
	sl := s.world.Pool.Slot(sid)
	s.travel(a, from, sl.Position, world.Transitioning{
		Target:   world.TargetSlot,
		Slot:     sid,
		HeldSlot: world.NoSlot,
	})
}

// parkAt leaves the actor at the route end holding no slot and completes
// its task.
func (s *ActorSystem) parkAt(a *world.Actor, m *world.FollowingRoute, route *data.Route) {
	s.world.Pool.Release(m.HeldSlot)
	pos, h := route.Path.At(route.Path.Length())
	a.Mode = &world.Parked{Slot: world.NoSlot, Position: pos, Rotation: h}
	s.finish(a)
}

// ---------- FreeRoaming ----------

func (s *ActorSystem) tickRoam(a *world.Actor, m *world.FreeRoaming, dt float64) {
	l := s.world.Routes.At(m.RouteIdx).Path.Length()
	if l <= zeroLength {
		return
	}
	// Unfold the ping-pong onto a loop of length 2l and fold it back.
	u := m.Cursor
	if m.Direction < 0 {
		u = 2*l - m.Cursor
	}
	u = math.Mod(u+a.Speed*dt, 2*l)
	if u < l {
		m.Cursor, m.Direction = u, 1
	} else {
		m.Cursor, m.Direction = 2*l-u, -1
	}
}
