package world

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/yardsim/yard/internal/core/event"
	"github.com/yardsim/yard/internal/data"
	"github.com/yardsim/yard/internal/geom"
	"github.com/yardsim/yard/internal/path"
	"github.com/yardsim/yard/internal/task"
)

// Options are the yard-wide constants the state machine needs.
type Options struct {
	Exit       geom.Point // fixed exit coordinate
	ExitZone   string     // target zone name meaning "leave the yard"
	ReturnZone string     // tasks bound here skip the start time gate
	Fallback   Fallback
}

// State owns every mutable part of the simulation: actors, slot occupancy,
// tasks and the runtime obstacle list. Single-goroutine access only (tick
// loop); other goroutines read published Frames.
type State struct {
	Now  float64 // simulated seconds
	Tick uint64

	Routes *data.RouteTable
	Pool   *Pool
	Tasks  *task.Queue
	Bus    *event.Bus

	Exit     geom.Point
	ExitZone string

	actors    []*Actor // creation order, also update order
	index     map[string]int
	obstacles []path.Obstacle
	obsIDs    map[string]bool
	log       *zap.Logger
}

// NewState wires the registries together. Pool and queue changes are
// forwarded to the bus.
func NewState(routes *data.RouteTable, zones *data.ZoneTable, obstacles []path.Obstacle, opt Options, log *zap.Logger) *State {
	if log == nil {
		log = zap.NewNop()
	}
	if routes == nil {
		routes, _ = data.NewRouteTable(nil)
	}
	s := &State{
		Routes:   routes,
		Pool:     NewPool(zones, opt.Fallback, log),
		Tasks:    task.NewQueue(opt.ReturnZone),
		Bus:      event.NewBus(),
		Exit:     opt.Exit,
		ExitZone: opt.ExitZone,
		index:    make(map[string]int),
		obsIDs:   make(map[string]bool),
		log:      log,
	}
	for _, o := range obstacles {
		s.obstacles = append(s.obstacles, o)
		s.obsIDs[o.ID] = true
	}

	s.Pool.OnChange(func(c SlotChange) {
		zone := ""
		if c.Slot.Zone >= 0 && c.Slot.Zone < len(s.Pool.zones) {
			zone = s.Pool.zones[c.Slot.Zone].ID
		}
		event.Emit(s.Bus, event.SlotChanged{
			SlotID:     c.Slot.ID,
			ZoneID:     zone,
			Occupied:   c.Slot.Occupied,
			Holder:     c.Slot.Holder,
			PrevHolder: c.PrevHolder,
			At:         s.Now,
			Tick:       s.Tick,
		})
	})
	s.Tasks.OnStatusChange(func(t *task.Task, prev task.Status) {
		event.Emit(s.Bus, event.TaskStatusChanged{
			TaskID:  t.ID,
			ActorID: t.ActorID,
			Kind:    t.Kind,
			From:    prev,
			To:      t.Status,
			Payload: t.Payload,
			At:      s.Now,
			Tick:    s.Tick,
		})
	})
	return s
}

// Populate creates the roster's actors in order. Roaming actors start at
// the beginning of their route; everyone else goes through
// InitialBulkAssign.
func (s *State) Populate(specs []data.ActorSpec) error {
	var cands []Candidate
	var parked []*Actor
	for _, spec := range specs {
		a, err := s.newActor(spec)
		if err != nil {
			return err
		}
		if s.startRoaming(a) {
			continue
		}
		cands = append(cands, Candidate{ID: a.ID, Kind: a.Kind})
		parked = append(parked, a)
	}
	for i, pl := range s.Pool.InitialBulkAssign(cands) {
		parked[i].Mode = &Parked{Slot: pl.Slot, Position: pl.Position, Rotation: pl.Rotation}
	}
	return nil
}

// AddActor creates one actor between ticks and places it like Populate does.
func (s *State) AddActor(spec data.ActorSpec) (*Actor, error) {
	a, err := s.newActor(spec)
	if err != nil {
		return nil, err
	}
	if !s.startRoaming(a) {
		pl := s.Pool.InitialBulkAssign([]Candidate{{ID: a.ID, Kind: a.Kind}})[0]
		a.Mode = &Parked{Slot: pl.Slot, Position: pl.Position, Rotation: pl.Rotation}
	}
	return a, nil
}

func (s *State) newActor(spec data.ActorSpec) (*Actor, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("add actor: empty id")
	}
	if _, dup := s.index[spec.ID]; dup {
		return nil, fmt.Errorf("add actor %s: %w", spec.ID, ErrDuplicateActor)
	}
	a := &Actor{
		ID:        spec.ID,
		Kind:      spec.Kind,
		Speed:     spec.Speed,
		Size:      spec.Size,
		Behavior:  spec.Behavior,
		RoamRoute: spec.RoamRoute,
	}
	s.index[a.ID] = len(s.actors)
	s.actors = append(s.actors, a)
	return a, nil
}

func (s *State) startRoaming(a *Actor) bool {
	if a.Behavior != data.BehaviorRoam {
		return false
	}
	idx, ok := s.Routes.Index(a.RoamRoute)
	if !ok {
		s.log.Warn("roaming actor has no usable route, parking it instead",
			zap.String("actor", a.ID),
			zap.String("route", a.RoamRoute),
			zap.Error(ErrConfiguration))
		return false
	}
	a.Mode = &FreeRoaming{RouteIdx: idx, Direction: 1}
	return true
}

// Actor returns the actor with the given id, or nil.
func (s *State) Actor(id string) *Actor {
	i, ok := s.index[id]
	if !ok {
		return nil
	}
	return s.actors[i]
}

// Actors returns all actors in creation order. Callers must not modify the
// slice.
func (s *State) Actors() []*Actor {
	return s.actors
}

// ActorCount returns the number of actors ever created.
func (s *State) ActorCount() int {
	return len(s.actors)
}

// Obstacles returns the obstacles the pathfinder avoids.
func (s *State) Obstacles() []path.Obstacle {
	return s.obstacles
}

// AddObstacle appends an already validated obstacle. Paths computed earlier
// are not revisited.
func (s *State) AddObstacle(o path.Obstacle) error {
	if s.obsIDs[o.ID] {
		return fmt.Errorf("add obstacle: duplicate id %q", o.ID)
	}
	s.obsIDs[o.ID] = true
	s.obstacles = append(s.obstacles, o)
	return nil
}

// CreateTask appends a task for a known actor, stamped with the current
// simulated time.
func (s *State) CreateTask(actorID string, kind task.Kind, p task.Payload, opt task.Options) (*task.Task, error) {
	if s.Actor(actorID) == nil {
		return nil, fmt.Errorf("create task: %w %q", ErrUnknownActor, actorID)
	}
	return s.Tasks.Create(actorID, kind, p, opt, s.Now)
}
