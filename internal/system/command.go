package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/yardsim/yard/internal/core/system"
	"github.com/yardsim/yard/internal/world"
)

// CommandSystem drains externally submitted commands into the world state.
// At most maxPerTick commands are applied per tick; the rest wait for the
// next one. Phase 0 (Input).
type CommandSystem struct {
	world      *world.State
	queue      <-chan world.Command
	maxPerTick int
	log        *zap.Logger
	applied    uint64
	failed     uint64
}

func NewCommandSystem(ws *world.State, queue <-chan world.Command, maxPerTick int, log *zap.Logger) *CommandSystem {
	if maxPerTick <= 0 {
		maxPerTick = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CommandSystem{world: ws, queue: queue, maxPerTick: maxPerTick, log: log}
}

func (s *CommandSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *CommandSystem) Update(_ time.Duration) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case cmd := <-s.queue:
			if err := cmd.Apply(s.world); err != nil {
				s.failed++
				s.log.Warn("command rejected", zap.String("command", commandName(cmd)), zap.Error(err))
				continue
			}
			s.applied++
		default:
			return
		}
	}
}

// Stats returns the number of applied and rejected commands so far.
func (s *CommandSystem) Stats() (applied, failed uint64) {
	return s.applied, s.failed
}

func commandName(cmd world.Command) string {
	switch cmd.(type) {
	case world.CreateTask:
		return "create_task"
	case world.CancelTask:
		return "cancel_task"
	case world.AddObstacle:
		return "add_obstacle"
	case world.AddActor:
		return "add_actor"
	}
	return "unknown"
}
