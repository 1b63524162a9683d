package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain queued commands
	PhasePreUpdate               // 1: process last tick's events
	PhaseUpdate                  // 2: actor state machine
	PhasePostUpdate              // 3: derived state
	PhaseOutput                  // 4: build + publish the frame
	PhasePersist                 // 5: journal flush
	PhaseCleanup                 // 6: end-of-tick housekeeping
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post-update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every tick system implements. dt is simulated
// time, already scaled by the speed multiplier.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
