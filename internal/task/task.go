// Package task holds the yard task list and the scheduler that picks each
// actor's next eligible task.
package task

// Kind selects what an actor does with a task.
type Kind string

const (
	KindFollowRoute Kind = "followRoute"
	KindWait        Kind = "wait"
)

// Known reports whether the state machine knows how to execute the kind.
func (k Kind) Known() bool {
	return k == KindFollowRoute || k == KindWait
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending        Status = "pending"
	StatusRunning        Status = "running"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusWaitingForSlot Status = "waiting-for-slot"
)

// Active reports whether a task in this status occupies its actor.
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusWaitingForSlot
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Payload carries the destination of a task. Extra holds fields the engine
// does not interpret; they are stored and reported unchanged.
type Payload struct {
	RouteID      string         `yaml:"route_id,omitempty"`
	TargetZone   string         `yaml:"target_zone,omitempty"`
	TargetSlotID string         `yaml:"target_slot_id,omitempty"`
	Duration     float64        `yaml:"duration,omitempty"` // seconds, wait tasks only
	Extra        map[string]any `yaml:"extra,omitempty"`
}

// Task is one unit of work bound to a single actor. Tasks are never removed
// from the queue, only moved through statuses.
type Task struct {
	ID        string
	ActorID   string
	Kind      Kind
	Status    Status
	Priority  int      // higher runs first
	StartTime float64  // earliest start in simulated seconds; 0 means no gate
	DependsOn []string // task ids that must be completed first
	Payload   Payload
	CreatedAt float64
	StartedAt float64
	EndedAt   float64

	seq uint64
}

// Seq returns the creation sequence number, which breaks CreatedAt ties.
func (t *Task) Seq() uint64 {
	return t.seq
}

// Options are the optional scheduling parameters of Create.
type Options struct {
	ID        string // empty: "task-<n>"
	Priority  int
	StartTime float64
	DependsOn []string
}
