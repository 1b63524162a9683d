package event

import "github.com/yardsim/yard/internal/task"

// Events emitted during tick N are delivered at the start of tick N+1.

// TaskStatusChanged is emitted on every task status change, including
// creation (From is empty).
type TaskStatusChanged struct {
	TaskID  string
	ActorID string
	Kind    task.Kind
	From    task.Status
	To      task.Status
	Payload task.Payload
	At      float64 // simulated seconds
	Tick    uint64
}

// SlotChanged is emitted when a slot is occupied or released.
type SlotChanged struct {
	SlotID     string
	ZoneID     string
	Occupied   bool
	Holder     string
	PrevHolder string
	At         float64
	Tick       uint64
}

// ActorExited is emitted once when an actor reaches the exit point.
type ActorExited struct {
	ActorID string
	At      float64
	Tick    uint64
}
