package task

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTask       = errors.New("unknown task")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrDuplicateTask     = errors.New("duplicate task id")
	ErrActorBusy         = errors.New("actor already has an active task")
	ErrBadTransition     = errors.New("illegal status transition")
)

// StatusFunc observes every status change. prev is empty for a newly created
// task.
type StatusFunc func(t *Task, prev Status)

// Queue is the single ordered task list. It is owned by the tick goroutine;
// nothing here is safe for concurrent use.
type Queue struct {
	tasks   []*Task
	index   map[string]int   // task id → position in tasks
	byActor map[string][]int // actor id → positions, creation order
	active  map[string]int   // actor id → position of its active task

	seq        uint64
	returnZone string
	observers  []StatusFunc
}

// NewQueue creates an empty queue. Tasks targeting returnZone skip the start
// time gate.
func NewQueue(returnZone string) *Queue {
	return &Queue{
		index:      make(map[string]int),
		byActor:    make(map[string][]int),
		active:     make(map[string]int),
		returnZone: returnZone,
	}
}

// OnStatusChange registers an observer called after every status change.
func (q *Queue) OnStatusChange(fn StatusFunc) {
	q.observers = append(q.observers, fn)
}

func (q *Queue) notify(t *Task, prev Status) {
	for _, fn := range q.observers {
		fn(t, prev)
	}
}

// Create appends a pending task. Dependencies must name tasks already in the
// queue, so the dependency graph can never contain a cycle.
func (q *Queue) Create(actorID string, kind Kind, payload Payload, opt Options, now float64) (*Task, error) {
	if actorID == "" {
		return nil, fmt.Errorf("create task: empty actor id")
	}
	if kind == "" {
		return nil, fmt.Errorf("create task for %s: empty kind", actorID)
	}
	seq := q.seq + 1
	id := opt.ID
	if id == "" {
		id = q.nextID(seq)
	}
	if _, dup := q.index[id]; dup {
		return nil, fmt.Errorf("create task %s: %w", id, ErrDuplicateTask)
	}
	for _, dep := range opt.DependsOn {
		if _, ok := q.index[dep]; !ok {
			return nil, fmt.Errorf("create task %s: %w %q", id, ErrUnknownDependency, dep)
		}
	}

	t := &Task{
		ID:        id,
		ActorID:   actorID,
		Kind:      kind,
		Status:    StatusPending,
		Priority:  opt.Priority,
		StartTime: opt.StartTime,
		DependsOn: append([]string(nil), opt.DependsOn...),
		Payload:   payload,
		CreatedAt: now,
		seq:       seq,
	}
	q.seq = seq
	pos := len(q.tasks)
	q.tasks = append(q.tasks, t)
	q.index[id] = pos
	q.byActor[actorID] = append(q.byActor[actorID], pos)
	q.notify(t, "")
	return t, nil
}

// nextID returns the first generated id from seq on that no task uses yet.
func (q *Queue) nextID(seq uint64) string {
	for n := seq; ; n++ {
		id := fmt.Sprintf("task-%d", n)
		if _, taken := q.index[id]; !taken {
			return id
		}
	}
}

// Get returns the task with the given id, or nil.
func (q *Queue) Get(id string) *Task {
	i, ok := q.index[id]
	if !ok {
		return nil
	}
	return q.tasks[i]
}

// Active returns the actor's running or waiting-for-slot task, or nil.
func (q *Queue) Active(actorID string) *Task {
	i, ok := q.active[actorID]
	if !ok {
		return nil
	}
	return q.tasks[i]
}

// NextEligible returns the pending task the actor should run next, or nil.
// A task is eligible when every dependency is completed and its start time has
// passed; tasks bound for the return zone ignore the start time. Highest
// priority wins, then earliest CreatedAt, then creation order.
func (q *Queue) NextEligible(actorID string, now float64) *Task {
	var best *Task
	for _, pos := range q.byActor[actorID] {
		t := q.tasks[pos]
		if t.Status != StatusPending || !q.depsDone(t) {
			continue
		}
		if t.StartTime > now && !q.bypassesGate(t) {
			continue
		}
		if best == nil || before(t, best) {
			best = t
		}
	}
	return best
}

func (q *Queue) bypassesGate(t *Task) bool {
	return q.returnZone != "" && t.Payload.TargetZone == q.returnZone
}

func (q *Queue) depsDone(t *Task) bool {
	for _, dep := range t.DependsOn {
		if d := q.Get(dep); d == nil || d.Status != StatusCompleted {
			return false
		}
	}
	return true
}

func before(a, b *Task) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt < b.CreatedAt
	}
	return a.seq < b.seq
}

// Start moves a pending task to running.
func (q *Queue) Start(id string, now float64) error {
	t := q.Get(id)
	if t == nil {
		return fmt.Errorf("start %s: %w", id, ErrUnknownTask)
	}
	if t.Status != StatusPending {
		return fmt.Errorf("start %s (%s): %w", id, t.Status, ErrBadTransition)
	}
	if cur := q.Active(t.ActorID); cur != nil {
		return fmt.Errorf("start %s: %w (%s)", id, ErrActorBusy, cur.ID)
	}
	q.active[t.ActorID] = q.index[id]
	t.StartedAt = now
	q.set(t, StatusRunning)
	return nil
}

// Complete marks a task completed. Pending tasks may be completed directly,
// which is how unsatisfiable tasks are retired without ever running.
func (q *Queue) Complete(id string, now float64) error {
	t := q.Get(id)
	if t == nil {
		return fmt.Errorf("complete %s: %w", id, ErrUnknownTask)
	}
	if t.Status.Terminal() {
		return fmt.Errorf("complete %s (%s): %w", id, t.Status, ErrBadTransition)
	}
	q.release(t)
	t.EndedAt = now
	q.set(t, StatusCompleted)
	return nil
}

// SetWaiting parks a running task until its target slot frees up.
func (q *Queue) SetWaiting(id string) error {
	return q.flip(id, StatusRunning, StatusWaitingForSlot)
}

// Resume returns a waiting-for-slot task to running.
func (q *Queue) Resume(id string) error {
	return q.flip(id, StatusWaitingForSlot, StatusRunning)
}

// Cancel withdraws a pending task together with every pending task that
// depends on it, directly or transitively. It returns the ids of the
// dependents cancelled along with it.
func (q *Queue) Cancel(id string, now float64) ([]string, error) {
	t := q.Get(id)
	if t == nil {
		return nil, fmt.Errorf("cancel %s: %w", id, ErrUnknownTask)
	}
	if t.Status != StatusPending {
		return nil, fmt.Errorf("cancel %s (%s): %w", id, t.Status, ErrBadTransition)
	}
	t.EndedAt = now
	q.set(t, StatusCancelled)

	// Dependencies always point backwards, so one forward pass finds the
	// whole chain.
	gone := map[string]bool{id: true}
	var cascaded []string
	for _, d := range q.tasks[q.index[id]+1:] {
		if d.Status != StatusPending || !dependsOnAny(d, gone) {
			continue
		}
		d.EndedAt = now
		q.set(d, StatusCancelled)
		gone[d.ID] = true
		cascaded = append(cascaded, d.ID)
	}
	return cascaded, nil
}

func dependsOnAny(t *Task, ids map[string]bool) bool {
	for _, dep := range t.DependsOn {
		if ids[dep] {
			return true
		}
	}
	return false
}

func (q *Queue) flip(id string, from, to Status) error {
	t := q.Get(id)
	if t == nil {
		return fmt.Errorf("%s %s: %w", to, id, ErrUnknownTask)
	}
	if t.Status != from {
		return fmt.Errorf("%s %s (%s): %w", to, id, t.Status, ErrBadTransition)
	}
	q.set(t, to)
	return nil
}

func (q *Queue) release(t *Task) {
	if i, ok := q.active[t.ActorID]; ok && q.tasks[i] == t {
		delete(q.active, t.ActorID)
	}
}

func (q *Queue) set(t *Task, s Status) {
	prev := t.Status
	t.Status = s
	q.notify(t, prev)
}

// List returns a copy of every task in creation order.
func (q *Queue) List() []Task {
	out := make([]Task, len(q.tasks))
	for i, t := range q.tasks {
		out[i] = *t
	}
	return out
}

// Count returns the number of tasks ever created.
func (q *Queue) Count() int {
	return len(q.tasks)
}

// CountByStatus tallies tasks per status.
func (q *Queue) CountByStatus() map[Status]int {
	out := make(map[Status]int, 5)
	for _, t := range q.tasks {
		out[t.Status]++
	}
	return out
}
