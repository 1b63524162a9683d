package task

import (
	"errors"
	"testing"
)

func route(id string) Payload {
	return Payload{RouteID: id, TargetZone: "parking"}
}

func TestNextEligibleFIFOOnEqualPriority(t *testing.T) {
	q := NewQueue("parking")
	late, _ := q.Create("truck-1", KindFollowRoute, route("r2"), Options{}, 5)
	early, _ := q.Create("truck-1", KindFollowRoute, route("r1"), Options{}, 0)

	got := q.NextEligible("truck-1", 10)
	if got == nil || got.ID != early.ID {
		t.Fatalf("expected %s (t=0) first, got %+v (late=%s)", early.ID, got, late.ID)
	}
}

func TestNextEligiblePriorityWins(t *testing.T) {
	q := NewQueue("")
	q.Create("a", KindWait, Payload{}, Options{Priority: 1}, 0)
	hi, _ := q.Create("a", KindWait, Payload{}, Options{Priority: 5}, 3)
	if got := q.NextEligible("a", 3); got.ID != hi.ID {
		t.Fatalf("got %s want %s", got.ID, hi.ID)
	}
}

func TestNextEligibleSequenceBreaksTies(t *testing.T) {
	q := NewQueue("")
	first, _ := q.Create("a", KindWait, Payload{}, Options{}, 0)
	q.Create("a", KindWait, Payload{}, Options{}, 0)
	if got := q.NextEligible("a", 0); got.ID != first.ID {
		t.Fatalf("got %s want %s", got.ID, first.ID)
	}
}

func TestDependencyOrdering(t *testing.T) {
	q := NewQueue("")
	b, _ := q.Create("a", KindWait, Payload{}, Options{Priority: 0}, 0)
	dep, err := q.Create("a", KindWait, Payload{}, Options{Priority: 9, DependsOn: []string{b.ID}}, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if got := q.NextEligible("a", 0); got.ID != b.ID {
		t.Fatalf("dependent task picked before its prerequisite: %s", got.ID)
	}
	if err := q.Start(b.ID, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := q.NextEligible("a", 1); got != nil {
		t.Fatalf("dependency still running, got %s", got.ID)
	}
	if err := q.Complete(b.ID, 2); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := q.NextEligible("a", 2); got == nil || got.ID != dep.ID {
		t.Fatalf("dependent not eligible after completion: %+v", got)
	}
}

func TestDependencyAcrossActors(t *testing.T) {
	q := NewQueue("")
	crane, _ := q.Create("crane-1", KindWait, Payload{}, Options{}, 0)
	q.Create("truck-1", KindWait, Payload{}, Options{DependsOn: []string{crane.ID}}, 0)
	if q.NextEligible("truck-1", 0) != nil {
		t.Fatalf("truck task eligible before crane task completed")
	}
	q.Complete(crane.ID, 0)
	if q.NextEligible("truck-1", 0) == nil {
		t.Fatalf("truck task not eligible after crane task completed")
	}
}

func TestCreateRejectsUnknownDependency(t *testing.T) {
	q := NewQueue("")
	_, err := q.Create("a", KindWait, Payload{}, Options{DependsOn: []string{"nope"}}, 0)
	if !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("err=%v", err)
	}
	if _, err := q.Create("a", KindWait, Payload{}, Options{ID: "x"}, 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := q.Create("a", KindWait, Payload{}, Options{ID: "x"}, 0); !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("duplicate id err=%v", err)
	}
}

func TestStartTimeGate(t *testing.T) {
	q := NewQueue("parking")
	gated, _ := q.Create("a", KindFollowRoute, Payload{RouteID: "r", TargetZone: "quay"}, Options{StartTime: 100}, 0)
	if q.NextEligible("a", 99) != nil {
		t.Fatalf("task eligible before its start time")
	}
	if got := q.NextEligible("a", 100); got == nil || got.ID != gated.ID {
		t.Fatalf("task not eligible at its start time")
	}
}

func TestReturnZoneIgnoresStartTime(t *testing.T) {
	q := NewQueue("parking")
	ret, _ := q.Create("a", KindFollowRoute, route("home"), Options{StartTime: 5000}, 0)
	if got := q.NextEligible("a", 0); got == nil || got.ID != ret.ID {
		t.Fatalf("return-to-parking task should ignore the time gate")
	}
}

func TestSingleActiveTaskPerActor(t *testing.T) {
	q := NewQueue("")
	a, _ := q.Create("a", KindWait, Payload{}, Options{}, 0)
	b, _ := q.Create("a", KindWait, Payload{}, Options{}, 0)
	other, _ := q.Create("b", KindWait, Payload{}, Options{}, 0)

	if err := q.Start(a.ID, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := q.Start(b.ID, 0); !errors.Is(err, ErrActorBusy) {
		t.Fatalf("expected ErrActorBusy, got %v", err)
	}
	if err := q.Start(other.ID, 0); err != nil {
		t.Fatalf("other actor blocked: %v", err)
	}
	if err := q.SetWaiting(a.ID); err != nil {
		t.Fatalf("set waiting: %v", err)
	}
	if err := q.Start(b.ID, 0); !errors.Is(err, ErrActorBusy) {
		t.Fatalf("waiting-for-slot task must still block the actor, got %v", err)
	}
	if err := q.Resume(a.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	q.Complete(a.ID, 1)
	if q.Active("a") != nil {
		t.Fatalf("active task not cleared on completion")
	}
	if err := q.Start(b.ID, 1); err != nil {
		t.Fatalf("start after completion: %v", err)
	}
}

func TestCancel(t *testing.T) {
	q := NewQueue("")
	a, _ := q.Create("a", KindWait, Payload{}, Options{}, 0)
	dep, _ := q.Create("a", KindWait, Payload{}, Options{DependsOn: []string{a.ID}}, 0)
	other, _ := q.Create("b", KindWait, Payload{}, Options{}, 0)
	chained, _ := q.Create("b", KindWait, Payload{}, Options{DependsOn: []string{other.ID, dep.ID}}, 0)

	cascaded, err := q.Cancel(a.ID, 1)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(cascaded) != 2 || cascaded[0] != dep.ID || cascaded[1] != chained.ID {
		t.Fatalf("cascaded=%v", cascaded)
	}
	for _, id := range []string{dep.ID, chained.ID} {
		if tk := q.Get(id); tk.Status != StatusCancelled || tk.EndedAt != 1 {
			t.Fatalf("%s status=%s ended=%v", id, tk.Status, tk.EndedAt)
		}
	}
	if q.Get(other.ID).Status != StatusPending {
		t.Fatalf("unrelated task cancelled")
	}
	if q.NextEligible("a", 1) != nil {
		t.Fatalf("nothing left to run for a")
	}
	if _, err := q.Cancel(a.ID, 1); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("double cancel err=%v", err)
	}
	if err := q.Complete(a.ID, 1); !errors.Is(err, ErrBadTransition) {
		t.Fatalf("complete after cancel err=%v", err)
	}
}

func TestGeneratedIDsSkipExplicitOnes(t *testing.T) {
	q := NewQueue("")
	if _, err := q.Create("a", KindWait, Payload{}, Options{ID: "task-2"}, 0); err != nil {
		t.Fatalf("explicit: %v", err)
	}
	b, err := q.Create("a", KindWait, Payload{}, Options{}, 0)
	if err != nil {
		t.Fatalf("generated: %v", err)
	}
	if b.ID != "task-3" {
		t.Fatalf("generated id=%s", b.ID)
	}
	if _, err := q.Create("a", KindWait, Payload{}, Options{ID: "task-2"}, 0); !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("duplicate err=%v", err)
	}
	c, _ := q.Create("a", KindWait, Payload{}, Options{}, 0)
	if c.ID != "task-4" || c.Seq() != 3 {
		t.Fatalf("failed create consumed a sequence number: id=%s seq=%d", c.ID, c.Seq())
	}
}

func TestStatusObserver(t *testing.T) {
	q := NewQueue("")
	var seen []Status
	q.OnStatusChange(func(tk *Task, prev Status) { seen = append(seen, tk.Status) })
	a, _ := q.Create("a", KindWait, Payload{}, Options{}, 0)
	q.Start(a.ID, 0)
	q.Complete(a.ID, 1)

	want := []Status{StatusPending, StatusRunning, StatusCompleted}
	if len(seen) != len(want) {
		t.Fatalf("seen=%v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen=%v want %v", seen, want)
		}
	}
	if got := q.CountByStatus()[StatusCompleted]; got != 1 {
		t.Fatalf("completed count=%d", got)
	}
	if l := q.List(); len(l) != 1 || l[0].EndedAt != 1 {
		t.Fatalf("list=%+v", l)
	}
}
