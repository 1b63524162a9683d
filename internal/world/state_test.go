package world

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yardsim/yard/internal/core/event"
	"github.com/yardsim/yard/internal/data"
	"github.com/yardsim/yard/internal/geom"
	"github.com/yardsim/yard/internal/task"
)

func testState(t *testing.T, log *zap.Logger) *State {
	t.Helper()
	routes, err := data.NewRouteTable([]data.RouteEntry{
		{ID: "rail", Waypoints: []geom.Point{{X: 0.2, Y: 0.1}, {X: 0.6, Y: 0.1}}},
	})
	if err != nil {
		t.Fatalf("routes: %v", err)
	}
	return NewState(routes, testZones(t), nil, Options{
		Exit:       geom.Pt(0.98, 0.5),
		ExitZone:   "exit",
		ReturnZone: "parking",
		Fallback:   Fallback{Y: 0.97},
	}, log)
}

func TestPopulate(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := testState(t, zap.New(core))
	err := s.Populate([]data.ActorSpec{
		{ID: "truck-1", Kind: "truck", Speed: 0.08},
		{ID: "crane-1", Kind: "crane", Speed: 0.03, Behavior: data.BehaviorRoam, RoamRoute: "rail"},
		{ID: "crane-2", Kind: "crane", Speed: 0.03, Behavior: data.BehaviorRoam, RoamRoute: "gone"},
		{ID: "truck-2", Kind: "truck", Speed: 0.08},
	})
	if err != nil {
		t.Fatalf("populate: %v", err)
	}

	ids := []string{"truck-1", "crane-1", "crane-2", "truck-2"}
	for i, a := range s.Actors() {
		if a.ID != ids[i] {
			t.Fatalf("actor %d is %s, want %s", i, a.ID, ids[i])
		}
	}
	if m, ok := s.Actor("crane-1").Mode.(*FreeRoaming); !ok || m.Direction != 1 || m.Cursor != 0 {
		t.Fatalf("crane-1 mode=%#v", s.Actor("crane-1").Mode)
	}
	// crane-2's route is missing, so it is parked instead; it takes P2
	// before truck-2.
	if m, ok := s.Actor("crane-2").Mode.(*Parked); !ok || s.Pool.Slot(m.Slot).ID != "P2" {
		t.Fatalf("crane-2 mode=%#v", s.Actor("crane-2").Mode)
	}
	if m := s.Actor("truck-2").Mode.(*Parked); s.Pool.Slot(m.Slot).ID != "Q1" {
		t.Fatalf("truck-2 on %d", m.Slot)
	}
	if logs.FilterMessage("roaming actor has no usable route, parking it instead").Len() != 1 {
		t.Fatalf("missing roam route warning")
	}

	pos, heading := s.Actor("crane-1").Pose(s.Routes)
	if pos != geom.Pt(0.2, 0.1) || heading != 0 {
		t.Fatalf("crane-1 pose=%v %v", pos, heading)
	}

	if err := s.Populate([]data.ActorSpec{{ID: "truck-1", Kind: "truck"}}); !errors.Is(err, ErrDuplicateActor) {
		t.Fatalf("err=%v, want ErrDuplicateActor", err)
	}
}

func TestSlotChangesReachTheBus(t *testing.T) {
	s := testState(t, nil)
	var got []event.SlotChanged
	event.Subscribe(s.Bus, func(e event.SlotChanged) { got = append(got, e) })

	if err := s.Populate([]data.ActorSpec{{ID: "truck-1", Kind: "truck", Speed: 0.08}}); err != nil {
		t.Fatalf("populate: %v", err)
	}
	s.Pool.Release(s.Actor("truck-1").HeldSlot())
	s.Bus.SwapBuffers()
	s.Bus.DispatchAll()

	if len(got) != 2 {
		t.Fatalf("events=%d", len(got))
	}
	if !got[0].Occupied || got[0].Holder != "truck-1" || got[0].ZoneID != "parking" || got[0].SlotID != "P1" {
		t.Fatalf("occupy event=%+v", got[0])
	}
	if got[1].Occupied || got[1].PrevHolder != "truck-1" {
		t.Fatalf("release event=%+v", got[1])
	}
}

func TestCommands(t *testing.T) {
	s := testState(t, nil)
	if err := s.Populate([]data.ActorSpec{{ID: "truck-1", Kind: "truck", Speed: 0.08}}); err != nil {
		t.Fatalf("populate: %v", err)
	}

	create := CreateTask{ActorID: "truck-1", Kind: task.KindWait, Payload: task.Payload{Duration: 5}, Options: task.Options{ID: "w1"}}
	if err := create.Apply(s); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := (CreateTask{ActorID: "ghost", Kind: task.KindWait}).Apply(s); !errors.Is(err, ErrUnknownActor) {
		t.Fatalf("err=%v, want ErrUnknownActor", err)
	}
	if err := (CancelTask{TaskID: "w1"}).Apply(s); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s.Tasks.Get("w1").Status != task.StatusCancelled {
		t.Fatalf("status=%s", s.Tasks.Get("w1").Status)
	}

	box := data.ObstacleEntry{ID: "box", Radius: 0.01, Polygon: []geom.Point{{X: 0.4, Y: 0.4}, {X: 0.5, Y: 0.4}, {X: 0.5, Y: 0.5}}}
	if err := (AddObstacle{Entry: box}).Apply(s); err != nil {
		t.Fatalf("add obstacle: %v", err)
	}
	if err := (AddObstacle{Entry: box}).Apply(s); err == nil {
		t.Fatalf("duplicate obstacle accepted")
	}
	line := data.ObstacleEntry{ID: "line", Polygon: []geom.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}}}
	if err := (AddObstacle{Entry: line}).Apply(s); !errors.Is(err, data.ErrInvalidGeometry) {
		t.Fatalf("err=%v, want ErrInvalidGeometry", err)
	}
	if len(s.Obstacles()) != 1 {
		t.Fatalf("obstacles=%d", len(s.Obstacles()))
	}

	if err := (AddActor{Spec: data.ActorSpec{ID: "truck-9", Kind: "truck"}}).Apply(s); err != nil {
		t.Fatalf("add actor: %v", err)
	}
	a := s.Actor("truck-9")
	if a == nil || a.Speed != data.KindDefaults["truck"].Speed {
		t.Fatalf("defaults not applied: %+v", a)
	}
	if _, ok := a.Mode.(*Parked); !ok || a.HeldSlot() == NoSlot {
		t.Fatalf("added actor not placed: %#v", a.Mode)
	}
}

func TestSnapshotDigest(t *testing.T) {
	build := func() *State {
		s := testState(t, nil)
		err := s.Populate([]data.ActorSpec{
			{ID: "truck-1", Kind: "truck", Speed: 0.08},
			{ID: "crane-1", Kind: "crane", Speed: 0.03, Behavior: data.BehaviorRoam, RoamRoute: "rail"},
		})
		if err != nil {
			t.Fatalf("populate: %v", err)
		}
		return s
	}
	a, b := build(), build()
	fa, fb := a.Snapshot(), b.Snapshot()
	if fa.Digest != fb.Digest {
		t.Fatalf("identical states hash differently")
	}
	if snap := fa.Actor("truck-1"); snap.Mode != "parked" || snap.Slot != "P1" || snap.TransitionProgress != nil {
		t.Fatalf("truck-1 snapshot=%+v", snap)
	}
	if fa.Actor("nobody") != nil {
		t.Fatalf("unknown actor in frame")
	}

	b.Actor("crane-1").Mode.(*FreeRoaming).Cursor = 0.1
	if b.Snapshot().Digest == fa.Digest {
		t.Fatalf("digest ignores actor position")
	}

	a.Actor("truck-1").Mode = &Transitioning{
		Path:   geom.NewPolyline([]geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}}),
		Target: TargetSlot,
		Slot:   NoSlot,
	}
	a.Actor("truck-1").Mode.(*Transitioning).Traveled = 0.25
	snap := a.Snapshot().Actor("truck-1")
	if snap.TransitionProgress == nil || *snap.TransitionProgress != 0.25 {
		t.Fatalf("progress=%v", snap.TransitionProgress)
	}
	if len(fa.DigestHex()) != 64 {
		t.Fatalf("hex digest length %d", len(fa.DigestHex()))
	}
}
