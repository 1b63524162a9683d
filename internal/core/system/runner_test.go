package system

import (
	"testing"
	"time"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r recorder) Phase() Phase { return r.phase }

func (r recorder) Update(time.Duration) { *r.log = append(*r.log, r.name) }

func TestRunnerPhaseOrder(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"out", PhaseOutput, &log})
	r.Register(recorder{"actors", PhaseUpdate, &log})
	r.Register(recorder{"cmd", PhaseInput, &log})
	r.Register(recorder{"actors2", PhaseUpdate, &log})
	r.Register(recorder{"events", PhasePreUpdate, &log})

	r.Tick(time.Second)
	want := []string{"cmd", "events", "actors", "actors2", "out"}
	if len(log) != len(want) {
		t.Fatalf("log=%v", log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log=%v want %v", log, want)
		}
	}
}

func TestRunnerTickPhase(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"actors", PhaseUpdate, &log})
	r.Register(recorder{"cmd", PhaseInput, &log})
	r.TickPhase(PhaseInput, 0)
	if len(log) != 1 || log[0] != "cmd" {
		t.Fatalf("log=%v", log)
	}
}
