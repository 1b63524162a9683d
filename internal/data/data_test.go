package data

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yardsim/yard/internal/geom"
)

const routesYAML = `
- id: gate-to-quay
  name: Gate to quay
  waypoints:
    - {x: 0.02, y: 0.50}
    - {x: 0.30, y: 0.50}
    - {x: 0.30, y: 0.20}
- id: quay-to-gate
  name: Quay to gate
  waypoints:
    - {x: 0.30, y: 0.20}
    - {x: 0.60, y: 0.20}
`

const obstaclesYAML = `
- id: warehouse
  radius: 0.02
  polygon:
    - {x: 0.40, y: 0.40}
    - {x: 0.55, y: 0.40}
    - {x: 0.55, y: 0.55}
    - {x: 0.40, y: 0.55}
- id: sliver
  radius: 0.01
  polygon:
    - {x: 0.1, y: 0.1}
    - {x: 0.2, y: 0.2}
`

const zonesYAML = `
- id: parking
  allowed_kinds: [truck]
  slots:
    - {id: P1, x: 0.10, y: 0.90, rotation: 0}
    - {id: P2, x: 0.15, y: 0.90, rotation: 0}
- id: quay
  slots:
    - {id: Q1, x: 0.80, y: 0.10, rotation: 1.57}
`

func TestRouteTableRoundTrip(t *testing.T) {
	tbl, err := ParseRouteTable([]byte(routesYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tbl.Count() != 2 {
		t.Fatalf("count=%d", tbl.Count())
	}
	out, err := tbl.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	again, err := ParseRouteTable(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reflect.DeepEqual(tbl.Entries(), again.Entries()) {
		t.Fatalf("round trip mismatch:\n%v\n%v", tbl.Entries(), again.Entries())
	}
	r := again.Get("gate-to-quay")
	if r == nil || len(r.Waypoints) != 3 || r.Waypoints[2].Y != 0.20 {
		t.Fatalf("route lost waypoint order: %+v", r)
	}
	if idx, ok := again.Index("quay-to-gate"); !ok || idx != 1 {
		t.Fatalf("index=%d ok=%v", idx, ok)
	}
	if got := r.Path.Length(); got < 0.579 || got > 0.581 {
		t.Fatalf("path length=%v", got)
	}
}

func TestRouteTableRejects(t *testing.T) {
	cases := map[string]string{
		"duplicate": "- {id: a, waypoints: [{x: 0, y: 0}]}\n- {id: a, waypoints: [{x: 1, y: 1}]}",
		"empty":     "- {id: a, waypoints: []}",
		"no id":     "- {waypoints: [{x: 0, y: 0}]}",
	}
	for name, src := range cases {
		if _, err := ParseRouteTable([]byte(src)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestObstacleTableExcludesInvalid(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	tbl, err := ParseObstacleTable([]byte(obstaclesYAML), zap.New(core))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tbl.Count() != 2 || len(tbl.Obstacles()) != 1 {
		t.Fatalf("count=%d valid=%d", tbl.Count(), len(tbl.Obstacles()))
	}
	if tbl.Obstacles()[0].ID != "warehouse" {
		t.Fatalf("wrong obstacle kept: %s", tbl.Obstacles()[0].ID)
	}
	if err := tbl.Invalid()["sliver"]; !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("sliver error=%v", err)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected exactly one warning, got %d", logs.Len())
	}
	if a := tbl.Area(); a < 0.0224 || a > 0.0226 {
		t.Fatalf("area=%v", a)
	}
}

func TestBuildObstacleRejectsSelfIntersection(t *testing.T) {
	bowtie := ObstacleEntry{ID: "bowtie", Radius: 0.01, Polygon: []geom.Point{
		{X: 0.1, Y: 0.1}, {X: 0.3, Y: 0.3}, {X: 0.3, Y: 0.1}, {X: 0.1, Y: 0.3},
	}}
	if _, _, err := BuildObstacle(bowtie); !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("bowtie err=%v, want ErrInvalidGeometry", err)
	}

	square := ObstacleEntry{ID: "square", Radius: 0.01, Polygon: []geom.Point{
		{X: 0.1, Y: 0.1}, {X: 0.3, Y: 0.1}, {X: 0.3, Y: 0.3}, {X: 0.1, Y: 0.3},
	}}
	ob, area, err := BuildObstacle(square)
	if err != nil {
		t.Fatalf("square: %v", err)
	}
	if ob.ID != "square" || len(ob.Polygon) != 4 || area < 0.0399 || area > 0.0401 {
		t.Fatalf("square obstacle=%+v area=%v", ob, area)
	}
}

func TestObstacleTableRoundTrip(t *testing.T) {
	tbl, err := ParseObstacleTable([]byte(obstaclesYAML), nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	out, err := tbl.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	again, err := ParseObstacleTable(out, nil)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reflect.DeepEqual(tbl.Entries(), again.Entries()) {
		t.Fatalf("round trip mismatch")
	}
}

func TestZoneTableRoundTrip(t *testing.T) {
	tbl, err := ParseZoneTable([]byte(zonesYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tbl.Count() != 2 || tbl.SlotCount() != 3 {
		t.Fatalf("zones=%d slots=%d", tbl.Count(), tbl.SlotCount())
	}
	out, err := tbl.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	again, err := ParseZoneTable(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reflect.DeepEqual(tbl.Zones(), again.Zones()) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", tbl.Zones(), again.Zones())
	}
	p := again.Get("parking")
	if !p.Allows("truck") || p.Allows("crane") {
		t.Fatalf("parking allow-list wrong")
	}
	if !again.Get("quay").Allows("crane") {
		t.Fatalf("zone without allow-list must accept any kind")
	}
}

func TestZoneTableRejectsSharedSlotID(t *testing.T) {
	src := `
- id: a
  slots: [{id: S1, x: 0, y: 0}]
- id: b
  slots: [{id: S1, x: 1, y: 1}]
`
	if _, err := ParseZoneTable([]byte(src)); err == nil {
		t.Fatalf("expected duplicate slot error")
	}
}

func TestRosterExpand(t *testing.T) {
	r, err := ParseRoster([]byte(`
- {kind: truck, count: 2}
- {kind: crane, count: 1, roam_route: rail}
- {kind: distribution, ids: [D-7, D-9]}
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	specs, err := r.Expand()
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	var ids []string
	for _, s := range specs {
		ids = append(ids, s.ID)
	}
	want := []string{"truck-1", "truck-2", "crane-1", "D-7", "D-9"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids=%v want %v", ids, want)
	}
	if specs[0].Speed != KindDefaults["truck"].Speed || specs[2].Behavior != BehaviorRoam {
		t.Fatalf("defaults not applied: %+v", specs)
	}
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}
	if _, err := LoadRouteTable(write("routes.yaml", routesYAML)); err != nil {
		t.Fatalf("routes: %v", err)
	}
	if _, err := LoadObstacleTable(write("obstacles.yaml", obstaclesYAML), zap.NewNop()); err != nil {
		t.Fatalf("obstacles: %v", err)
	}
	if _, err := LoadZoneTable(write("zones.yaml", zonesYAML)); err != nil {
		t.Fatalf("zones: %v", err)
	}
	if _, err := LoadZoneTable(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("missing file should fail")
	}
}
