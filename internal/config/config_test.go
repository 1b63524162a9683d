package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "yard.toml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
[sim]
tick_rate = "20ms"
speed = 120.0
loop = true

[yard]
return_zone = "depot"

[database]
enabled = true
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sim.TickRate != 20*time.Millisecond || cfg.Sim.Speed != 120 || !cfg.Sim.Loop {
		t.Fatalf("sim=%+v", cfg.Sim)
	}
	if cfg.Yard.ReturnZone != "depot" || cfg.Yard.ExitZone != "exit" {
		t.Fatalf("yard=%+v", cfg.Yard)
	}
	if cfg.Pathfinding.MaxIterations != 5000 || cfg.Pathfinding.Step != 0.03 {
		t.Fatalf("pathfinding defaults lost: %+v", cfg.Pathfinding)
	}
	if cfg.Sim.StartTime == 0 {
		t.Fatalf("start time not stamped")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	p := writeConfig(t, `
[sim]
speed = -1.0

[pathfinding]
step = 0.0
`)
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"sim.speed", "pathfinding.step"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestDefaultsAreValid(t *testing.T) {
	if err := defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error")
	}
}
