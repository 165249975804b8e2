package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verhoeven/escape-controller/internal/game"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.HTTP.Addr)
	}
	if cfg.Audio.Broker != "tcp://localhost:1883" {
		t.Errorf("expected default broker, got %s", cfg.Audio.Broker)
	}
	if cfg.Events.QueueSize != 200 {
		t.Errorf("expected default queue size 200, got %d", cfg.Events.QueueSize)
	}
	if len(cfg.Inputs) != 5 || len(cfg.Relays) != 4 {
		t.Errorf("expected the production room, got %d inputs %d relays", len(cfg.Inputs), len(cfg.Relays))
	}
}

func TestLoadExplicitFile(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: ":9090"
inputs:
  - label: "button a"
    pin: 2
    role: pb1
    debounce_ms: 25
  - label: "button b"
    pin: 3
    role: pb2
  - label: "switch a"
    pin: 4
    role: t1
  - label: "switch b"
    pin: 7
    role: t2
relays:
  - name: door
    pin: 10
  - name: light
    pin: 11
    active_high: true
patterns:
  idle: {door: false, light: false}
  scene_1: {door: true, light: false}
  scene_2: {door: true, light: true}
  end_game: {door: false, light: true}
cues:
  scene_1: track1.mp3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.HTTP.Addr)
	}
	// Sections absent from the file fall back to the defaults.
	if cfg.Audio.Broker != "tcp://localhost:1883" {
		t.Errorf("expected default broker, got %s", cfg.Audio.Broker)
	}
	if len(cfg.Hints) != 1 || cfg.Hints[0].Name != "hint1" {
		t.Errorf("expected default hints, got %v", cfg.Hints)
	}
	// Sections present in the file replace the defaults wholesale.
	if len(cfg.Cues) != 1 || cfg.Cues["scene_1"] != "track1.mp3" {
		t.Errorf("expected only the file's cue, got %v", cfg.Cues)
	}

	if len(cfg.Inputs) != 4 {
		t.Fatalf("expected 4 inputs, got %d", len(cfg.Inputs))
	}
	if cfg.Inputs[0].DebounceMs != 25 {
		t.Errorf("expected debounce 25ms, got %d", cfg.Inputs[0].DebounceMs)
	}
	if len(cfg.Relays) != 2 || !cfg.Relays[1].ActiveHigh {
		t.Errorf("unexpected relays: %v", cfg.Relays)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing explicit file")
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	// end_game leaves the relay unassigned.
	path := writeConfig(t, `
inputs:
  - label: "button a"
    pin: 2
    role: pb1
relays:
  - name: door
    pin: 10
patterns:
  idle: {door: false}
  scene_1: {door: true}
  scene_2: {door: true}
  end_game: {}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "not assigned") {
		t.Errorf("expected unassigned-relay error, got: %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ESCAPE_HTTP_ADDR", ":7000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":7000" {
		t.Errorf("expected env override :7000, got %s", cfg.HTTP.Addr)
	}
}

func TestValidateCatchesEveryMistake(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			"missing input label",
			func(c *Config) { c.Inputs[0].Label = "" },
			"missing label",
		},
		{
			"duplicate input label",
			func(c *Config) { c.Inputs[1].Label = c.Inputs[0].Label },
			"duplicate label",
		},
		{
			"duplicate pin across inputs",
			func(c *Config) { c.Inputs[1].Pin = c.Inputs[0].Pin },
			"already used",
		},
		{
			"pin shared between input and relay",
			func(c *Config) { c.Relays[0].Pin = c.Inputs[0].Pin },
			"already used",
		},
		{
			"negative debounce",
			func(c *Config) { c.Inputs[0].DebounceMs = -1 },
			"negative debounce",
		},
		{
			"unknown role",
			func(c *Config) { c.Inputs[0].Role = "pb9" },
			"unknown role",
		},
		{
			"duplicate role",
			func(c *Config) { c.Inputs[1].Role = "pb1" },
			"already bound",
		},
		{
			"missing relay name",
			func(c *Config) { c.Relays[0].Name = "" },
			"missing name",
		},
		{
			"duplicate relay name",
			func(c *Config) { c.Relays[1].Name = c.Relays[0].Name },
			"duplicate name",
		},
		{
			"missing phase pattern",
			func(c *Config) { delete(c.Patterns, "end_game") },
			`missing phase "end_game"`,
		},
		{
			"unknown phase pattern",
			func(c *Config) { c.Patterns["scene_9"] = map[string]bool{} },
			`unknown phase "scene_9"`,
		},
		{
			"pattern names unknown relay",
			func(c *Config) { c.Patterns["idle"]["relay_9"] = true },
			`unknown relay "relay_9"`,
		},
		{
			"pattern leaves relay unassigned",
			func(c *Config) { delete(c.Patterns["idle"], "relay_1") },
			"not assigned",
		},
		{
			"cue for idle",
			func(c *Config) { c.Cues["idle"] = "state0.mp3" },
			`invalid phase "idle"`,
		},
		{
			"cue with path separator",
			func(c *Config) { c.Cues["scene_1"] = "../state1.mp3" },
			"path separators",
		},
		{
			"cue without mp3 suffix",
			func(c *Config) { c.Cues["scene_1"] = "state1.wav" },
			"bare .mp3",
		},
		{
			"duplicate hint name",
			func(c *Config) { c.Hints = append(c.Hints, Hint{Name: "hint1", File: "other.mp3"}) },
			"duplicate name",
		},
		{
			"hint without file",
			func(c *Config) { c.Hints[0].File = "" },
			"missing file",
		},
		{
			"zero queue size",
			func(c *Config) { c.Events.QueueSize = 0 },
			"queue_size",
		},
	}

	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.wantSub) {
			t.Errorf("%s: expected error containing %q, got: %v", tt.name, tt.wantSub, err)
		}
	}
}

func TestValidateReportsAllProblemsAtOnce(t *testing.T) {
	cfg := Default()
	cfg.Inputs[0].DebounceMs = -1
	cfg.Events.QueueSize = -5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "negative debounce") || !strings.Contains(err.Error(), "queue_size") {
		t.Errorf("expected both problems reported, got: %v", err)
	}
}

func TestValidateTrack(t *testing.T) {
	if err := validateTrack("state1.mp3"); err != nil {
		t.Errorf("bare mp3 name should pass: %v", err)
	}
	for _, bad := range []string{"", "a/b.mp3", `a\b.mp3`, "track.wav", ".mp3"} {
		if err := validateTrack(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestGameRoles(t *testing.T) {
	roles := Default().GameRoles()

	want := game.Roles{
		game.RolePB1: "pushbutton 1",
		game.RolePB2: "pushbutton 2",
		game.RoleT1:  "toggle 1",
		game.RoleT2:  "toggle 2",
		game.RoleRS1: "reed switch",
	}
	if len(roles) != len(want) {
		t.Fatalf("expected %d roles, got %d", len(want), len(roles))
	}
	for role, label := range want {
		if roles[role] != label {
			t.Errorf("role %s: expected %q, got %q", role, label, roles[role])
		}
	}
}

func TestInputSpecs(t *testing.T) {
	no := false
	cfg := Default()
	cfg.Inputs[0].ActiveWhenOpen = &no

	specs := cfg.InputSpecs()
	if specs[0].ActiveWhenOpen {
		t.Error("explicit false should carry through")
	}
	if !specs[1].ActiveWhenOpen {
		t.Error("unset should default to true")
	}
	if specs[0].Debounce != 50*time.Millisecond {
		t.Errorf("expected 50ms debounce, got %v", specs[0].Debounce)
	}
}

func TestGamePatterns(t *testing.T) {
	patterns := Default().GamePatterns()

	if len(patterns) != 4 {
		t.Fatalf("expected 4 phases, got %d", len(patterns))
	}
	if !patterns[game.PhaseScene1]["relay_1"] {
		t.Error("scene_1 should energize relay_1")
	}
	if patterns[game.PhaseIdle]["relay_1"] {
		t.Error("idle should de-energize relay_1")
	}
}

func TestHintFile(t *testing.T) {
	cfg := Default()

	file, ok := cfg.HintFile("hint1")
	if !ok || file != "hint1.mp3" {
		t.Errorf("expected hint1.mp3, got %q ok=%v", file, ok)
	}
	if _, ok := cfg.HintFile("hint9"); ok {
		t.Error("unknown hint should report ok=false")
	}
}

// writeConfig writes a YAML config to a temp dir and returns its path.
func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
