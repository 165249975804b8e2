// Package config loads and validates the room setup: input lines, relay
// lines, per-phase relay patterns, audio cues, and hints. Configuration comes
// from a YAML file with ESCAPE_* environment overrides; the compiled-in
// defaults describe the production room.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/verhoeven/escape-controller/internal/game"
	"github.com/verhoeven/escape-controller/internal/hw"
)

// Config is the controller's full configuration.
type Config struct {
	HTTP     HTTP                       `mapstructure:"http"`
	Audio    Audio                      `mapstructure:"audio"`
	Events   Events                     `mapstructure:"events"`
	Inputs   []Input                    `mapstructure:"inputs"`
	Relays   []Relay                    `mapstructure:"relays"`
	Patterns map[string]map[string]bool `mapstructure:"patterns"`
	Cues     map[string]string          `mapstructure:"cues"`
	Hints    []Hint                     `mapstructure:"hints"`
}

// HTTP configures the embedded web server.
type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// Audio configures the sound machine transport.
type Audio struct {
	Broker string `mapstructure:"broker"`
}

// Events configures the broadcast bus.
type Events struct {
	QueueSize int `mapstructure:"queue_size"`
}

// Input describes one input line. ActiveWhenOpen defaults to true: the
// room's props hold their circuit closed to ground at rest, and engaging one
// opens the circuit, which reads ACTIVE.
type Input struct {
	Label          string `mapstructure:"label"`
	Pin            int    `mapstructure:"pin"`
	Role           string `mapstructure:"role"`
	DebounceMs     int    `mapstructure:"debounce_ms"`
	ActiveWhenOpen *bool  `mapstructure:"active_when_open"`
}

func (in Input) activeWhenOpen() bool {
	if in.ActiveWhenOpen == nil {
		return true
	}
	return *in.ActiveWhenOpen
}

// Relay describes one relay line. ActiveHigh defaults to false; the room's
// boards energize on a low level.
type Relay struct {
	Name       string `mapstructure:"name"`
	Pin        int    `mapstructure:"pin"`
	ActiveHigh bool   `mapstructure:"active_high"`
}

// Hint names a one-shot hint track for the operator panel.
type Hint struct {
	Name string `mapstructure:"name"`
	File string `mapstructure:"file"`
}

// Default returns the production room's configuration.
func Default() *Config {
	return &Config{
		HTTP:   HTTP{Addr: ":8080"},
		Audio:  Audio{Broker: "tcp://localhost:1883"},
		Events: Events{QueueSize: 200},
		Inputs: []Input{
			{Label: "pushbutton 1", Pin: 17, Role: "pb1", DebounceMs: 50},
			{Label: "pushbutton 2", Pin: 27, Role: "pb2", DebounceMs: 50},
			{Label: "toggle 1", Pin: 22, Role: "t1", DebounceMs: 50},
			{Label: "toggle 2", Pin: 5, Role: "t2", DebounceMs: 50},
			{Label: "reed switch", Pin: 6, Role: "rs1", DebounceMs: 50},
		},
		Relays: []Relay{
			{Name: "relay_1", Pin: 16},
			{Name: "relay_2", Pin: 20},
			{Name: "relay_3", Pin: 21},
			{Name: "relay_4", Pin: 26},
		},
		Patterns: map[string]map[string]bool{
			"idle":     {"relay_1": false, "relay_2": false, "relay_3": false, "relay_4": false},
			"scene_1":  {"relay_1": true, "relay_2": false, "relay_3": true, "relay_4": false},
			"scene_2":  {"relay_1": true, "relay_2": true, "relay_3": false, "relay_4": true},
			"end_game": {"relay_1": false, "relay_2": false, "relay_3": true, "relay_4": true},
		},
		Cues: map[string]string{
			"scene_1":  "state1.mp3",
			"scene_2":  "state2.mp3",
			"end_game": "state3.mp3",
		},
		Hints: []Hint{
			{Name: "hint1", File: "hint1.mp3"},
		},
	}
}

// Load reads configuration and validates it. An explicit path must exist;
// with no path, config.yaml is searched in . and /etc/escape-controller and
// the compiled-in defaults cover anything missing.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ESCAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("http.addr", def.HTTP.Addr)
	v.SetDefault("audio.broker", def.Audio.Broker)
	v.SetDefault("events.queue_size", def.Events.QueueSize)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/escape-controller")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg, def)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills sections the file left out. Sections given in the file
// replace the default wholesale; there is no per-entry merging.
func applyDefaults(cfg, def *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = def.HTTP.Addr
	}
	if cfg.Audio.Broker == "" {
		cfg.Audio.Broker = def.Audio.Broker
	}
	if cfg.Events.QueueSize == 0 {
		cfg.Events.QueueSize = def.Events.QueueSize
	}
	if len(cfg.Inputs) == 0 {
		cfg.Inputs = def.Inputs
	}
	if len(cfg.Relays) == 0 {
		cfg.Relays = def.Relays
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = def.Patterns
	}
	if len(cfg.Cues) == 0 {
		cfg.Cues = def.Cues
	}
	if len(cfg.Hints) == 0 {
		cfg.Hints = def.Hints
	}
}

// Validate checks the whole configuration and reports every problem at once.
// Partial relay patterns are a config error here, never a runtime fallback.
func (c *Config) Validate() error {
	var errs []error

	pins := make(map[int]string)
	labels := make(map[string]bool)
	roles := make(map[string]string)
	for i, in := range c.Inputs {
		if in.Label == "" {
			errs = append(errs, fmt.Errorf("input %d: missing label", i))
			continue
		}
		if labels[in.Label] {
			errs = append(errs, fmt.Errorf("input %q: duplicate label", in.Label))
		}
		labels[in.Label] = true
		if prev, taken := pins[in.Pin]; taken {
			errs = append(errs, fmt.Errorf("input %q: pin %d already used by %s", in.Label, in.Pin, prev))
		}
		pins[in.Pin] = "input " + in.Label
		if in.DebounceMs < 0 {
			errs = append(errs, fmt.Errorf("input %q: negative debounce", in.Label))
		}
		if in.Role != "" {
			if _, ok := game.ParseRole(in.Role); !ok {
				errs = append(errs, fmt.Errorf("input %q: unknown role %q", in.Label, in.Role))
			} else if prev, taken := roles[in.Role]; taken {
				errs = append(errs, fmt.Errorf("input %q: role %q already bound to %q", in.Label, in.Role, prev))
			}
			roles[in.Role] = in.Label
		}
	}

	relayNames := make(map[string]bool)
	for i, r := range c.Relays {
		if r.Name == "" {
			errs = append(errs, fmt.Errorf("relay %d: missing name", i))
			continue
		}
		if relayNames[r.Name] {
			errs = append(errs, fmt.Errorf("relay %q: duplicate name", r.Name))
		}
		relayNames[r.Name] = true
		if prev, taken := pins[r.Pin]; taken {
			errs = append(errs, fmt.Errorf("relay %q: pin %d already used by %s", r.Name, r.Pin, prev))
		}
		pins[r.Pin] = "relay " + r.Name
	}

	for _, phase := range game.Phases {
		if _, ok := c.Patterns[string(phase)]; !ok {
			errs = append(errs, fmt.Errorf("patterns: missing phase %q", phase))
		}
	}
	for name, pattern := range c.Patterns {
		if _, ok := game.ParsePhase(name); !ok {
			errs = append(errs, fmt.Errorf("patterns: unknown phase %q", name))
			continue
		}
		for relay := range pattern {
			if !relayNames[relay] {
				errs = append(errs, fmt.Errorf("pattern %q: unknown relay %q", name, relay))
			}
		}
		for relay := range relayNames {
			if _, ok := pattern[relay]; !ok {
				errs = append(errs, fmt.Errorf("pattern %q: relay %q not assigned", name, relay))
			}
		}
	}

	for name, file := range c.Cues {
		phase, ok := game.ParsePhase(name)
		if !ok || phase == game.PhaseIdle {
			errs = append(errs, fmt.Errorf("cues: invalid phase %q", name))
		}
		if err := validateTrack(file); err != nil {
			errs = append(errs, fmt.Errorf("cue %q: %w", name, err))
		}
	}

	hintNames := make(map[string]bool)
	for i, h := range c.Hints {
		if h.Name == "" {
			errs = append(errs, fmt.Errorf("hint %d: missing name", i))
			continue
		}
		if hintNames[h.Name] {
			errs = append(errs, fmt.Errorf("hint %q: duplicate name", h.Name))
		}
		hintNames[h.Name] = true
		if err := validateTrack(h.File); err != nil {
			errs = append(errs, fmt.Errorf("hint %q: %w", h.Name, err))
		}
	}

	if c.Events.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("events: queue_size must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// validateTrack accepts bare .mp3 file names only; the sound machine resolves
// them against its own library.
func validateTrack(file string) error {
	if file == "" {
		return errors.New("missing file")
	}
	if strings.ContainsAny(file, `/\`) {
		return fmt.Errorf("file %q: path separators not allowed", file)
	}
	if !strings.HasSuffix(file, ".mp3") || len(file) == len(".mp3") {
		return fmt.Errorf("file %q: must be a bare .mp3 name", file)
	}
	return nil
}

// InputSpecs converts the input section for the hardware layer.
func (c *Config) InputSpecs() []hw.InputSpec {
	specs := make([]hw.InputSpec, 0, len(c.Inputs))
	for _, in := range c.Inputs {
		specs = append(specs, hw.InputSpec{
			Label:          in.Label,
			Pin:            in.Pin,
			Debounce:       time.Duration(in.DebounceMs) * time.Millisecond,
			ActiveWhenOpen: in.activeWhenOpen(),
		})
	}
	return specs
}

// RelaySpecs converts the relay section for the hardware layer.
func (c *Config) RelaySpecs() []hw.RelaySpec {
	specs := make([]hw.RelaySpec, 0, len(c.Relays))
	for _, r := range c.Relays {
		specs = append(specs, hw.RelaySpec{
			Name:       r.Name,
			Pin:        r.Pin,
			ActiveHigh: r.ActiveHigh,
		})
	}
	return specs
}

// GameRoles extracts the role table for the rules.
func (c *Config) GameRoles() game.Roles {
	roles := make(game.Roles)
	for _, in := range c.Inputs {
		if in.Role == "" {
			continue
		}
		if role, ok := game.ParseRole(in.Role); ok {
			roles[role] = in.Label
		}
	}
	return roles
}

// GamePatterns converts the pattern section for the machine.
func (c *Config) GamePatterns() game.Patterns {
	patterns := make(game.Patterns, len(c.Patterns))
	for name, assignment := range c.Patterns {
		phase, ok := game.ParsePhase(name)
		if !ok {
			continue
		}
		pattern := make(game.Pattern, len(assignment))
		for relay, on := range assignment {
			pattern[relay] = on
		}
		patterns[phase] = pattern
	}
	return patterns
}

// GameCues converts the cue section for the machine.
func (c *Config) GameCues() game.Cues {
	cues := make(game.Cues, len(c.Cues))
	for name, file := range c.Cues {
		if phase, ok := game.ParsePhase(name); ok {
			cues[phase] = file
		}
	}
	return cues
}

// HintFile resolves a panel hint name to its track.
func (c *Config) HintFile(name string) (string, bool) {
	for _, h := range c.Hints {
		if h.Name == name {
			return h.File, true
		}
	}
	return "", false
}
