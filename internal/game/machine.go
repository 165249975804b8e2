package game

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verhoeven/escape-controller/internal/broadcast"
	"github.com/verhoeven/escape-controller/internal/monitor"
)

// Relays drives the room's relay outputs. Implemented by hw.RealRelays and
// hw.FakeRelays.
type Relays interface {
	Set(name string, on bool) error
}

// AudioSink receives the machine's playback commands. Implemented by
// audio.RealPlayer and audio.FakePlayer; the machine knows nothing about the
// transport behind it.
type AudioSink interface {
	StartBackground(file string) error
	SwitchBackground(file string) error
	SilenceAll() error
}

// MachineConfig carries the validated room setup into the machine. Patterns
// are complete (every phase assigns every relay); config validation enforces
// that before a Machine exists.
type MachineConfig struct {
	Patterns Patterns
	Roles    Roles
	Cues     Cues
}

// Machine owns all mutable game state behind one mutex: the phase, the
// current and previous input snapshots, the tracked relay states, and the
// run timer. State changes happen under the lock; relay writes, audio
// commands, and event publishes happen after it is released, so no observer
// or piece of hardware can stall a transition.
type Machine struct {
	mu       sync.Mutex
	phase    Phase
	current  map[string]InputState
	previous map[string]InputState
	relays   map[string]bool
	timer    *RunTimer

	patterns Patterns
	roles    Roles
	cues     Cues

	sink    Relays
	audio   AudioSink
	bus     *broadcast.Bus
	metrics *monitor.Metrics
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewMachine creates a machine in the idle phase with a fresh timer. now
// feeds both the timer and event timestamps; nil selects time.Now.
func NewMachine(cfg MachineConfig, relays Relays, audio AudioSink, bus *broadcast.Bus, metrics *monitor.Metrics, log *zap.SugaredLogger, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	m := &Machine{
		phase:    PhaseIdle,
		current:  make(map[string]InputState),
		previous: make(map[string]InputState),
		relays:   make(map[string]bool),
		timer:    NewRunTimer(now),
		patterns: cfg.Patterns,
		roles:    cfg.Roles,
		cues:     cfg.Cues,
		sink:     relays,
		audio:    audio,
		bus:      bus,
		metrics:  metrics,
		log:      log,
		now:      now,
	}

	// Track every relay the patterns name so toggles know the universe.
	for _, pattern := range cfg.Patterns {
		for name := range pattern {
			m.relays[name] = false
		}
	}

	return m
}

// SetPhase transitions into phase and runs the entry's side effects: audio
// cue, relay pattern, then the game_state, timer, and full_state events in
// that fixed order. Returns false for an invalid phase without mutating or
// publishing anything. Re-entering the current phase re-runs the entry.
func (m *Machine) SetPhase(phase Phase, reason string) bool {
	if _, ok := ParsePhase(string(phase)); !ok {
		return false
	}

	m.mu.Lock()
	m.phase = phase
	switch phase {
	case PhaseIdle:
		m.timer.Reset()
	case PhaseScene1:
		// Start-once guard in the timer absorbs re-entries.
		m.timer.Start()
	}
	timer := m.timer.Status()
	m.mu.Unlock()

	m.metrics.IncTransition(string(phase))
	m.metrics.SetTimerRunning(timer.Running)
	m.log.Infow("phase change", "phase", phase, "reason", reason)

	m.playCue(phase)

	if phase == PhaseIdle {
		m.applyPattern(PhaseIdle, "entered_idle")
	}
	m.applyPattern(phase, "state:"+reason)

	m.bus.Publish(broadcast.NewGameState(string(phase), reason, m.now()))
	m.bus.Publish(broadcast.NewTimer(broadcast.TimerInfo(timer), reason, m.now()))
	m.PublishFullState("state_change:" + reason)

	return true
}

// playCue issues the audio command for a phase entry: idle silences, scene_1
// starts the first track, later phases switch. Failures are logged and
// counted, never fatal.
func (m *Machine) playCue(phase Phase) {
	var err error
	switch phase {
	case PhaseIdle:
		err = m.audio.SilenceAll()
	case PhaseScene1:
		if file := m.cues[phase]; file != "" {
			err = m.audio.StartBackground(file)
		}
	case PhaseScene2, PhaseEndGame:
		if file := m.cues[phase]; file != "" {
			err = m.audio.SwitchBackground(file)
		}
	}
	if err != nil {
		m.metrics.IncAudioError()
		m.log.Warnw("audio cue failed", "phase", phase, "error", err)
	}
}

// applyPattern drives every relay to the phase's pattern in sorted-name
// order and publishes one relays event carrying the full assignment. A
// failed write is logged and the remaining writes still happen.
func (m *Machine) applyPattern(phase Phase, reason string) {
	pattern, ok := m.patterns[phase]
	if !ok {
		// Unreachable with validated config.
		m.log.Errorw("no relay pattern for phase", "phase", phase)
		return
	}

	names := make([]string, 0, len(pattern))
	for name := range pattern {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := m.sink.Set(name, pattern[name]); err != nil {
			m.log.Errorw("relay write failed", "relay", name, "on", pattern[name], "error", err)
		}
		m.metrics.IncRelayWrite(name)
	}

	m.mu.Lock()
	for name, on := range pattern {
		m.relays[name] = on
	}
	m.mu.Unlock()

	m.bus.Publish(broadcast.NewRelays(string(phase), copyRelays(pattern), reason, m.now()))
}

// HandleInputChange is the single entry point for debounced input edges.
// The previous snapshot always receives the old current value before the new
// value lands, then the rules run on consistent copies taken under the lock.
func (m *Machine) HandleInputChange(label string, active bool) {
	state := StateFor(active)

	m.mu.Lock()
	prev, seen := m.current[label]
	if !seen {
		prev = state
	}
	m.previous[label] = prev
	m.current[label] = state
	phase := m.phase
	cur := copyInputs(m.current)
	before := copyInputs(m.previous)
	m.mu.Unlock()

	m.metrics.IncInputEdge(label)
	m.log.Debugw("input change", "label", label, "state", state, "phase", phase)
	m.bus.Publish(broadcast.NewInput(label, string(state), m.now()))

	out := EvaluateRules(phase, label, cur, before, m.roles)
	switch {
	case out.NextPhase != "":
		m.SetPhase(out.NextPhase, out.Reason)
	case out.StopTimer:
		m.StopTimerForEdge(out.Reason)
	}
}

// StopTimerForEdge stops the run timer without a phase change and publishes
// the resulting timer event. Already stopped means nothing happens and
// nothing is published.
func (m *Machine) StopTimerForEdge(reason string) {
	m.mu.Lock()
	if !m.timer.Running() {
		m.mu.Unlock()
		return
	}
	m.timer.Stop()
	timer := m.timer.Status()
	m.mu.Unlock()

	m.metrics.SetTimerRunning(false)
	m.log.Infow("timer stopped", "reason", reason, "elapsed", timer.Elapsed)
	m.bus.Publish(broadcast.NewTimer(broadcast.TimerInfo(timer), reason, m.now()))
}

// ToggleRelay flips one relay by name for the operator panel. Unknown names
// return ok false with nothing mutated or published.
func (m *Machine) ToggleRelay(name string) (on, ok bool) {
	m.mu.Lock()
	cur, known := m.relays[name]
	if !known {
		m.mu.Unlock()
		return false, false
	}
	next := !cur
	m.relays[name] = next
	m.mu.Unlock()

	if err := m.sink.Set(name, next); err != nil {
		m.log.Errorw("relay write failed", "relay", name, "on", next, "error", err)
	}
	m.metrics.IncRelayWrite(name)
	m.log.Infow("relay toggled", "relay", name, "on", next)
	m.bus.Publish(broadcast.NewRelay(name, next, "admin_toggle", m.now()))

	return next, true
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Snapshot returns a consistent copy of the full room state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Phase:  m.phase,
		Inputs: copyInputs(m.current),
		Relays: copyRelays(m.relays),
		Timer:  m.timer.Status(),
	}
}

// PublishFullState publishes the current snapshot as a full_state event.
func (m *Machine) PublishFullState(reason string) {
	snap := m.Snapshot()
	m.bus.Publish(broadcast.NewFullState(
		string(snap.Phase),
		wireInputs(snap.Inputs),
		snap.Relays,
		broadcast.TimerInfo(snap.Timer),
		reason,
		m.now(),
	))
}

// SeedInputs primes both snapshots from a boot-time hardware read, publishes
// one input event per label in sorted order, and closes with a full_state
// event so observers see the room as found.
func (m *Machine) SeedInputs(initial map[string]bool) {
	labels := make([]string, 0, len(initial))
	for label := range initial {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		state := StateFor(initial[label])
		m.mu.Lock()
		m.previous[label] = state
		m.current[label] = state
		m.mu.Unlock()
		m.bus.Publish(broadcast.NewInput(label, string(state), m.now()))
	}

	m.PublishFullState("boot")
}

func copyInputs(src map[string]InputState) map[string]InputState {
	dst := make(map[string]InputState, len(src))
	for label, state := range src {
		dst[label] = state
	}
	return dst
}

func copyRelays(src map[string]bool) map[string]bool {
	dst := make(map[string]bool, len(src))
	for name, on := range src {
		dst[name] = on
	}
	return dst
}

func wireInputs(src map[string]InputState) map[string]string {
	dst := make(map[string]string, len(src))
	for label, state := range src {
		dst[label] = string(state)
	}
	return dst
}
