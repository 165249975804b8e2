package internal

import (
	"testing"
	"time"

	"github.com/verhoeven/escape-controller/internal/audio"
	"github.com/verhoeven/escape-controller/internal/broadcast"
	"github.com/verhoeven/escape-controller/internal/game"
	"github.com/verhoeven/escape-controller/internal/hw"
)

// room wires a machine to fakes the way the binary wires it to hardware:
// inputs feed HandleInputChange, relays and audio receive the side effects,
// and a subscription observes the event stream.
type room struct {
	machine *game.Machine
	inputs  *hw.FakeInputs
	relays  *hw.FakeRelays
	player  *audio.FakePlayer
	bus     *broadcast.Bus
	sub     *broadcast.Subscription

	now time.Time
}

func newRoom(t *testing.T) *room {
	t.Helper()

	r := &room{
		relays: hw.NewFakeRelays(),
		player: audio.NewFakePlayer(),
		bus:    broadcast.New(200, nil, nil),
		now:    time.Date(2026, 1, 1, 19, 0, 0, 0, time.UTC),
	}

	r.machine = game.NewMachine(game.MachineConfig{
		Patterns: game.Patterns{
			game.PhaseIdle:    {"relay_1": false, "relay_2": false, "relay_3": false, "relay_4": false},
			game.PhaseScene1:  {"relay_1": true, "relay_2": false, "relay_3": true, "relay_4": false},
			game.PhaseScene2:  {"relay_1": true, "relay_2": true, "relay_3": false, "relay_4": true},
			game.PhaseEndGame: {"relay_1": false, "relay_2": false, "relay_3": true, "relay_4": true},
		},
		Roles: game.Roles{
			game.RolePB1: "pb1",
			game.RolePB2: "pb2",
			game.RoleT1:  "t1",
			game.RoleT2:  "t2",
			game.RoleRS1: "rs1",
		},
		Cues: game.Cues{
			game.PhaseScene1:  "state1.mp3",
			game.PhaseScene2:  "state2.mp3",
			game.PhaseEndGame: "state3.mp3",
		},
	}, r.relays, r.player, r.bus, nil, nil, func() time.Time { return r.now })

	r.inputs = hw.NewFakeInputs(map[string]bool{
		"pb1": false, "pb2": false, "t1": false, "t2": false, "rs1": false,
	}, r.machine.HandleInputChange)

	r.sub = r.bus.Register()
	t.Cleanup(r.sub.Close)
	return r
}

// boot replays the binary's startup: seed from a hardware read, then idle.
func (r *room) boot(t *testing.T) {
	t.Helper()
	states, err := r.inputs.ReadAll()
	if err != nil {
		t.Fatalf("read inputs: %v", err)
	}
	r.machine.SeedInputs(states)
	r.machine.SetPhase(game.PhaseIdle, "boot_to_idle")
}

func (r *room) advance(d time.Duration) { r.now = r.now.Add(d) }

func (r *room) drain() []broadcast.Event {
	var events []broadcast.Event
	for {
		select {
		case evt := <-r.sub.C:
			events = append(events, evt)
		default:
			return events
		}
	}
}

func (r *room) assertRelays(t *testing.T, want map[string]bool) {
	t.Helper()
	for name, on := range want {
		if r.relays.States[name] != on {
			t.Errorf("relay %s: expected %v, got %v", name, on, r.relays.States[name])
		}
	}
}

// TestIntegrationFullGame plays one complete run: boot to idle, game start,
// both pushbuttons, toggle 1, toggle 2.
func TestIntegrationFullGame(t *testing.T) {
	r := newRoom(t)
	r.boot(t)

	// Boot: five seeded input events, the boot full_state, then the idle
	// entry with its double pattern application.
	events := r.drain()
	wantBoot := []broadcast.Type{
		broadcast.TypeInput, broadcast.TypeInput, broadcast.TypeInput, broadcast.TypeInput, broadcast.TypeInput,
		broadcast.TypeFullState,
		broadcast.TypeRelays, broadcast.TypeRelays,
		broadcast.TypeGameState, broadcast.TypeTimer, broadcast.TypeFullState,
	}
	assertEventTypes(t, events, wantBoot)
	if events[5].Reason != "boot" {
		t.Errorf("expected boot full_state, got reason %q", events[5].Reason)
	}
	if events[6].Reason != "entered_idle" {
		t.Errorf("expected entered_idle relays, got reason %q", events[6].Reason)
	}
	if events[8].GameState != "idle" || events[8].Reason != "boot_to_idle" {
		t.Errorf("unexpected boot game_state: %+v", events[8])
	}

	if got := r.machine.Phase(); got != game.PhaseIdle {
		t.Fatalf("expected idle after boot, got %s", got)
	}
	r.assertRelays(t, map[string]bool{"relay_1": false, "relay_2": false, "relay_3": false, "relay_4": false})

	// Operator starts the game.
	r.machine.SetPhase(game.PhaseScene1, "game_start")
	events = r.drain()
	assertEventTypes(t, events, []broadcast.Type{
		broadcast.TypeRelays, broadcast.TypeGameState, broadcast.TypeTimer, broadcast.TypeFullState,
	})
	if !events[2].Timer.Running {
		t.Error("timer should start with scene_1")
	}
	r.assertRelays(t, map[string]bool{"relay_1": true, "relay_2": false, "relay_3": true, "relay_4": false})

	// One pushbutton alone does nothing.
	r.advance(10 * time.Second)
	r.inputs.SetActive("pb1", true)
	events = r.drain()
	assertEventTypes(t, events, []broadcast.Type{broadcast.TypeInput})
	if got := r.machine.Phase(); got != game.PhaseScene1 {
		t.Fatalf("one button must not advance, got %s", got)
	}

	// The second pushbutton overlaps: scene_2.
	r.advance(5 * time.Second)
	r.inputs.SetActive("pb2", true)
	events = r.drain()
	assertEventTypes(t, events, []broadcast.Type{
		broadcast.TypeInput,
		broadcast.TypeRelays, broadcast.TypeGameState, broadcast.TypeTimer, broadcast.TypeFullState,
	})
	if events[2].GameState != "scene_2" || events[2].Reason != game.ReasonPuzzle1 {
		t.Errorf("unexpected transition: %+v", events[2])
	}
	r.assertRelays(t, map[string]bool{"relay_1": true, "relay_2": true, "relay_3": false, "relay_4": true})

	// Toggle 1 rising edge: end_game.
	r.advance(20 * time.Second)
	r.inputs.SetActive("t1", true)
	events = r.drain()
	assertEventTypes(t, events, []broadcast.Type{
		broadcast.TypeInput,
		broadcast.TypeRelays, broadcast.TypeGameState, broadcast.TypeTimer, broadcast.TypeFullState,
	})
	if events[2].GameState != "end_game" || events[2].Reason != game.ReasonPuzzle2 {
		t.Errorf("unexpected transition: %+v", events[2])
	}
	r.assertRelays(t, map[string]bool{"relay_1": false, "relay_2": false, "relay_3": true, "relay_4": true})

	// Toggle 2 rising edge: the clock stops, the phase stays.
	r.advance(10 * time.Second)
	r.inputs.SetActive("t2", true)
	events = r.drain()
	assertEventTypes(t, events, []broadcast.Type{broadcast.TypeInput, broadcast.TypeTimer})
	if events[1].Reason != game.ReasonEndStop {
		t.Errorf("expected stop reason, got %q", events[1].Reason)
	}
	if events[1].Timer.Running {
		t.Error("timer should be stopped")
	}
	if events[1].Timer.Elapsed != 45 {
		t.Errorf("expected 45s on the clock, got %v", events[1].Timer.Elapsed)
	}
	if got := r.machine.Phase(); got != game.PhaseEndGame {
		t.Errorf("stop must not change the phase, got %s", got)
	}

	// The audio journey: silence on idle, start, then two switches.
	wantAudio := []audio.Call{
		{Topic: audio.TopicPanic, Cmd: audio.Command{}},
		{Topic: audio.TopicBackground, Cmd: audio.Command{Cmd: audio.CmdStart, File: "state1.mp3"}},
		{Topic: audio.TopicBackground, Cmd: audio.Command{Cmd: audio.CmdSwitch, File: "state2.mp3"}},
		{Topic: audio.TopicBackground, Cmd: audio.Command{Cmd: audio.CmdSwitch, File: "state3.mp3"}},
	}
	if len(r.player.Calls) != len(wantAudio) {
		t.Fatalf("expected %d audio calls, got %v", len(wantAudio), r.player.Calls)
	}
	for i, call := range r.player.Calls {
		if call != wantAudio[i] {
			t.Errorf("audio call %d: expected %+v, got %+v", i, wantAudio[i], call)
		}
	}

	if got := r.bus.Dropped(); got != 0 {
		t.Errorf("nothing should be dropped, got %d", got)
	}
}

// TestIntegrationIdleInert verifies the idle room observes inputs without
// reacting to them.
func TestIntegrationIdleInert(t *testing.T) {
	r := newRoom(t)
	r.boot(t)
	r.drain()

	r.inputs.SetActive("pb1", true)
	r.inputs.SetActive("pb2", true)
	r.inputs.SetActive("t1", true)
	r.inputs.SetActive("t2", true)
	r.inputs.SetActive("rs1", true)

	if got := r.machine.Phase(); got != game.PhaseIdle {
		t.Fatalf("idle must stay idle, got %s", got)
	}
	events := r.drain()
	assertEventTypes(t, events, []broadcast.Type{
		broadcast.TypeInput, broadcast.TypeInput, broadcast.TypeInput, broadcast.TypeInput, broadcast.TypeInput,
	})
	if r.machine.Snapshot().Timer.Running {
		t.Error("timer must not run in idle")
	}
}

// TestIntegrationResetForNextGroup runs a game to the end, resets to idle,
// and verifies the next run times from zero.
func TestIntegrationResetForNextGroup(t *testing.T) {
	r := newRoom(t)
	r.boot(t)

	// First group.
	r.machine.SetPhase(game.PhaseScene1, "game_start")
	r.advance(10 * time.Second)
	r.inputs.SetActive("pb1", true)
	r.inputs.SetActive("pb2", true)
	r.inputs.SetActive("t1", true)
	r.inputs.SetActive("t2", true)

	snap := r.machine.Snapshot()
	if snap.Timer.Running || snap.Timer.Elapsed != 10 {
		t.Fatalf("expected first run stopped at 10s, got %+v", snap.Timer)
	}

	// Reset the props and the room.
	r.inputs.SetActive("pb1", false)
	r.inputs.SetActive("pb2", false)
	r.inputs.SetActive("t1", false)
	r.inputs.SetActive("t2", false)
	r.machine.SetPhase(game.PhaseIdle, "admin_override")
	r.drain()
	r.player.Reset()

	// Second group: a fresh clock and the same opening cue.
	r.advance(5 * time.Minute)
	r.machine.SetPhase(game.PhaseScene1, "game_start")
	snap = r.machine.Snapshot()
	if !snap.Timer.Running || snap.Timer.Elapsed != 0 {
		t.Fatalf("expected second run from zero, got %+v", snap.Timer)
	}

	r.advance(7 * time.Second)
	r.inputs.SetActive("pb1", true)
	r.inputs.SetActive("pb2", true)
	if got := r.machine.Phase(); got != game.PhaseScene2 {
		t.Fatalf("second run should advance, got %s", got)
	}

	if len(r.player.Calls) == 0 || r.player.Calls[0].Cmd.Cmd != audio.CmdStart {
		t.Errorf("second run should start the background again, got %v", r.player.Calls)
	}
}

// TestIntegrationSeedRespectsRoomAsFound boots with a toggle already on and
// verifies the stale position cannot fire a rule later.
func TestIntegrationSeedRespectsRoomAsFound(t *testing.T) {
	r := newRoom(t)
	r.inputs.SetActive("t1", true) // prop left engaged by the previous group
	r.drain()

	r.boot(t)
	r.drain()

	snap := r.machine.Snapshot()
	if snap.Inputs["t1"] != game.StateActive {
		t.Fatalf("seed should capture t1 ACTIVE, got %s", snap.Inputs["t1"])
	}

	// The held toggle must not advance scene_2; only a fresh edge counts.
	r.machine.SetPhase(game.PhaseScene2, "admin_override")
	r.inputs.SetActive("pb1", true)
	if got := r.machine.Phase(); got != game.PhaseScene2 {
		t.Fatalf("held toggle must not fire, got %s", got)
	}

	r.inputs.SetActive("t1", false)
	r.inputs.SetActive("t1", true)
	if got := r.machine.Phase(); got != game.PhaseEndGame {
		t.Errorf("fresh edge should fire, got %s", got)
	}
}

func assertEventTypes(t *testing.T, events []broadcast.Event, want []broadcast.Type) {
	t.Helper()
	got := make([]broadcast.Type, len(events))
	for i, evt := range events {
		got[i] = evt.Type
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events %v, got %d %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s (all: %v)", i, want[i], got[i], got)
		}
	}
}
