// Package game contains the room's state: phases, input snapshots, the run
// timer, the transition rules, and the machine that ties them together under
// a single lock. Rules and timer are pure; time is always injectable via a
// now func() time.Time.
package game

// Phase is one of the four legal game phases.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseScene1  Phase = "scene_1"
	PhaseScene2  Phase = "scene_2"
	PhaseEndGame Phase = "end_game"
)

// Phases lists the legal phases in progression order.
var Phases = []Phase{PhaseIdle, PhaseScene1, PhaseScene2, PhaseEndGame}

// ParsePhase validates a phase name from config or the API.
func ParsePhase(s string) (Phase, bool) {
	switch Phase(s) {
	case PhaseIdle, PhaseScene1, PhaseScene2, PhaseEndGame:
		return Phase(s), true
	}
	return "", false
}

// InputState is the logical state of one input as carried on the wire.
type InputState string

const (
	StateActive   InputState = "ACTIVE"
	StateInactive InputState = "INACTIVE"
)

// StateFor converts a normalized hardware reading to an InputState.
func StateFor(active bool) InputState {
	if active {
		return StateActive
	}
	return StateInactive
}

// Role identifies which rule slot an input label is wired to.
type Role string

const (
	RolePB1 Role = "pb1" // pushbutton, scene_1 pair
	RolePB2 Role = "pb2" // pushbutton, scene_1 pair
	RoleT1  Role = "t1"  // toggle, scene_2 advance
	RoleT2  Role = "t2"  // toggle, end_game timer stop
	RoleRS1 Role = "rs1" // reed switch, observed only
)

// ParseRole validates a role name from config.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePB1, RolePB2, RoleT1, RoleT2, RoleRS1:
		return Role(s), true
	}
	return "", false
}

// Roles maps a role to the configured input label. A role that is absent
// (or mapped to "") never satisfies a rule.
type Roles map[Role]string

// Pattern is the relay assignment for one phase: every configured relay name
// to its on/off state. Config validation guarantees completeness.
type Pattern map[string]bool

// Patterns maps each phase to its relay pattern.
type Patterns map[Phase]Pattern

// Cues maps a phase to its background track. Idle has no entry; entering
// idle silences instead.
type Cues map[Phase]string

// TimerStatus is the run timer as reported on the wire.
type TimerStatus struct {
	Running bool    `json:"running"`
	Elapsed float64 `json:"elapsed"` // seconds
}

// Snapshot is a consistent copy of the full room state, safe to encode or
// render without further locking.
type Snapshot struct {
	Phase  Phase                 `json:"game_state"`
	Inputs map[string]InputState `json:"inputs"`
	Relays map[string]bool       `json:"relays"`
	Timer  TimerStatus           `json:"timer"`
}
