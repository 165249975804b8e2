// Package broadcast defines the controller's event model and the fan-out bus
// that delivers events to observers (SSE, WebSocket, tests). Events are flat
// JSON objects with a stable, additive-only schema.
package broadcast

import "time"

// Type discriminates event payloads.
type Type string

const (
	TypeFullState Type = "full_state"
	TypeGameState Type = "game_state"
	TypeTimer     Type = "timer"
	TypeRelays    Type = "relays"
	TypeRelay     Type = "relay"
	TypeInput     Type = "input"
	TypeSystem    Type = "system"
)

// System event actions.
const (
	ActionPoweroff = "poweroff"
	ActionShutdown = "shutdown"
)

// TimerInfo is the timer as carried inside timer and full_state events.
type TimerInfo struct {
	Running bool    `json:"running"`
	Elapsed float64 `json:"elapsed"`
}

// Event is one message on the bus. Exactly the fields for the event's type
// are set; the rest stay at their zero values and are omitted from the JSON.
// TS is wall-clock seconds since the epoch.
type Event struct {
	Type      Type              `json:"type"`
	GameState string            `json:"game_state,omitempty"`
	Inputs    map[string]string `json:"inputs,omitempty"`
	Relays    map[string]bool   `json:"relays,omitempty"`
	Timer     *TimerInfo        `json:"timer,omitempty"`
	Label     string            `json:"label,omitempty"`
	State     string            `json:"state,omitempty"`
	Pattern   map[string]bool   `json:"pattern,omitempty"`
	Name      string            `json:"name,omitempty"`
	On        *bool             `json:"on,omitempty"`
	Action    string            `json:"action,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	TS        float64           `json:"ts"`
}

// Stamp converts a wall-clock time to the wire timestamp.
func Stamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// NewFullState builds the self-consistent snapshot event observers use to
// resynchronize after drops.
func NewFullState(phase string, inputs map[string]string, relays map[string]bool, timer TimerInfo, reason string, at time.Time) Event {
	return Event{
		Type:      TypeFullState,
		GameState: phase,
		Inputs:    inputs,
		Relays:    relays,
		Timer:     &timer,
		Reason:    reason,
		TS:        Stamp(at),
	}
}

// NewGameState builds a phase transition event.
func NewGameState(phase, reason string, at time.Time) Event {
	return Event{
		Type:      TypeGameState,
		GameState: phase,
		Reason:    reason,
		TS:        Stamp(at),
	}
}

// NewTimer builds a timer change event.
func NewTimer(timer TimerInfo, reason string, at time.Time) Event {
	return Event{
		Type:   TypeTimer,
		Timer:  &timer,
		Reason: reason,
		TS:     Stamp(at),
	}
}

// NewRelays builds a pattern application event: the phase whose pattern was
// applied plus the complete assignment.
func NewRelays(phase string, pattern map[string]bool, reason string, at time.Time) Event {
	return Event{
		Type:    TypeRelays,
		State:   phase,
		Pattern: pattern,
		Reason:  reason,
		TS:      Stamp(at),
	}
}

// NewRelay builds a single-relay change event. The on field is always
// present, false included.
func NewRelay(name string, on bool, reason string, at time.Time) Event {
	return Event{
		Type:   TypeRelay,
		Name:   name,
		On:     &on,
		Reason: reason,
		TS:     Stamp(at),
	}
}

// NewInput builds an input edge event. Input events carry no reason.
func NewInput(label, state string, at time.Time) Event {
	return Event{
		Type:  TypeInput,
		Label: label,
		State: state,
		TS:    Stamp(at),
	}
}

// NewSystem builds a system lifecycle event.
func NewSystem(action, reason string, at time.Time) Event {
	return Event{
		Type:   TypeSystem,
		Action: action,
		Reason: reason,
		TS:     Stamp(at),
	}
}
