// Package audio sends playback commands to the sound machine over MQTT, with
// abstraction for testing. The controller never plays audio itself; it tells
// the player Pi what to do and forgets.
package audio

import "encoding/json"

// Topics consumed by the sound machine.
const (
	TopicBackground = "escape/audio/bg"
	TopicHint       = "escape/audio/hint"
	TopicPanic      = "escape/audio/panic"
)

// Commands understood by the sound machine.
const (
	CmdStart  = "start"
	CmdSwitch = "switch"
	CmdStop   = "stop"
	CmdPlay   = "play"
)

// Command is the JSON message published to a sound topic. The panic topic
// takes an empty command; any message there silences everything.
type Command struct {
	Cmd  string `json:"cmd,omitempty"`
	File string `json:"file,omitempty"`
}

// Player sends playback commands. All commands are fire-and-forget: errors
// are for the caller to log, never to retry, so a stale cue is never
// delivered late.
type Player interface {
	// StartBackground starts the background track from the beginning.
	StartBackground(file string) error

	// SwitchBackground crossfades the background to another track.
	SwitchBackground(file string) error

	// StopBackground stops the background track.
	StopBackground() error

	// PlayHint plays a one-shot hint over the background.
	PlayHint(file string) error

	// SilenceAll stops everything immediately.
	SilenceAll() error

	// Close disconnects from the broker.
	Close() error
}

// FormatCommand renders the JSON payload for a command.
func FormatCommand(c Command) ([]byte, error) {
	return json.Marshal(c)
}
