package audio

// Call records one command sent through the FakePlayer.
type Call struct {
	Topic string
	Cmd   Command
}

// FakePlayer records commands for test assertions.
type FakePlayer struct {
	// Calls contains every command in publish order.
	Calls []Call

	// Err, if set, is returned by every command.
	Err error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePlayer creates a FakePlayer for testing.
func NewFakePlayer() *FakePlayer {
	return &FakePlayer{}
}

func (f *FakePlayer) record(topic string, cmd Command) error {
	if f.Err != nil {
		return f.Err
	}
	f.Calls = append(f.Calls, Call{Topic: topic, Cmd: cmd})
	return nil
}

// StartBackground records a background start.
func (f *FakePlayer) StartBackground(file string) error {
	return f.record(TopicBackground, Command{Cmd: CmdStart, File: file})
}

// SwitchBackground records a background switch.
func (f *FakePlayer) SwitchBackground(file string) error {
	return f.record(TopicBackground, Command{Cmd: CmdSwitch, File: file})
}

// StopBackground records a background stop.
func (f *FakePlayer) StopBackground() error {
	return f.record(TopicBackground, Command{Cmd: CmdStop})
}

// PlayHint records a hint play.
func (f *FakePlayer) PlayHint(file string) error {
	return f.record(TopicHint, Command{Cmd: CmdPlay, File: file})
}

// SilenceAll records a panic silence.
func (f *FakePlayer) SilenceAll() error {
	return f.record(TopicPanic, Command{})
}

// IsConnected reports whether the fake player is "connected".
func (f *FakePlayer) IsConnected() bool {
	return f.Connected
}

// Close marks the player as closed.
func (f *FakePlayer) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded calls.
func (f *FakePlayer) Reset() {
	f.Calls = nil
	f.Err = nil
	f.Closed = false
	f.Connected = false
}
