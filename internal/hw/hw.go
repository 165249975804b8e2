// Package hw provides GPIO access for the room's inputs and relays with
// hardware abstraction. The real implementation uses the Linux GPIO character
// device; fakes allow testing without hardware.
package hw

import "time"

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// EdgeFunc receives debounced input edges as normalized logical states. The
// handler is bound at construction because the kernel event handler is fixed
// when the line is requested.
type EdgeFunc func(label string, active bool)

// InputSpec describes one input line. Inputs are wired to ground through the
// switch with the internal pull-up enabled, so an open circuit reads high.
type InputSpec struct {
	Label          string
	Pin            int
	Debounce       time.Duration
	ActiveWhenOpen bool
}

// RelaySpec describes one relay line. Most relay boards energize on a low
// level, hence ActiveHigh false.
type RelaySpec struct {
	Name       string
	Pin        int
	ActiveHigh bool
}

// InputSource reads the room's input lines. Edge delivery happens through
// the EdgeFunc given at construction; ReadAll serves boot-time seeding.
type InputSource interface {
	// ReadAll returns the current logical state of every input by label.
	ReadAll() (map[string]bool, error)

	// Close releases the lines.
	Close() error
}

// RelaySink drives the room's relay lines.
type RelaySink interface {
	// Set drives one relay by name. on is the logical state; polarity is
	// handled per the relay's spec.
	Set(name string, on bool) error

	// Close de-energizes and releases the lines.
	Close() error
}

// logicalActive normalizes a raw line level to the logical input state.
// With active-when-open wiring the pull-up makes an open circuit read high,
// and high is the ACTIVE state.
func logicalActive(rawHigh, activeWhenOpen bool) bool {
	if activeWhenOpen {
		return rawHigh
	}
	return !rawHigh
}

// relayLevel maps a logical relay state to the physical line level.
func relayLevel(on, activeHigh bool) int {
	if on == activeHigh {
		return 1
	}
	return 0
}
