//go:build linux

package hw

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealInputs reads the input lines from actual hardware using the Linux GPIO
// character device. Debouncing runs in the kernel; edges arrive on the
// EdgeFunc already normalized.
type RealInputs struct {
	chip  *gpiocdev.Chip
	lines map[string]*gpiocdev.Line
	specs map[string]InputSpec
}

// NewRealInputs requests every input line on the given chip and wires its
// edge events to onEdge.
func NewRealInputs(chipName string, specs []InputSpec, onEdge EdgeFunc) (*RealInputs, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	r := &RealInputs{
		chip:  chip,
		lines: make(map[string]*gpiocdev.Line, len(specs)),
		specs: make(map[string]InputSpec, len(specs)),
	}

	for _, spec := range specs {
		spec := spec
		line, err := chip.RequestLine(spec.Pin,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(spec.Debounce),
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				rawHigh := evt.Type == gpiocdev.LineEventRisingEdge
				onEdge(spec.Label, logicalActive(rawHigh, spec.ActiveWhenOpen))
			}))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request input %q pin %d: %w", spec.Label, spec.Pin, err)
		}
		r.lines[spec.Label] = line
		r.specs[spec.Label] = spec
	}

	return r, nil
}

// ReadAll returns the current logical state of every input.
func (r *RealInputs) ReadAll() (map[string]bool, error) {
	states := make(map[string]bool, len(r.lines))
	for label, line := range r.lines {
		v, err := line.Value()
		if err != nil {
			return nil, fmt.Errorf("read input %q: %w", label, err)
		}
		states[label] = logicalActive(v != 0, r.specs[label].ActiveWhenOpen)
	}
	return states, nil
}

// Close releases all input lines and the chip.
func (r *RealInputs) Close() error {
	var errs []error
	for label, line := range r.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input %q: %w", label, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealRelays drives the relay lines on actual hardware.
type RealRelays struct {
	chip  *gpiocdev.Chip
	lines map[string]*gpiocdev.Line
	specs map[string]RelaySpec
}

// NewRealRelays requests every relay line on the given chip, de-energized.
func NewRealRelays(chipName string, specs []RelaySpec) (*RealRelays, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	r := &RealRelays{
		chip:  chip,
		lines: make(map[string]*gpiocdev.Line, len(specs)),
		specs: make(map[string]RelaySpec, len(specs)),
	}

	for _, spec := range specs {
		line, err := chip.RequestLine(spec.Pin,
			gpiocdev.AsOutput(relayLevel(false, spec.ActiveHigh)))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request relay %q pin %d: %w", spec.Name, spec.Pin, err)
		}
		r.lines[spec.Name] = line
		r.specs[spec.Name] = spec
	}

	return r, nil
}

// Set drives one relay by name.
func (r *RealRelays) Set(name string, on bool) error {
	line, ok := r.lines[name]
	if !ok {
		return fmt.Errorf("unknown relay %q", name)
	}
	if err := line.SetValue(relayLevel(on, r.specs[name].ActiveHigh)); err != nil {
		return fmt.Errorf("set relay %q: %w", name, err)
	}
	return nil
}

// Close de-energizes every relay before releasing the lines, so props are
// never left powered by a dying process.
func (r *RealRelays) Close() error {
	var errs []error
	for name, line := range r.lines {
		if err := line.SetValue(relayLevel(false, r.specs[name].ActiveHigh)); err != nil {
			errs = append(errs, fmt.Errorf("clear relay %q: %w", name, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay %q: %w", name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
