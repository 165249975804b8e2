package hw

// FakeInputs is a test double driven by SetActive. Edges fire the EdgeFunc
// synchronously, the way the kernel event handler does on hardware.
type FakeInputs struct {
	states map[string]bool
	onEdge EdgeFunc

	// Closed tracks if Close was called.
	Closed bool

	// ReadErr, if set, will be returned by ReadAll.
	ReadErr error
}

// NewFakeInputs creates a FakeInputs with the given initial states.
func NewFakeInputs(initial map[string]bool, onEdge EdgeFunc) *FakeInputs {
	states := make(map[string]bool, len(initial))
	for label, active := range initial {
		states[label] = active
	}
	return &FakeInputs{states: states, onEdge: onEdge}
}

// SetActive scripts one input change. The edge handler fires only on an
// actual transition, matching debounced hardware edges.
func (f *FakeInputs) SetActive(label string, active bool) {
	changed := f.states[label] != active
	f.states[label] = active
	if changed && f.onEdge != nil {
		f.onEdge(label, active)
	}
}

// ReadAll returns the current logical state of every input.
func (f *FakeInputs) ReadAll() (map[string]bool, error) {
	if f.ReadErr != nil {
		return nil, f.ReadErr
	}
	states := make(map[string]bool, len(f.states))
	for label, active := range f.states {
		states[label] = active
	}
	return states, nil
}

// Close marks the inputs as closed.
func (f *FakeInputs) Close() error {
	f.Closed = true
	return nil
}

// RelayWrite records one write through FakeRelays.
type RelayWrite struct {
	Name string
	On   bool
}

// FakeRelays records relay writes for test assertions.
type FakeRelays struct {
	// States holds the last written state per relay.
	States map[string]bool

	// Writes contains every write in order.
	Writes []RelayWrite

	// SetErr, if set, will be returned by Set.
	SetErr error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeRelays creates a FakeRelays for testing.
func NewFakeRelays() *FakeRelays {
	return &FakeRelays{States: make(map[string]bool)}
}

// Set records the write.
func (f *FakeRelays) Set(name string, on bool) error {
	if f.SetErr != nil {
		return f.SetErr
	}
	f.States[name] = on
	f.Writes = append(f.Writes, RelayWrite{Name: name, On: on})
	return nil
}

// Close marks the relays as closed.
func (f *FakeRelays) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes and states.
func (f *FakeRelays) Reset() {
	f.States = make(map[string]bool)
	f.Writes = nil
	f.SetErr = nil
	f.Closed = false
}
