package game

import "time"

// RunTimer measures elapsed play time for one game run. It starts at most
// once per run: after a Stop only Reset re-arms it, so re-entering an early
// scene after the end never restarts the clock. The started flag carries
// that rule explicitly rather than inferring it from a zero elapsed value.
//
// RunTimer has no lock of its own; every call happens under the owning
// Machine's mutex.
type RunTimer struct {
	now func() time.Time

	running     bool
	started     bool // ever started during this run; cleared only by Reset
	startedAt   time.Time
	elapsedBase time.Duration
}

// NewRunTimer creates a stopped timer reading time from now. Elapsed math
// uses time.Time.Sub, so wall-clock adjustments do not distort it.
func NewRunTimer(now func() time.Time) *RunTimer {
	return &RunTimer{now: now}
}

// Start begins timing. It is a no-op if the timer is running or has already
// started during this run.
func (t *RunTimer) Start() {
	if t.running || t.started {
		return
	}
	t.running = true
	t.started = true
	t.startedAt = t.now()
}

// Stop freezes the timer, folding the live segment into the elapsed base.
// No-op if not running.
func (t *RunTimer) Stop() {
	if !t.running {
		return
	}
	t.elapsedBase += t.now().Sub(t.startedAt)
	t.running = false
}

// Reset returns the timer to its initial state and re-arms Start. This is
// the only way a new run can begin timing.
func (t *RunTimer) Reset() {
	t.running = false
	t.started = false
	t.startedAt = time.Time{}
	t.elapsedBase = 0
}

// Running reports whether the timer is currently counting.
func (t *RunTimer) Running() bool {
	return t.running
}

// Elapsed returns accumulated play time: the frozen base plus the live
// segment when running.
func (t *RunTimer) Elapsed() time.Duration {
	if t.running {
		return t.elapsedBase + t.now().Sub(t.startedAt)
	}
	return t.elapsedBase
}

// Status returns the wire form of the timer.
func (t *RunTimer) Status() TimerStatus {
	return TimerStatus{
		Running: t.running,
		Elapsed: t.Elapsed().Seconds(),
	}
}
