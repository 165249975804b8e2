package game

// Outcome is what the rules want done after an input change. The zero value
// means no action.
type Outcome struct {
	// NextPhase, when non-empty, is the phase to transition into.
	NextPhase Phase
	// StopTimer stops the run timer without a phase change.
	StopTimer bool
	// Reason tags the resulting events.
	Reason string
}

// Transition reasons produced by the rules.
const (
	ReasonPuzzle1 = "pb1+pb2_overlap"
	ReasonPuzzle2 = "toggle_1_edge"
	ReasonEndStop = "toggle_2_edge_stop_timer"
)

// EvaluateRules decides whether an input change triggers a transition. It is
// pure: the caller passes consistent copies of the current and previous
// snapshots taken under the machine's lock.
//
// changed is the label whose edge prompted the evaluation. Edge-triggered
// rules fire only when changed is the bound label and that label rose
// INACTIVE to ACTIVE; the scene_1 rule is level-triggered and fires whenever
// both pushbuttons read ACTIVE, regardless of arrival order.
func EvaluateRules(phase Phase, changed string, cur, prev map[string]InputState, roles Roles) Outcome {
	switch phase {
	case PhaseScene1:
		if isActive(cur, roles[RolePB1]) && isActive(cur, roles[RolePB2]) {
			return Outcome{NextPhase: PhaseScene2, Reason: ReasonPuzzle1}
		}
	case PhaseScene2:
		if rose(changed, roles[RoleT1], cur, prev) {
			return Outcome{NextPhase: PhaseEndGame, Reason: ReasonPuzzle2}
		}
	case PhaseEndGame:
		if rose(changed, roles[RoleT2], cur, prev) {
			return Outcome{StopTimer: true, Reason: ReasonEndStop}
		}
	}
	// Idle ignores inputs entirely.
	return Outcome{}
}

// isActive reports whether label currently reads ACTIVE. An unbound role
// (empty label) is never active.
func isActive(cur map[string]InputState, label string) bool {
	if label == "" {
		return false
	}
	return cur[label] == StateActive
}

// rose reports whether the change that just happened is a rising edge on
// want: the changed label matches and it went INACTIVE to ACTIVE. A change
// on any other label never counts, even if want already reads ACTIVE.
func rose(changed, want string, cur, prev map[string]InputState) bool {
	if want == "" || changed != want {
		return false
	}
	return prev[want] == StateInactive && cur[want] == StateActive
}
