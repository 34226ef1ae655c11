package model

// RunState represents the lifecycle state of a script Run.
type RunState string

const (
	RunStateRunning  RunState = "RUNNING"
	RunStateFinished RunState = "FINISHED"
	RunStateErrored  RunState = "ERRORED"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if the run is in a final state.
func (s RunState) IsTerminal() bool {
	return s == RunStateFinished || s == RunStateErrored
}

// ValidRunTransitions defines the allowed state transitions for Runs.
var ValidRunTransitions = map[RunState][]RunState{
	RunStateRunning: {RunStateFinished, RunStateErrored},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s RunState) CanTransitionTo(next RunState) bool {
	for _, allowed := range ValidRunTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
