package model

import "time"

// Run is one execution of a script by the host.
type Run struct {
	ID          string     `json:"id"`
	Script      string     `json:"script"`
	Engine      string     `json:"engine"`
	Args        []string   `json:"args"`
	State       RunState   `json:"state"`
	Ticks       int        `json:"ticks"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunResult is what an engine reports after driving a script to completion.
type RunResult struct {
	State  RunState
	Ticks  int
	Errors []*ScriptError // every error raised by a coroutine or callback during the run
}
