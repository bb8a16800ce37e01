package model

import "time"

// ExecRequest is a request to run the wrapped tool.
type ExecRequest struct {
	Prompt string
	// Profile is optional, empty means the default profile.
	Profile string
	// Model overrides the profile model when set.
	Model string
	// Timeout is optional, zero means the default timeout.
	Timeout time.Duration
	// Fresh starts a new task, otherwise the most recent task is continued.
	Fresh bool
}

// ProcessOutcome is the result of a wrapped tool execution.
type ProcessOutcome struct {
	// ExitCode is nil when the process was killed before producing one.
	ExitCode *int
	// Stdout is the tail of the standard output, bounded.
	Stdout string
	// Stderr is the tail of the standard error, bounded.
	Stderr string
	// TimedOut is set when the process was forcibly terminated on timeout.
	TimedOut bool
	Duration time.Duration
}

// Success returns true when the process exited cleanly with a zero exit code.
func (o ProcessOutcome) Success() bool {
	return o.ExitCode != nil && *o.ExitCode == 0
}

// IntPtr is a small helper to get exit code pointers.
func IntPtr(i int) *int { return &i }
