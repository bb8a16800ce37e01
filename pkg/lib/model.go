package lib

import (
	"errors"
	"fmt"
	"time"

	"github.com/slok/agentgw/internal/app/session"
	"github.com/slok/agentgw/internal/model"
)

var (
	// ErrNotFound is returned when a file or directory doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when the options are not valid, e.g. an empty prompt.
	ErrNotValid = errors.New("not valid")
	// ErrUnknownProfile is returned when the requested profile doesn't resolve.
	ErrUnknownProfile = errors.New("unknown profile")
	// ErrOutOfBounds is returned when a path resolves outside the workdir.
	ErrOutOfBounds = errors.New("path outside workdir")
)

// ProfileSource tells where the profiles came from.
type ProfileSource string

const (
	// ProfileSourceCatalog means the profiles were read from the catalog.
	ProfileSourceCatalog ProfileSource = "external"
	// ProfileSourceFallback means the catalog was unavailable or empty and the
	// built-in profiles were used.
	ProfileSourceFallback ProfileSource = "fallback"
)

// Profile is an execution profile.
type Profile struct {
	// ID is the canonical profile ID, aliases are already resolved.
	ID    string
	Name  string
	Model string
	// Isolated profiles run in their own execution home with restricted approvals.
	Isolated bool
}

// ProfileList is a snapshot of the available profiles.
type ProfileList struct {
	Source ProfileSource
	// Default is the profile used when a task doesn't name one.
	Default  string
	Profiles []Profile
}

// RunTaskOpts are the options to run a task.
type RunTaskOpts struct {
	// Prompt is the task prompt, required.
	Prompt string
	// Profile is optional, empty uses the default profile. Aliases are accepted.
	Profile string
	// Model overrides the profile model.
	Model string
	// Timeout is optional, zero uses the default timeout.
	Timeout time.Duration
	// Continue continues the most recent task instead of starting a new one.
	Continue bool
}

// TaskResult is the result of a task execution. Failed executions are
// results, not errors.
type TaskResult struct {
	// RunID identifies the execution in the gateway logs.
	RunID   string
	Profile Profile
	// ExitCode is nil when the process didn't exit by itself.
	ExitCode *int
	TimedOut bool
	Duration time.Duration
	// Stdout and Stderr are the tail of the output streams.
	Stdout string
	Stderr string
}

// Success returns true when the task exited with code 0.
func (r TaskResult) Success() bool {
	return r.ExitCode != nil && *r.ExitCode == 0
}

// DirEntry is a directory entry of the workdir.
type DirEntry struct {
	Name  string
	IsDir bool
}

// CheckStatus represents the status of a preflight check.
type CheckStatus string

const (
	// CheckStatusOK indicates the check passed.
	CheckStatusOK CheckStatus = "ok"
	// CheckStatusWarning indicates the gateway works degraded.
	CheckStatusWarning CheckStatus = "warning"
	// CheckStatusError indicates the check failed.
	CheckStatusError CheckStatus = "error"
)

// CheckResult represents the result of a single preflight check.
type CheckResult struct {
	// ID is a unique identifier for the check (e.g. "tool_binary").
	ID      string
	Message string
	Status  CheckStatus
}

// --- Internal conversion helpers ---

func fromInternalProfile(p model.Profile) Profile {
	return Profile{
		ID:       p.ID,
		Name:     p.Name,
		Model:    p.Model,
		Isolated: p.Isolated,
	}
}

func fromInternalProfileSet(set *model.ProfileSet) *ProfileList {
	out := &ProfileList{Profiles: []Profile{}}
	if set == nil {
		return out
	}

	out.Source = ProfileSource(set.Source)
	out.Default = set.Default
	for _, p := range set.List() {
		out.Profiles = append(out.Profiles, fromInternalProfile(p))
	}

	return out
}

func fromInternalResult(r *session.Result) *TaskResult {
	return &TaskResult{
		RunID:    r.RunID,
		Profile:  fromInternalProfile(r.Profile),
		ExitCode: r.Outcome.ExitCode,
		TimedOut: r.Outcome.TimedOut,
		Duration: r.Outcome.Duration,
		Stdout:   r.Outcome.Stdout,
		Stderr:   r.Outcome.Stderr,
	}
}

func fromInternalEntries(entries []model.DirEntry) []DirEntry {
	out := make([]DirEntry, len(entries))
	for i, e := range entries {
		out[i] = DirEntry{Name: e.Name, IsDir: e.IsDir}
	}
	return out
}

func fromInternalCheckResults(results []model.CheckResult) []CheckResult {
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{
			ID:      r.ID,
			Message: r.Message,
			Status:  CheckStatus(r.Status),
		}
	}
	return out
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrUnknownProfile):
		return fmt.Errorf("%w: %w", ErrUnknownProfile, err)
	case errors.Is(err, model.ErrOutOfBoundsPath):
		return fmt.Errorf("%w: %w", ErrOutOfBounds, err)
	case errors.Is(err, model.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, model.ErrNotValid):
		return fmt.Errorf("%w: %w", ErrNotValid, err)
	default:
		return err
	}
}
