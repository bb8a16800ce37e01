// Package printer formats gateway results for humans and machines.
package printer

import "github.com/slok/agentgw/internal/model"

// Printer knows how to print gateway information in different formats.
type Printer interface {
	PrintProfiles(set *model.ProfileSet) error
	PrintEntries(entries []model.DirEntry) error
	PrintOutcome(outcome model.ProcessOutcome) error
	PrintChecks(results []model.CheckResult) error
	PrintMessage(msg string) error
}

const (
	// EmptyDirMarker is printed for directories without entries.
	EmptyDirMarker = "(empty directory)"
	// NoOutputMarker is printed for successful executions without output.
	NoOutputMarker = "(no output)"
)
