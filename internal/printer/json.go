package printer

import (
	"encoding/json"
	"io"

	"github.com/slok/agentgw/internal/model"
)

// JSONPrinter prints gateway information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type profileItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	Isolated bool   `json:"isolated"`
}

type profilesOutput struct {
	Source   string        `json:"source"`
	Default  string        `json:"default"`
	Profiles []profileItem `json:"profiles"`
}

type entryItem struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

type outcomeOutput struct {
	ExitCode   *int   `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	DurationMS int64  `json:"duration_ms"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

type checkItem struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintProfiles prints the profiles in JSON format.
func (j *JSONPrinter) PrintProfiles(set *model.ProfileSet) error {
	out := profilesOutput{Profiles: []profileItem{}}
	if set != nil {
		out.Source = string(set.Source)
		out.Default = set.Default
	}
	for _, p := range set.List() {
		out.Profiles = append(out.Profiles, profileItem{
			ID:       p.ID,
			Name:     p.Name,
			Model:    p.Model,
			Isolated: p.Isolated,
		})
	}

	return j.encode(out)
}

// PrintEntries prints directory entries in JSON format.
func (j *JSONPrinter) PrintEntries(entries []model.DirEntry) error {
	items := make([]entryItem, len(entries))
	for i, e := range entries {
		items[i] = entryItem{Name: e.Name, IsDir: e.IsDir}
	}
	return j.encode(items)
}

// PrintOutcome prints an execution outcome in JSON format.
func (j *JSONPrinter) PrintOutcome(o model.ProcessOutcome) error {
	return j.encode(outcomeOutput{
		ExitCode:   o.ExitCode,
		TimedOut:   o.TimedOut,
		DurationMS: o.Duration.Milliseconds(),
		Stdout:     o.Stdout,
		Stderr:     o.Stderr,
	})
}

// PrintChecks prints doctor check results in JSON format.
func (j *JSONPrinter) PrintChecks(results []model.CheckResult) error {
	items := make([]checkItem, len(results))
	for i, r := range results {
		items[i] = checkItem{ID: r.ID, Status: string(r.Status), Message: r.Message}
	}
	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
