package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/slok/agentgw/internal/model"
)

// TablePrinter prints gateway information in a plain text format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintProfiles prints the profiles in a table followed by the source and default.
func (t *TablePrinter) PrintProfiles(set *model.ProfileSet) error {
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

	// Print header.
	fmt.Fprintln(tw, "ID\tNAME\tMODEL\tISOLATED")

	// Print rows.
	for _, p := range set.List() {
		isolated := "no"
		if p.Isolated {
			isolated = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Model, isolated)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	def, source := "(none)", model.Provenance("unknown")
	if set != nil {
		source = set.Source
		if set.Default != "" {
			def = set.Default
		}
	}
	fmt.Fprintf(t.writer, "\nSource:  %s\n", source)
	fmt.Fprintf(t.writer, "Default: %s\n", def)

	return nil
}

// PrintEntries prints one directory entry per line tagged with its type.
func (t *TablePrinter) PrintEntries(entries []model.DirEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(t.writer, EmptyDirMarker)
		return nil
	}

	for _, e := range entries {
		kind := "file"
		if e.IsDir {
			kind = "dir"
		}
		fmt.Fprintf(t.writer, "[%s] %s\n", kind, e.Name)
	}

	return nil
}

// PrintOutcome prints the combined output of an execution. Non successful
// executions end with the exit indicator.
func (t *TablePrinter) PrintOutcome(o model.ProcessOutcome) error {
	var b strings.Builder
	b.WriteString(o.Stdout)

	if o.Stderr != "" {
		if b.Len() > 0 {
			ensureNewline(&b)
			b.WriteString("\n")
		}
		b.WriteString("[stderr]\n")
		b.WriteString(o.Stderr)
	}

	switch {
	case o.Success():
	case o.ExitCode != nil:
		separate(&b)
		fmt.Fprintf(&b, "[exit code: %d]", *o.ExitCode)
	default:
		separate(&b)
		b.WriteString("[terminated: no exit code]")
	}

	if b.Len() == 0 {
		b.WriteString(NoOutputMarker)
	}
	ensureNewline(&b)

	_, err := io.WriteString(t.writer, b.String())
	return err
}

// PrintChecks prints doctor check results.
func (t *TablePrinter) PrintChecks(results []model.CheckResult) error {
	for _, r := range results {
		fmt.Fprintf(t.writer, "[%s] %s: %s\n", strings.ToUpper(string(r.Status)), r.ID, r.Message)
	}

	ok, warnings, errors := model.CountByStatus(results)
	fmt.Fprintf(t.writer, "\n%d ok, %d warnings, %d errors\n", ok, warnings, errors)

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func ensureNewline(b *strings.Builder) {
	if s := b.String(); s != "" && !strings.HasSuffix(s, "\n") {
		b.WriteString("\n")
	}
}

func separate(b *strings.Builder) {
	if b.Len() > 0 {
		ensureNewline(b)
		b.WriteString("\n")
	}
}
