package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/agentgw/internal/app/doctor"
	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/printer"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run preflight checks for the gateway.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	catalog, err := newCatalog(*c.rootCmd, logger)
	if err != nil {
		return fmt.Errorf("could not create catalog: %w", err)
	}

	svc, err := doctor.NewService(doctor.ServiceConfig{
		ToolBinary: c.rootCmd.ToolBin,
		Catalog:    catalog,
		Dirs: map[string]string{
			"data_dir":  c.rootCmd.DataDir,
			"workspace": c.rootCmd.Workdir,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	results := svc.Check(ctx)

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintChecks(results); err != nil {
		return fmt.Errorf("could not print checks: %w", err)
	}

	if model.HasErrors(results) {
		_, _, errs := model.CountByStatus(results)
		return fmt.Errorf("preflight checks failed with %d error(s)", errs)
	}

	return nil
}
