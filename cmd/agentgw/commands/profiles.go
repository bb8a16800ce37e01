package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/agentgw/internal/printer"
)

type ProfilesCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewProfilesCommand returns the profiles command.
func NewProfilesCommand(rootCmd *RootCommand, app *kingpin.Application) *ProfilesCommand {
	c := &ProfilesCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("profiles", "List the profiles and write the wrapped tool configuration.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ProfilesCommand) Name() string { return c.Cmd.FullCommand() }

func (c ProfilesCommand) Run(ctx context.Context) error {
	svc, err := newSessionService(ctx, *c.rootCmd, gatewayOptions{})
	if err != nil {
		return err
	}

	set := svc.Profiles(ctx)

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintProfiles(set); err != nil {
		return fmt.Errorf("could not print profiles: %w", err)
	}

	return nil
}
