package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/printer"
	"github.com/slok/agentgw/internal/storage/sqlite"
)

// NewCatalogCommand returns the catalog parent command.
func NewCatalogCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("catalog", "Manage the local profile catalog.")
}

type CatalogInitCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewCatalogInitCommand returns the catalog init command.
func NewCatalogInitCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *CatalogInitCommand {
	c := &CatalogInitCommand{rootCmd: rootCmd}
	c.Cmd = parent.Command("init", "Create the catalog database or migrate it to the latest schema.")
	return c
}

func (c CatalogInitCommand) Name() string { return c.Cmd.FullCommand() }

func (c CatalogInitCommand) Run(ctx context.Context) error {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.CatalogPath(),
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	return printer.NewTablePrinter(c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("Catalog ready at %s", c.rootCmd.CatalogPath()))
}

type CatalogAddCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id        string
	name      string
	baseModel string
}

// NewCatalogAddCommand returns the catalog add command.
func NewCatalogAddCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *CatalogAddCommand {
	c := &CatalogAddCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("add", "Add or replace a catalog profile.")
	c.Cmd.Arg("id", "Profile ID.").Required().StringVar(&c.id)
	c.Cmd.Arg("name", "Display name.").Required().StringVar(&c.name)
	c.Cmd.Arg("base-model", "Model the profile runs.").Required().StringVar(&c.baseModel)

	return c
}

func (c CatalogAddCommand) Name() string { return c.Cmd.FullCommand() }

func (c CatalogAddCommand) Run(ctx context.Context) error {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.CatalogPath(),
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	row := model.ProfileRow{ID: c.id, Name: c.name, BaseModel: c.baseModel}
	if err := repo.UpsertProfileRow(ctx, row); err != nil {
		return fmt.Errorf("could not add profile: %w", err)
	}

	return printer.NewTablePrinter(c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("Profile %s added", row.ID))
}

type CatalogRmCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	id string
}

// NewCatalogRmCommand returns the catalog rm command.
func NewCatalogRmCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *CatalogRmCommand {
	c := &CatalogRmCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("rm", "Remove a catalog profile.")
	c.Cmd.Arg("id", "Profile ID.").Required().StringVar(&c.id)

	return c
}

func (c CatalogRmCommand) Name() string { return c.Cmd.FullCommand() }

func (c CatalogRmCommand) Run(ctx context.Context) error {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.CatalogPath(),
		Logger: c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	if err := repo.DeleteProfileRow(ctx, c.id); err != nil {
		return fmt.Errorf("could not remove profile: %w", err)
	}

	return printer.NewTablePrinter(c.rootCmd.Stdout).PrintMessage(fmt.Sprintf("Profile %s removed", c.id))
}
