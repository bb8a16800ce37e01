package commands

import (
	"context"
	"io"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/agentgw/internal/conventions"
	"github.com/slok/agentgw/internal/log"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

const (
	// CatalogDriverCLI reads the catalog with the sqlite3 command line tool.
	CatalogDriverCLI = "cli"
	// CatalogDriverNative reads the catalog with the embedded SQLite driver.
	CatalogDriverNative = "native"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string

	// Gateway flags, shared by every command that builds the gateway.
	DataDir       string
	Workdir       string
	CatalogDB     string
	CatalogDriver string
	SQLiteBin     string
	PolicyFile    string
	ToolBin       string
	HomeEnvVar    string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	home := homedir.HomeDir()
	app.Flag("data-dir", "Directory for the execution homes and the default catalog.").Default(filepath.Join(home, conventions.DefaultDataDir)).StringVar(&c.DataDir)
	app.Flag("workdir", "Sandbox root, every file operation and task runs inside it.").Default(filepath.Join(home, conventions.DefaultWorkspaceDir)).StringVar(&c.Workdir)
	app.Flag("catalog-db", "Profile catalog database (defaults to <data-dir>/catalog.db).").StringVar(&c.CatalogDB)
	app.Flag("catalog-driver", "How the catalog is read (cli, native).").Default(CatalogDriverCLI).EnumVar(&c.CatalogDriver, CatalogDriverCLI, CatalogDriverNative)
	app.Flag("sqlite-bin", "sqlite3 executable used by the cli catalog driver.").Default(conventions.DefaultSQLiteBinary).StringVar(&c.SQLiteBin)
	app.Flag("policy-file", "YAML file with the profile approval and sandbox policies.").StringVar(&c.PolicyFile)
	app.Flag("tool-bin", "Wrapped tool executable.").Default(conventions.DefaultToolBinary).StringVar(&c.ToolBin)
	app.Flag("home-env", "Env var the wrapped tool reads its execution home from.").Default(conventions.DefaultHomeEnvVar).StringVar(&c.HomeEnvVar)

	return c
}

// CatalogPath returns the catalog database path.
func (c RootCommand) CatalogPath() string {
	if c.CatalogDB != "" {
		return c.CatalogDB
	}
	return conventions.CatalogDBPath(c.DataDir)
}
