package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/agentgw/internal/rpc"
	"github.com/slok/agentgw/internal/sandbox"
	"github.com/slok/agentgw/internal/utils/env"
)

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	version  string
	envSpecs []string
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application, version string) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd, version: version}

	c.Cmd = app.Command("serve", "Serve the gateway tools over JSON-RPC on stdin/stdout.").Default()
	c.Cmd.Flag("tool-env", "Env vars for the wrapped tool (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	extraEnv, err := env.ParseSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --tool-env value: %w", err)
	}

	files, err := sandbox.New(sandbox.Config{
		Root:   c.rootCmd.Workdir,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create sandbox: %w", err)
	}

	sessions, err := newSessionService(ctx, *c.rootCmd, gatewayOptions{ExtraEnv: extraEnv})
	if err != nil {
		return err
	}

	tools, err := rpc.NewTools(rpc.ToolsConfig{
		Sessions: sessions,
		Files:    files,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create tools: %w", err)
	}

	// Stdout belongs to the protocol, logs go to stderr.
	server, err := rpc.NewServer(rpc.ServerConfig{
		In:      c.rootCmd.Stdin,
		Out:     c.rootCmd.Stdout,
		Tools:   tools,
		Version: c.version,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	logger.Infof("Serving gateway on stdio (sandbox root: %s)", files.Root())

	return server.Run(ctx)
}
