package toolconfig

import (
	"context"
	"fmt"

	"github.com/slok/agentgw/internal/conventions"
	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/utils/file"
)

// SynthesizerConfig is the configuration of the synthesizer.
type SynthesizerConfig struct {
	// MainHome is the execution home shared by the non isolated profiles.
	MainHome string
	// IsolatedHome is the execution home of the isolated profile.
	IsolatedHome string
	// Workspace is the directory trusted by the wrapped tool.
	Workspace string
	Policies  model.PolicySet
	Logger    log.Logger
}

func (c *SynthesizerConfig) defaults() error {
	if c.MainHome == "" {
		return fmt.Errorf("main home is required")
	}

	if c.IsolatedHome == "" {
		return fmt.Errorf("isolated home is required")
	}

	if c.MainHome == c.IsolatedHome {
		return fmt.Errorf("main and isolated homes must be different")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "toolconfig.Synthesizer"})

	return nil
}

// Synthesizer writes the wrapped tool configuration of both execution homes.
type Synthesizer struct {
	mainPath     string
	isolatedPath string
	opts         Options
	logger       log.Logger
}

// NewSynthesizer returns a new synthesizer.
func NewSynthesizer(cfg SynthesizerConfig) (*Synthesizer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Synthesizer{
		mainPath:     conventions.ToolConfigPath(cfg.MainHome),
		isolatedPath: conventions.ToolConfigPath(cfg.IsolatedHome),
		opts: Options{
			Policies:  cfg.Policies,
			Workspace: cfg.Workspace,
		},
		logger: cfg.Logger,
	}, nil
}

// Sync renders the configuration of a profile snapshot and writes the files
// whose content changed. Unchanged files are not touched.
func (s *Synthesizer) Sync(ctx context.Context, set *model.ProfileSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	logger := s.logger.WithCtxValues(ctx)

	main, err := Render(set, s.opts)
	if err != nil {
		return fmt.Errorf("rendering main configuration: %w", err)
	}
	if err := s.write(logger, s.mainPath, main); err != nil {
		return err
	}

	isolated, ok, err := RenderIsolated(set, s.opts)
	if err != nil {
		return fmt.Errorf("rendering isolated configuration: %w", err)
	}
	if !ok {
		return nil
	}

	return s.write(logger, s.isolatedPath, isolated)
}

func (s *Synthesizer) write(logger log.Logger, path string, data []byte) error {
	wrote, err := file.WriteIfChanged(path, data, 0o600)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if wrote {
		logger.Infof("Tool configuration updated: %s", path)
	}
	return nil
}
