// Package session starts and resumes wrapped tool tasks.
package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/agentgw/internal/conventions"
	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/process"
	"github.com/slok/agentgw/internal/utils/env"
)

// ProfileRegistry resolves profiles from the latest catalog snapshot.
type ProfileRegistry interface {
	Refresh(ctx context.Context) *model.ProfileSet
	Resolve(requested, defaultName string) (model.Profile, bool)
}

// ConfigSyncer writes the wrapped tool configuration of a profile snapshot.
type ConfigSyncer interface {
	Sync(ctx context.Context, set *model.ProfileSet) error
}

// ServiceConfig is the configuration for the session service.
type ServiceConfig struct {
	Registry ProfileRegistry
	Syncer   ConfigSyncer
	Runner   process.Runner
	// Binary is the wrapped tool executable.
	Binary string
	// Workdir is the working directory of every execution.
	Workdir      string
	MainHome     string
	IsolatedHome string
	// HomeEnvVar is the variable that tells the wrapped tool its execution home.
	HomeEnvVar string
	// BaseEnv is the environment inherited by executions, defaults to the process environment.
	BaseEnv map[string]string
	// ExtraEnv is merged over the base environment.
	ExtraEnv map[string]string
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Syncer == nil {
		return fmt.Errorf("config syncer is required")
	}
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.Workdir == "" {
		return fmt.Errorf("workdir is required")
	}
	if c.MainHome == "" || c.IsolatedHome == "" {
		return fmt.Errorf("execution homes are required")
	}
	if c.Binary == "" {
		c.Binary = conventions.DefaultToolBinary
	}
	if c.HomeEnvVar == "" {
		c.HomeEnvVar = conventions.DefaultHomeEnvVar
	}
	if c.BaseEnv == nil {
		c.BaseEnv = env.FromList(os.Environ())
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Session"})
	return nil
}

// Service runs wrapped tool tasks with profile aware invocations.
type Service struct {
	registry     ProfileRegistry
	syncer       ConfigSyncer
	runner       process.Runner
	binary       string
	workdir      string
	mainHome     string
	isolatedHome string
	homeEnvVar   string
	env          map[string]string
	logger       log.Logger
}

// NewService creates a new session service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Ambient home values must never reach the child.
	baseEnv := env.Without(cfg.BaseEnv, cfg.HomeEnvVar)

	return &Service{
		registry:     cfg.Registry,
		syncer:       cfg.Syncer,
		runner:       cfg.Runner,
		binary:       cfg.Binary,
		workdir:      cfg.Workdir,
		mainHome:     cfg.MainHome,
		isolatedHome: cfg.IsolatedHome,
		homeEnvVar:   cfg.HomeEnvVar,
		env:          env.MergeMaps(baseEnv, env.Without(cfg.ExtraEnv, cfg.HomeEnvVar)),
		logger:       cfg.Logger,
	}, nil
}

// StartRequest contains the parameters for starting a task.
type StartRequest struct {
	Prompt string
	// Profile is optional, empty uses the default profile.
	Profile string
	// Model overrides the profile model.
	Model string
	// Timeout is optional, zero uses the default timeout.
	Timeout time.Duration
	// Fresh starts a new task, otherwise the most recent one is continued.
	Fresh bool
}

// ResumeRequest contains the parameters for continuing the most recent task.
type ResumeRequest struct {
	Prompt  string
	Profile string
}

// Result is the result of a task execution.
type Result struct {
	RunID   string
	Profile model.Profile
	Outcome model.ProcessOutcome
}

// Start runs a task.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Result, error) {
	return s.run(ctx, model.ExecRequest{
		Prompt:  req.Prompt,
		Profile: req.Profile,
		Model:   req.Model,
		Timeout: req.Timeout,
		Fresh:   req.Fresh,
	})
}

// Resume continues the most recent task with the default timeout.
func (s *Service) Resume(ctx context.Context, req ResumeRequest) (*Result, error) {
	return s.run(ctx, model.ExecRequest{
		Prompt:  req.Prompt,
		Profile: req.Profile,
		Timeout: conventions.DefaultTaskTimeout,
		Fresh:   false,
	})
}

// Profiles refreshes the profiles and writes the tool configuration.
func (s *Service) Profiles(ctx context.Context) *model.ProfileSet {
	return s.refresh(ctx)
}

func (s *Service) refresh(ctx context.Context) *model.ProfileSet {
	set := s.registry.Refresh(ctx)
	if err := s.syncer.Sync(ctx, set); err != nil {
		s.logger.WithCtxValues(ctx).Errorf("Could not write tool configuration: %s", err)
	}
	return set
}

func (s *Service) run(ctx context.Context, req model.ExecRequest) (*Result, error) {
	// 1. Validate request.
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required: %w", model.ErrNotValid)
	}

	// 2. Refresh profiles, the tool config must be on disk before running.
	set := s.refresh(ctx)

	// 3. Resolve profile, explicit unknown profiles are never run.
	p, ok := s.registry.Resolve(req.Profile, set.Default)
	if !ok && req.Profile != "" {
		return nil, fmt.Errorf("%q: %w", req.Profile, model.ErrUnknownProfile)
	}

	// 4. Run.
	runID := ulid.Make().String()
	ctx = s.logger.SetValuesOnCtx(ctx, log.Kv{"run-id": runID, "profile": p.ID})
	logger := s.logger.WithCtxValues(ctx)
	logger.Infof("Running task (fresh: %t)", req.Fresh)

	outcome := s.runner.Run(ctx, process.Spec{
		Binary:  s.binary,
		Args:    Args(p, req),
		Dir:     s.workdir,
		Env:     s.envFor(p),
		Timeout: req.Timeout,
	})

	logger.Infof("Task finished in %s (success: %t, timed out: %t)", outcome.Duration.Round(time.Millisecond), outcome.Success(), outcome.TimedOut)

	return &Result{
		RunID:   runID,
		Profile: p,
		Outcome: outcome,
	}, nil
}

func (s *Service) envFor(p model.Profile) []string {
	home := s.mainHome
	if p.Isolated {
		home = s.isolatedHome
	}
	return env.ToList(env.MergeMaps(s.env, map[string]string{s.homeEnvVar: home}))
}

// Args returns the wrapped tool arguments of an execution request.
func Args(p model.Profile, req model.ExecRequest) []string {
	args := []string{"exec"}
	if !req.Fresh {
		args = append(args, "resume", "--last")
	}
	args = append(args, "--skip-git-repo-check")

	switch {
	case p.Isolated:
		args = append(args,
			"-c", fmt.Sprintf("approval_policy=%q", model.IsolatedPolicy.ApprovalPolicy),
			"--sandbox", string(model.IsolatedPolicy.SandboxMode),
			"--profile", p.ID,
		)
	default:
		// Nobody can answer approval prompts of a supervised run.
		args = append(args, "--dangerously-bypass-approvals-and-sandbox")
		if p.ID != "" && p.ID != model.DefaultProfileID {
			args = append(args, "--profile", p.ID)
		}
	}

	if req.Model != "" {
		args = append(args, "-m", req.Model)
	}

	return append(args, req.Prompt)
}
