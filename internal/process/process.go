// Package process runs the wrapped tool as a bounded child process.
package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/slok/agentgw/internal/conventions"
	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
)

// Spec describes a child process execution.
type Spec struct {
	Binary string
	Args   []string
	// Dir is the working directory.
	Dir string
	// Env is the full child environment as KEY=VALUE entries.
	Env []string
	// Timeout is the wall clock limit, zero means the default timeout.
	Timeout time.Duration
}

//go:generate mockery --case underscore --output processmock --outpkg processmock --name Runner

// Runner runs child processes. Failures are reported on the outcome, never as errors.
type Runner interface {
	Run(ctx context.Context, spec Spec) model.ProcessOutcome
}

// ExecRunnerConfig is the configuration of the exec runner.
type ExecRunnerConfig struct {
	StdoutBudget   int
	StderrBudget   int
	DefaultTimeout time.Duration
	// WaitDelay bounds the pipe draining after the process is killed.
	WaitDelay time.Duration
	Logger    log.Logger
}

func (c *ExecRunnerConfig) defaults() error {
	if c.StdoutBudget <= 0 {
		c.StdoutBudget = conventions.StdoutBudget
	}

	if c.StderrBudget <= 0 {
		c.StderrBudget = conventions.StderrBudget
	}

	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = conventions.DefaultTaskTimeout
	}

	if c.WaitDelay <= 0 {
		c.WaitDelay = 2 * time.Second
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "process.ExecRunner"})

	return nil
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct {
	stdoutBudget   int
	stderrBudget   int
	defaultTimeout time.Duration
	waitDelay      time.Duration
	logger         log.Logger
}

// NewExecRunner returns a new exec runner.
func NewExecRunner(cfg ExecRunnerConfig) (*ExecRunner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &ExecRunner{
		stdoutBudget:   cfg.StdoutBudget,
		stderrBudget:   cfg.StderrBudget,
		defaultTimeout: cfg.DefaultTimeout,
		waitDelay:      cfg.WaitDelay,
		logger:         cfg.Logger,
	}, nil
}

// Run starts the process and waits for it. On timeout the whole process group
// is killed and the outcome carries the output captured until then.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) model.ProcessOutcome {
	logger := r.logger.WithCtxValues(ctx)

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout := newTailBuffer(4 * r.stdoutBudget)
	stderr := newTailBuffer(4 * r.stderrBudget)

	cmd := exec.CommandContext(ctx, spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = r.waitDelay
	setKillProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		logger.Errorf("Could not launch %s: %s", spec.Binary, err)
		return model.ProcessOutcome{
			ExitCode: model.IntPtr(1),
			Stderr:   err.Error(),
			Duration: time.Since(start),
		}
	}
	logger.Debugf("Process %d started: %s", cmd.Process.Pid, spec.Binary)

	err := cmd.Wait()
	outcome := model.ProcessOutcome{
		Stdout:   stdout.Tail(r.stdoutBudget),
		Stderr:   stderr.Tail(r.stderrBudget),
		Duration: time.Since(start),
	}

	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome.TimedOut = true
		logger.Warningf("Process %d killed after %s timeout", cmd.Process.Pid, timeout)
	case err == nil:
		outcome.ExitCode = model.IntPtr(0)
	default:
		var exitErr *exec.ExitError
		// Killed by a signal reports -1, there is no exit code then.
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			outcome.ExitCode = model.IntPtr(exitErr.ExitCode())
		}
		logger.Debugf("Process %d ended: %s", cmd.Process.Pid, err)
	}

	return outcome
}
