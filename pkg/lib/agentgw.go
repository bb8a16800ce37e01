package lib

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"k8s.io/client-go/util/homedir"

	"github.com/slok/agentgw/internal/app/doctor"
	"github.com/slok/agentgw/internal/app/session"
	"github.com/slok/agentgw/internal/conventions"
	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/process"
	"github.com/slok/agentgw/internal/profile"
	"github.com/slok/agentgw/internal/rpc"
	"github.com/slok/agentgw/internal/sandbox"
	"github.com/slok/agentgw/internal/storage"
	storageio "github.com/slok/agentgw/internal/storage/io"
	"github.com/slok/agentgw/internal/storage/sqlite"
	"github.com/slok/agentgw/internal/toolconfig"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} uses ~/.agentgw for the execution
// homes and the catalog, and ~/agentgw-workspace as the workdir.
type Config struct {
	// DataDir holds the execution homes and the default catalog.
	// Default: ~/.agentgw.
	DataDir string

	// Workdir is the directory every task runs in and every file operation is
	// confined to. Created when missing.
	// Default: ~/agentgw-workspace.
	Workdir string

	// CatalogDBPath is the SQLite profile catalog, read on every task.
	// Default: <DataDir>/catalog.db.
	CatalogDBPath string

	// PolicyFile is an optional YAML file with the per profile approval and
	// sandbox policies.
	PolicyFile string

	// ToolBinary is the wrapped tool executable.
	// Default: codex.
	ToolBinary string

	// Env is merged over the process environment of every task.
	Env map[string]string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// Version is reported by [Client.Serve] on initialize.
	Version string
}

func (c *Config) defaults() error {
	if c.DataDir == "" || c.Workdir == "" {
		home := homedir.HomeDir()
		if home == "" {
			return fmt.Errorf("could not get user home dir")
		}
		if c.DataDir == "" {
			c.DataDir = filepath.Join(home, conventions.DefaultDataDir)
		}
		if c.Workdir == "" {
			c.Workdir = filepath.Join(home, conventions.DefaultWorkspaceDir)
		}
	}

	if c.CatalogDBPath == "" {
		c.CatalogDBPath = conventions.CatalogDBPath(c.DataDir)
	}

	if c.ToolBinary == "" {
		c.ToolBinary = conventions.DefaultToolBinary
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the SDK entry point.
//
// Create a Client with [New]. A Client is safe for concurrent use: tasks,
// profile refreshes and the tools of [Client.Serve] share one lock, so no two
// tasks of a Client ever overlap in the execution homes.
type Client struct {
	sessions   *serialSessions
	files      *sandbox.FS
	catalog    storage.ProfileRepository
	toolBinary string
	dataDir    string
	version    string
	logger     log.Logger
}

// New creates a new SDK client. The catalog is not opened until it's needed,
// a missing catalog is not an error.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	files, err := sandbox.New(sandbox.Config{
		Root:   cfg.Workdir,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create sandbox: %w", err)
	}

	var policies model.PolicySet
	if cfg.PolicyFile != "" {
		abs, err := filepath.Abs(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("could not get absolute policy path: %w", err)
		}
		ps, err := storageio.NewPolicyYAMLRepository(os.DirFS(filepath.Dir(abs))).GetPolicies(ctx, filepath.Base(abs))
		if err != nil {
			return nil, mapError(fmt.Errorf("could not load policies: %w", err))
		}
		policies = profile.NormalizePolicies(ps)
	}

	catalog, err := sqlite.NewCatalogReader(sqlite.RepositoryConfig{
		DBPath: cfg.CatalogDBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create catalog: %w", err)
	}

	registry, err := profile.NewRegistry(profile.RegistryConfig{
		Repository: catalog,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create profile registry: %w", err)
	}

	mainHome := conventions.MainHome(cfg.DataDir)
	isolatedHome := conventions.IsolatedHome(cfg.DataDir)

	syncer, err := toolconfig.NewSynthesizer(toolconfig.SynthesizerConfig{
		MainHome:     mainHome,
		IsolatedHome: isolatedHome,
		Workspace:    files.Root(),
		Policies:     policies,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create config synthesizer: %w", err)
	}

	runner, err := process.NewExecRunner(process.ExecRunnerConfig{Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create process runner: %w", err)
	}

	sessions, err := session.NewService(session.ServiceConfig{
		Registry:     registry,
		Syncer:       syncer,
		Runner:       runner,
		Binary:       cfg.ToolBinary,
		Workdir:      files.Root(),
		MainHome:     mainHome,
		IsolatedHome: isolatedHome,
		ExtraEnv:     cfg.Env,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create session service: %w", err)
	}

	return &Client{
		sessions:   &serialSessions{svc: sessions},
		files:      files,
		catalog:    catalog,
		toolBinary: cfg.ToolBinary,
		dataDir:    cfg.DataDir,
		version:    cfg.Version,
		logger:     cfg.Logger,
	}, nil
}

// RunTask runs a wrapped tool task and waits for it.
//
// Returns [ErrNotValid] for an empty prompt and [ErrUnknownProfile] when the
// profile doesn't resolve, in both cases nothing is executed.
func (c *Client) RunTask(ctx context.Context, opts RunTaskOpts) (*TaskResult, error) {
	res, err := c.sessions.Start(ctx, session.StartRequest{
		Prompt:  opts.Prompt,
		Profile: opts.Profile,
		Model:   opts.Model,
		Timeout: opts.Timeout,
		Fresh:   !opts.Continue,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalResult(res), nil
}

// ResumeTask continues the most recent task of the profile execution home
// with the default timeout.
func (c *Client) ResumeTask(ctx context.Context, prompt, profileID string) (*TaskResult, error) {
	res, err := c.sessions.Resume(ctx, session.ResumeRequest{
		Prompt:  prompt,
		Profile: profileID,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalResult(res), nil
}

// Profiles returns the current profiles, refreshing them from the catalog.
func (c *Client) Profiles(ctx context.Context) (*ProfileList, error) {
	return fromInternalProfileSet(c.sessions.Profiles(ctx)), nil
}

// ReadFile returns the content of a workdir file, bounded in size.
func (c *Client) ReadFile(ctx context.Context, path string) (string, error) {
	content, err := c.files.Read(ctx, path)
	if err != nil {
		return "", mapError(err)
	}
	return content, nil
}

// WriteFile writes a workdir file creating its parent directories, and
// returns the written bytes.
func (c *Client) WriteFile(ctx context.Context, path, content string) (int, error) {
	n, err := c.files.Write(ctx, path, content)
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// ListFiles lists a workdir directory.
func (c *Client) ListFiles(ctx context.Context, path string) ([]DirEntry, error) {
	entries, err := c.files.List(ctx, path)
	if err != nil {
		return nil, mapError(err)
	}
	return fromInternalEntries(entries), nil
}

// Doctor runs the preflight checks.
func (c *Client) Doctor(ctx context.Context) ([]CheckResult, error) {
	svc, err := doctor.NewService(doctor.ServiceConfig{
		ToolBinary: c.toolBinary,
		Catalog:    c.catalog,
		Dirs: map[string]string{
			"data_dir":  c.dataDir,
			"workspace": c.files.Root(),
		},
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create doctor: %w", err)
	}

	return fromInternalCheckResults(svc.Check(ctx)), nil
}

// Serve runs the line-delimited JSON-RPC server until the input ends or the
// context is cancelled.
func (c *Client) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	tools, err := rpc.NewTools(rpc.ToolsConfig{
		Sessions: c.sessions,
		Files:    c.files,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create tools: %w", err)
	}

	server, err := rpc.NewServer(rpc.ServerConfig{
		In:      in,
		Out:     out,
		Tools:   tools,
		Version: c.version,
		Logger:  c.logger,
	})
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}

	return server.Run(ctx)
}

// serialSessions runs the session calls one at a time.
type serialSessions struct {
	mu  sync.Mutex
	svc *session.Service
}

func (s *serialSessions) Start(ctx context.Context, req session.StartRequest) (*session.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.svc.Start(ctx, req)
}

func (s *serialSessions) Resume(ctx context.Context, req session.ResumeRequest) (*session.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.svc.Resume(ctx, req)
}

func (s *serialSessions) Profiles(ctx context.Context) *model.ProfileSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.svc.Profiles(ctx)
}
