package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/agentgw/internal/app/session"
	"github.com/slok/agentgw/internal/conventions"
	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/process"
	"github.com/slok/agentgw/internal/profile"
	"github.com/slok/agentgw/internal/storage"
	storageio "github.com/slok/agentgw/internal/storage/io"
	"github.com/slok/agentgw/internal/storage/sqlite"
	"github.com/slok/agentgw/internal/storage/sqlitecli"
	"github.com/slok/agentgw/internal/toolconfig"
)

// newCatalog returns the read-only profile catalog selected by the root flags.
func newCatalog(root RootCommand, logger log.Logger) (storage.ProfileRepository, error) {
	switch root.CatalogDriver {
	case CatalogDriverNative:
		return sqlite.NewCatalogReader(sqlite.RepositoryConfig{
			DBPath: root.CatalogPath(),
			Logger: logger,
		})
	default:
		return sqlitecli.NewRepository(sqlitecli.RepositoryConfig{
			DBPath: root.CatalogPath(),
			Binary: root.SQLiteBin,
			Logger: logger,
		})
	}
}

// loadPolicies loads the policy file, no file means the default policies.
func loadPolicies(ctx context.Context, path string) (model.PolicySet, error) {
	if path == "" {
		return model.PolicySet{}, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return model.PolicySet{}, fmt.Errorf("could not get absolute policy path: %w", err)
	}

	repo := storageio.NewPolicyYAMLRepository(os.DirFS(filepath.Dir(abs)))
	ps, err := repo.GetPolicies(ctx, filepath.Base(abs))
	if err != nil {
		return model.PolicySet{}, err
	}

	return profile.NormalizePolicies(ps), nil
}

// gatewayOptions are the per command settings of the gateway.
type gatewayOptions struct {
	ExtraEnv map[string]string
}

// newSessionService wires the profile registry, the config synthesizer and
// the process runner into the session service.
func newSessionService(ctx context.Context, root RootCommand, opts gatewayOptions) (*session.Service, error) {
	logger := root.Logger

	workdir, err := filepath.Abs(root.Workdir)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute workdir: %w", err)
	}

	policies, err := loadPolicies(ctx, root.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("could not load policies: %w", err)
	}

	catalog, err := newCatalog(root, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create catalog: %w", err)
	}

	registry, err := profile.NewRegistry(profile.RegistryConfig{
		Repository: catalog,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create profile registry: %w", err)
	}

	mainHome := conventions.MainHome(root.DataDir)
	isolatedHome := conventions.IsolatedHome(root.DataDir)

	syncer, err := toolconfig.NewSynthesizer(toolconfig.SynthesizerConfig{
		MainHome:     mainHome,
		IsolatedHome: isolatedHome,
		Workspace:    workdir,
		Policies:     policies,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create config synthesizer: %w", err)
	}

	runner, err := process.NewExecRunner(process.ExecRunnerConfig{
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create process runner: %w", err)
	}

	svc, err := session.NewService(session.ServiceConfig{
		Registry:     registry,
		Syncer:       syncer,
		Runner:       runner,
		Binary:       root.ToolBin,
		Workdir:      workdir,
		MainHome:     mainHome,
		IsolatedHome: isolatedHome,
		HomeEnvVar:   root.HomeEnvVar,
		ExtraEnv:     opts.ExtraEnv,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create session service: %w", err)
	}

	return svc, nil
}
