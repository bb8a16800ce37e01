package profile

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/slok/agentgw/internal/conventions"
	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/storage"
	"github.com/slok/agentgw/internal/storage/memory"
)

// RegistryConfig is the configuration of the profile registry.
type RegistryConfig struct {
	// Repository is the profile catalog.
	Repository storage.ProfileRepository
	// Fallback is used when the catalog fails, times out or is empty.
	// Defaults to the static fallback rows.
	Fallback storage.ProfileRepository
	// Timeout bounds every catalog query.
	Timeout time.Duration
	Logger  log.Logger
}

func (c *RegistryConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Fallback == nil {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Rows: FallbackRows()})
		if err != nil {
			return fmt.Errorf("could not create fallback repository: %w", err)
		}
		c.Fallback = repo
	}

	if c.Timeout <= 0 {
		c.Timeout = conventions.CatalogQueryTimeout
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "profile.Registry"})

	return nil
}

// Registry holds the latest profile snapshot. Every refresh replaces the
// snapshot wholesale.
type Registry struct {
	repo     storage.ProfileRepository
	fallback storage.ProfileRepository
	timeout  time.Duration
	logger   log.Logger
	current  atomic.Pointer[model.ProfileSet]
}

// NewRegistry creates a new profile registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Registry{
		repo:     cfg.Repository,
		fallback: cfg.Fallback,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
	}, nil
}

// Refresh queries the catalog and replaces the current snapshot. Catalog
// failures degrade to the fallback rows, the provenance is set on the snapshot.
func (r *Registry) Refresh(ctx context.Context) *model.ProfileSet {
	logger := r.logger.WithCtxValues(ctx)

	rows, err := r.queryCatalog(ctx)
	source := model.ProvenanceExternal
	switch {
	case err != nil:
		logger.Warningf("Profile catalog unavailable, using fallback profiles: %s", err)
		source = model.ProvenanceFallback
	case len(rows) == 0:
		logger.Warningf("Profile catalog is empty, using fallback profiles")
		source = model.ProvenanceFallback
	}

	if source == model.ProvenanceFallback {
		rows, err = r.fallback.ListProfileRows(ctx)
		if err != nil {
			logger.Errorf("Could not list fallback profiles: %s", err)
			rows = FallbackRows()
		}
	}

	set := Build(rows, source)
	r.current.Store(set)
	logger.Debugf("Loaded %d profiles from %s source, default %q", set.Len(), set.Source, set.Default)

	return set
}

func (r *Registry) queryCatalog(ctx context.Context) ([]model.ProfileRow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.repo.ListProfileRows(ctx)
}

// Current returns the latest snapshot, refreshing when there is none yet.
func (r *Registry) Current(ctx context.Context) *model.ProfileSet {
	if set := r.current.Load(); set != nil {
		return set
	}
	return r.Refresh(ctx)
}

// Resolve looks up a profile in the latest snapshot. An empty requested name
// uses defaultName. The lookup is alias aware and never fails, callers decide
// what a missing profile means.
func (r *Registry) Resolve(requested, defaultName string) (model.Profile, bool) {
	name := requested
	if name == "" {
		name = defaultName
	}
	if name == "" {
		return model.Profile{}, false
	}

	id := ResolveAlias(name)
	if IsRestricted(id) {
		id = model.IsolatedProfileID
	}

	return r.current.Load().Get(id)
}
