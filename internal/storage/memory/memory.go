package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	// Rows are the initial catalog rows.
	Rows   []model.ProfileRow
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.ProfileRepository.
type Repository struct {
	rows   []model.ProfileRow
	mu     sync.RWMutex
	logger log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		rows:   slices.Clone(cfg.Rows),
		logger: cfg.Logger,
	}, nil
}

// ListProfileRows returns a copy of the stored rows.
func (r *Repository) ListProfileRows(ctx context.Context) ([]model.ProfileRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.rows), nil
}

// UpsertProfileRow replaces a row with the same ID in place or appends it.
func (r *Repository) UpsertProfileRow(ctx context.Context, row model.ProfileRow) error {
	if row.ID == "" {
		return fmt.Errorf("profile id is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.rows {
		if existing.ID == row.ID {
			r.rows[i] = row
			return nil
		}
	}
	r.rows = append(r.rows, row)

	r.logger.Debugf("Stored profile row: %s", row.ID)
	return nil
}
