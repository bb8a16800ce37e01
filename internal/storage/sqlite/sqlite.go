package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite catalog repository.
type RepositoryConfig struct {
	DBPath string
	// ReadOnly opens an existing catalog without touching its schema. This is
	// how the gateway reads catalogs owned by other systems.
	ReadOnly bool
	Logger   log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.ProfileRepository using
// the native driver.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository opens the SQLite catalog. Read-write catalogs are created
// and migrated when needed.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var dsn string
	if cfg.ReadOnly {
		if _, err := os.Stat(cfg.DBPath); err != nil {
			return nil, fmt.Errorf("could not stat catalog %s: %w", cfg.DBPath, err)
		}
		dsn = fmt.Sprintf("file:%s?mode=ro", cfg.DBPath)
	} else {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("could not create db directory: %w", err)
		}
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)", cfg.DBPath)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if !cfg.ReadOnly {
		migrator, err := migrations.NewMigrator(db, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("could not create migrator: %w", err)
		}
		if err := migrator.Up(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("could not run migrations: %w", err)
		}
	}

	cfg.Logger.Debugf("SQLite catalog opened at %s (read-only: %t)", cfg.DBPath, cfg.ReadOnly)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// DB returns the underlying database connection.
func (r *Repository) DB() *sql.DB { return r.db }

// ListProfileRows returns the catalog profile rows in insertion order.
func (r *Repository) ListProfileRows(ctx context.Context) ([]model.ProfileRow, error) {
	query := `
		SELECT id, name, base_model
		FROM profiles
		ORDER BY rowid
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("could not query profiles: %w", err)
	}
	defer rows.Close()

	var res []model.ProfileRow
	for rows.Next() {
		var row model.ProfileRow
		if err := rows.Scan(&row.ID, &row.Name, &row.BaseModel); err != nil {
			return nil, fmt.Errorf("could not scan profile: %w", err)
		}
		res = append(res, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate profiles: %w", err)
	}

	return res, nil
}

// UpsertProfileRow creates or replaces a catalog profile row.
func (r *Repository) UpsertProfileRow(ctx context.Context, row model.ProfileRow) error {
	row.ID = strings.TrimSpace(row.ID)
	if row.ID == "" {
		return fmt.Errorf("profile id is required: %w", model.ErrNotValid)
	}
	if row.BaseModel == "" {
		return fmt.Errorf("profile base model is required: %w", model.ErrNotValid)
	}

	query := `
		INSERT INTO profiles (id, name, base_model, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			base_model = excluded.base_model
	`

	_, err := r.db.ExecContext(ctx, query, row.ID, row.Name, row.BaseModel, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("could not upsert profile: %w", err)
	}

	r.logger.Debugf("Upserted catalog profile: %s", row.ID)
	return nil
}

// DeleteProfileRow removes a catalog profile row.
func (r *Repository) DeleteProfileRow(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete profile: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("profile %s: %w", id, model.ErrNotFound)
	}

	return nil
}

// CatalogReader is a read-only storage.ProfileRepository that opens the
// catalog on every read, so catalogs created or replaced while the gateway
// runs are picked up and missing catalogs fail per call.
type CatalogReader struct {
	cfg RepositoryConfig
}

// NewCatalogReader returns a new per call read-only catalog reader.
func NewCatalogReader(cfg RepositoryConfig) (*CatalogReader, error) {
	cfg.ReadOnly = true
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &CatalogReader{cfg: cfg}, nil
}

// ListProfileRows opens the catalog, lists the rows and closes it.
func (c *CatalogReader) ListProfileRows(ctx context.Context) ([]model.ProfileRow, error) {
	repo, err := NewRepository(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	return repo.ListProfileRows(ctx)
}
