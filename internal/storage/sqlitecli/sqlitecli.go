// Package sqlitecli reads the profile catalog through the sqlite3 command line
// tool, so the gateway doesn't hold the catalog open between calls.
package sqlitecli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/slok/agentgw/internal/conventions"
	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
)

const (
	fieldSep = "\x1f"
	rowSep   = "\x1e"
)

// RepositoryConfig is the configuration for the sqlite3 CLI catalog repository.
type RepositoryConfig struct {
	DBPath string
	// Binary is the sqlite3 executable, searched in PATH when not absolute.
	Binary string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Binary == "" {
		c.Binary = conventions.DefaultSQLiteBinary
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLiteCLI"})
	return nil
}

// Repository is a storage.ProfileRepository that shells out to sqlite3 on every read.
type Repository struct {
	dbPath string
	binary string
	logger log.Logger
}

// NewRepository creates a new sqlite3 CLI catalog repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		dbPath: cfg.DBPath,
		binary: cfg.Binary,
		logger: cfg.Logger,
	}, nil
}

// ListProfileRows queries the catalog. The caller bounds the query with the context.
func (r *Repository) ListProfileRows(ctx context.Context) ([]model.ProfileRow, error) {
	// sqlite3 creates missing databases even on reads.
	if _, err := os.Stat(r.dbPath); err != nil {
		return nil, fmt.Errorf("could not stat catalog %s: %w", r.dbPath, err)
	}

	query := fmt.Sprintf("SELECT id, name, base_model FROM %s ORDER BY rowid;", conventions.CatalogTable)
	args := []string{
		"-readonly",
		"-batch",
		"-noheader",
		"-separator", fieldSep,
		"-newline", rowSep,
		r.dbPath,
		query,
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("catalog query aborted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("catalog query failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	rows := parseRows(stdout.String())
	r.logger.Debugf("Catalog query returned %d rows", len(rows))

	return rows, nil
}

// parseRows parses the separated sqlite3 output ignoring malformed rows.
func parseRows(out string) []model.ProfileRow {
	var rows []model.ProfileRow
	for _, line := range strings.Split(out, rowSep) {
		line = strings.Trim(line, "\r\n")
		if line == "" {
			continue
		}

		fields := strings.Split(line, fieldSep)
		if len(fields) != 3 {
			continue
		}

		row := model.ProfileRow{
			ID:        strings.TrimSpace(fields[0]),
			Name:      strings.TrimSpace(fields[1]),
			BaseModel: strings.TrimSpace(fields[2]),
		}
		if row.ID == "" {
			continue
		}
		rows = append(rows, row)
	}

	return rows
}
