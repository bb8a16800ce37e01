package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/agentgw/internal/log"
	"github.com/slok/agentgw/internal/model"
	"github.com/slok/agentgw/internal/storage/sqlite"
	"github.com/slok/agentgw/internal/storage/sqlite/migrations"
)

func newRepo(t *testing.T, path string) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{
		DBPath: path,
		Logger: log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepositoryProfileRows(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	repo := newRepo(t, filepath.Join(t.TempDir(), "catalog.db"))

	rows, err := repo.ListProfileRows(ctx)
	require.NoError(t, err)
	assert.Empty(rows)

	require.NoError(t, repo.UpsertProfileRow(ctx, model.ProfileRow{ID: "gpt-5", Name: "GPT-5", BaseModel: "gpt-5"}))
	require.NoError(t, repo.UpsertProfileRow(ctx, model.ProfileRow{ID: "fast", Name: "Fast", BaseModel: "o4-mini"}))
	require.NoError(t, repo.UpsertProfileRow(ctx, model.ProfileRow{ID: "gpt-5", Name: "GPT-5 (new)", BaseModel: "gpt-5.1"}))

	rows, err = repo.ListProfileRows(ctx)
	require.NoError(t, err)
	assert.Equal([]model.ProfileRow{
		{ID: "gpt-5", Name: "GPT-5 (new)", BaseModel: "gpt-5.1"},
		{ID: "fast", Name: "Fast", BaseModel: "o4-mini"},
	}, rows)

	require.NoError(t, repo.DeleteProfileRow(ctx, "fast"))
	err = repo.DeleteProfileRow(ctx, "fast")
	assert.ErrorIs(err, model.ErrNotFound)
}

func TestRepositoryUpsertValidation(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, filepath.Join(t.TempDir(), "catalog.db"))

	tests := map[string]struct {
		row model.ProfileRow
	}{
		"Missing ID should fail.":         {row: model.ProfileRow{BaseModel: "gpt-5"}},
		"Blank ID should fail.":           {row: model.ProfileRow{ID: "  ", BaseModel: "gpt-5"}},
		"Missing base model should fail.": {row: model.ProfileRow{ID: "x"}},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := repo.UpsertProfileRow(ctx, test.row)
			assert.ErrorIs(t, err, model.ErrNotValid)
		})
	}
}

func TestRepositoryReadOnly(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	// Missing catalogs are not created in read-only mode.
	_, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: path, ReadOnly: true})
	assert.Error(err)

	rw := newRepo(t, path)
	require.NoError(t, rw.UpsertProfileRow(ctx, model.ProfileRow{ID: "gpt-5", Name: "GPT-5", BaseModel: "gpt-5"}))

	ro, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: path, ReadOnly: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ro.Close() })

	rows, err := ro.ListProfileRows(ctx)
	require.NoError(t, err)
	assert.Equal([]model.ProfileRow{{ID: "gpt-5", Name: "GPT-5", BaseModel: "gpt-5"}}, rows)

	err = ro.UpsertProfileRow(ctx, model.ProfileRow{ID: "x", BaseModel: "y"})
	assert.Error(err)
}

func TestCatalogReader(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	reader, err := sqlite.NewCatalogReader(sqlite.RepositoryConfig{DBPath: path})
	require.NoError(t, err)

	// A missing catalog fails on every read until it exists.
	_, err = reader.ListProfileRows(ctx)
	assert.Error(err)

	rw := newRepo(t, path)
	require.NoError(t, rw.UpsertProfileRow(ctx, model.ProfileRow{ID: "o3", Name: "O3", BaseModel: "o3"}))

	rows, err := reader.ListProfileRows(ctx)
	require.NoError(t, err)
	assert.Equal([]model.ProfileRow{{ID: "o3", Name: "O3", BaseModel: "o3"}}, rows)

	// Later writes are seen by the next read.
	require.NoError(t, rw.UpsertProfileRow(ctx, model.ProfileRow{ID: "fast", Name: "Fast", BaseModel: "o4-mini"}))
	rows, err = reader.ListProfileRows(ctx)
	require.NoError(t, err)
	assert.Len(rows, 2)
}

func TestMigratorVersion(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	repo := newRepo(t, filepath.Join(t.TempDir(), "catalog.db"))

	m, err := migrations.NewMigrator(repo.DB(), log.Noop)
	require.NoError(t, err)

	v, dirty, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(uint(1), v)
	assert.False(dirty)

	// Up again is a no-op.
	require.NoError(t, m.Up(ctx))

	// Down drops the schema, reads fail until migrated again.
	require.NoError(t, m.Down(ctx))
	v, _, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(uint(0), v)
	_, err = repo.ListProfileRows(ctx)
	assert.Error(err)

	require.NoError(t, m.Up(ctx))
	_, err = repo.ListProfileRows(ctx)
	assert.NoError(err)
}
