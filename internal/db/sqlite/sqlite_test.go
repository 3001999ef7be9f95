package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/listify/internal/db"
	"github.com/justestif/listify/internal/db/dbtest"
)

func openMemory(t *testing.T) db.Store {
	t.Helper()
	store, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestStore(t *testing.T) {
	dbtest.Run(t, openMemory)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, filepath.Join(t.TempDir(), "listify.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Migrate(ctx))

	var count int
	require.NoError(t, store.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRollback(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.Rollback(ctx))

	var count int
	err = store.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'playlists'`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)

	// nothing left to roll back
	require.NoError(t, store.Rollback(ctx))
	require.NoError(t, store.Migrate(ctx))
}
