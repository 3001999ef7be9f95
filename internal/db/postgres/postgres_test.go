package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/listify/internal/db"
	"github.com/justestif/listify/internal/db/dbtest"
)

// Set LISTIFY_TEST_POSTGRES_URL to a disposable database to run these tests.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("LISTIFY_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("LISTIFY_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	store, err := New(ctx, url, 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(ctx))
	_, err = store.Pool().Exec(ctx, `TRUNCATE playlist_songs, playlists, songs, users CASCADE`)
	require.NoError(t, err)
	return store
}

func TestStore(t *testing.T) {
	dbtest.Run(t, func(t *testing.T) db.Store { return openTestDB(t) })
}

func TestRollbackAndMigrate(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Rollback(ctx))

	var exists bool
	err := store.Pool().QueryRow(ctx, `SELECT to_regclass('playlists') IS NOT NULL`).Scan(&exists)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.Migrate(ctx))
}

func TestAddSongConcurrentPositions(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	owner := dbtest.CreateUser(t, store, "alice")
	playlist := &db.Playlist{UserID: owner.ID, Name: "Busy"}
	require.NoError(t, store.Playlists().Create(ctx, playlist))

	const n = 10
	songs := make([]*db.Song, n)
	for i := range songs {
		songs[i] = dbtest.CreateSong(t, store, fmt.Sprintf("Song %d", i), "Artist")
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, song := range songs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.Playlists().AddSong(ctx, playlist.ID, song.ID)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	var distinct int
	err := store.Pool().QueryRow(ctx,
		`SELECT COUNT(DISTINCT position) FROM playlist_songs WHERE playlist_id = $1`, playlist.ID,
	).Scan(&distinct)
	require.NoError(t, err)
	assert.Equal(t, n, distinct)

	got, err := store.Playlists().GetForUser(ctx, playlist.ID, owner.ID)
	require.NoError(t, err)
	assert.Len(t, got.SongIDs, n)
}
