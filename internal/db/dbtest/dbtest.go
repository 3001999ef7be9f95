// Package dbtest holds the behaviour every db.Store backend must share.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/listify/internal/db"
)

// Opener returns a freshly migrated, empty store. It should register its own cleanup.
type Opener func(t *testing.T) db.Store

// Run exercises store against the repository contracts.
func Run(t *testing.T, open Opener) {
	t.Run("Users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("Songs", func(t *testing.T) { testSongs(t, open(t)) })
	t.Run("PlaylistCreate", func(t *testing.T) { testPlaylistCreate(t, open(t)) })
	t.Run("PlaylistList", func(t *testing.T) { testPlaylistList(t, open(t)) })
	t.Run("PlaylistUpdateDelete", func(t *testing.T) { testPlaylistUpdateDelete(t, open(t)) })
	t.Run("PlaylistSongs", func(t *testing.T) { testPlaylistSongs(t, open(t)) })
}

// CreateUser inserts a user with a unique email derived from name.
func CreateUser(t *testing.T, store db.Store, name string) *db.User {
	t.Helper()
	user := &db.User{Name: name, Email: name + "@example.com", PasswordHash: "hash"}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

// CreateSong inserts a song with the given title and artists.
func CreateSong(t *testing.T, store db.Store, title string, artists ...string) *db.Song {
	t.Helper()
	song := &db.Song{Title: title, Artists: artists}
	require.NoError(t, store.Songs().Create(context.Background(), song))
	return song
}

func testUsers(t *testing.T, store db.Store) {
	ctx := context.Background()
	users := store.Users()

	user := &db.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"}
	require.NoError(t, users.Create(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = users.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	err = users.Create(ctx, &db.User{Name: "Other", Email: "ada@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, db.ErrDuplicate)

	_, err = users.Get(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = users.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func testSongs(t *testing.T, store db.Store) {
	ctx := context.Background()
	songs := store.Songs()

	imported := &db.Song{
		Title:       "Hey Jude",
		Artists:     []string{"The Beatles"},
		Album:       "Hey Jude",
		Duration:    431,
		ExternalID:  "sp-1",
		ExternalURL: "https://open.spotify.com/track/sp-1",
	}
	require.NoError(t, songs.Create(ctx, imported))

	err := songs.Create(ctx, &db.Song{Title: "Copy", ExternalID: "sp-1"})
	assert.ErrorIs(t, err, db.ErrDuplicate)

	// empty external ids never collide
	first := CreateSong(t, store, "Duet", "A", "B")
	second := CreateSong(t, store, "Duet", "A", "B", "C")

	got, err := songs.FindByExternalID(ctx, "sp-1")
	require.NoError(t, err)
	assert.Equal(t, imported.ID, got.ID)
	assert.Equal(t, 431, got.Duration)
	assert.Equal(t, []string{"The Beatles"}, got.Artists)

	_, err = songs.FindByExternalID(ctx, "")
	assert.ErrorIs(t, err, db.ErrNotFound)

	got, err = songs.FindByTitleArtists(ctx, "Duet", []string{"B"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "oldest superset match wins")

	got, err = songs.FindByTitleArtists(ctx, "Duet", []string{"C", "A"})
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = songs.FindByTitleArtists(ctx, "Duet", []string{"D"})
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = songs.FindByTitleArtists(ctx, "duet", []string{"A"})
	assert.ErrorIs(t, err, db.ErrNotFound, "title match is exact")

	many, err := songs.GetMany(ctx, []string{first.ID, imported.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, many, 2)

	_, err = songs.Get(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func testPlaylistCreate(t *testing.T, store db.Store) {
	ctx := context.Background()
	playlists := store.Playlists()
	alice := CreateUser(t, store, "alice")
	bob := CreateUser(t, store, "bob")
	s1 := CreateSong(t, store, "One", "X")
	s2 := CreateSong(t, store, "Two", "X")

	p := &db.Playlist{UserID: alice.ID, Name: "Mix", SongIDs: []string{s2.ID, s1.ID}}
	require.NoError(t, playlists.Create(ctx, p))
	assert.NotEmpty(t, p.ID)

	got, err := playlists.GetForUser(ctx, p.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{s2.ID, s1.ID}, got.SongIDs)
	assert.Equal(t, "", got.Description)

	_, err = playlists.GetForUser(ctx, p.ID, bob.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	got, err = playlists.GetByName(ctx, alice.ID, "Mix")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	err = playlists.Create(ctx, &db.Playlist{UserID: alice.ID, Name: "Mix"})
	assert.ErrorIs(t, err, db.ErrDuplicate)

	// names are scoped per owner
	require.NoError(t, playlists.Create(ctx, &db.Playlist{UserID: bob.ID, Name: "Mix"}))

	err = playlists.Create(ctx, &db.Playlist{UserID: alice.ID, Name: "Ghost", SongIDs: []string{"missing"}})
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = playlists.GetByName(ctx, alice.ID, "Ghost")
	assert.ErrorIs(t, err, db.ErrNotFound, "failed create leaves nothing behind")

	empty := &db.Playlist{UserID: alice.ID, Name: "Empty"}
	require.NoError(t, playlists.Create(ctx, empty))
	got, err = playlists.GetForUser(ctx, empty.ID, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.SongIDs)
	assert.Empty(t, got.SongIDs)
}

func testPlaylistList(t *testing.T, store db.Store) {
	ctx := context.Background()
	playlists := store.Playlists()
	alice := CreateUser(t, store, "alice")
	bob := CreateUser(t, store, "bob")

	names := []string{"Rock Classics", "Chill", "rock ballads", "Jazz", "100% Hits"}
	for _, name := range names {
		require.NoError(t, playlists.Create(ctx, &db.Playlist{UserID: alice.ID, Name: name}))
	}
	require.NoError(t, playlists.Create(ctx, &db.Playlist{UserID: bob.ID, Name: "Rock Bob"}))

	page, total, err := playlists.List(ctx, db.ListParams{UserID: alice.ID, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "100% Hits", page[0].Name, "newest first")
	assert.Equal(t, "Jazz", page[1].Name)

	page, _, err = playlists.List(ctx, db.ListParams{UserID: alice.ID, Offset: 4, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Rock Classics", page[0].Name)

	page, total, err = playlists.List(ctx, db.ListParams{UserID: alice.ID, Search: "ROCK", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 2)
	assert.Equal(t, "rock ballads", page[0].Name)

	_, total, err = playlists.List(ctx, db.ListParams{UserID: alice.ID, Search: "0%", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "wildcards in the search term are literal")

	page, total, err = playlists.List(ctx, db.ListParams{UserID: alice.ID, Offset: 10, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, page)

	all, err := playlists.ListByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, all, len(names))
	for i, name := range names {
		assert.Equal(t, name, all[i].Name, "creation order")
	}
}

func testPlaylistUpdateDelete(t *testing.T, store db.Store) {
	ctx := context.Background()
	playlists := store.Playlists()
	alice := CreateUser(t, store, "alice")
	bob := CreateUser(t, store, "bob")

	p := &db.Playlist{UserID: alice.ID, Name: "Old", Description: "desc"}
	require.NoError(t, playlists.Create(ctx, p))
	require.NoError(t, playlists.Create(ctx, &db.Playlist{UserID: alice.ID, Name: "Taken"}))
	created := p.UpdatedAt

	p.Name = "New"
	p.Description = ""
	require.NoError(t, playlists.Update(ctx, p))
	assert.False(t, p.UpdatedAt.Before(created))

	got, err := playlists.GetForUser(ctx, p.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, "", got.Description)

	p.Name = "Taken"
	assert.ErrorIs(t, playlists.Update(ctx, p), db.ErrDuplicate)

	foreign := *got
	foreign.UserID = bob.ID
	assert.ErrorIs(t, playlists.Update(ctx, &foreign), db.ErrNotFound)

	assert.ErrorIs(t, playlists.Delete(ctx, p.ID, bob.ID), db.ErrNotFound)
	require.NoError(t, playlists.Delete(ctx, p.ID, alice.ID))
	_, err = playlists.GetForUser(ctx, p.ID, alice.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.ErrorIs(t, playlists.Delete(ctx, p.ID, alice.ID), db.ErrNotFound)
}

func testPlaylistSongs(t *testing.T, store db.Store) {
	ctx := context.Background()
	playlists := store.Playlists()
	alice := CreateUser(t, store, "alice")

	songs := make([]*db.Song, 4)
	for i := range songs {
		songs[i] = CreateSong(t, store, fmt.Sprintf("Song %d", i), "Artist")
	}

	p := &db.Playlist{UserID: alice.ID, Name: "Queue", SongIDs: []string{songs[0].ID}}
	require.NoError(t, playlists.Create(ctx, p))

	require.NoError(t, playlists.AddSong(ctx, p.ID, songs[1].ID))
	require.NoError(t, playlists.AddSong(ctx, p.ID, songs[2].ID))
	require.NoError(t, playlists.AddSong(ctx, p.ID, songs[3].ID))
	assert.ErrorIs(t, playlists.AddSong(ctx, p.ID, songs[1].ID), db.ErrDuplicate)
	assert.ErrorIs(t, playlists.AddSong(ctx, "missing", songs[1].ID), db.ErrNotFound)
	assert.ErrorIs(t, playlists.AddSong(ctx, p.ID, "missing"), db.ErrNotFound)

	got, err := playlists.GetForUser(ctx, p.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{songs[0].ID, songs[1].ID, songs[2].ID, songs[3].ID}, got.SongIDs)

	require.NoError(t, playlists.RemoveSong(ctx, p.ID, songs[1].ID))
	assert.ErrorIs(t, playlists.RemoveSong(ctx, p.ID, songs[1].ID), db.ErrNotFound)

	got, err = playlists.GetForUser(ctx, p.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{songs[0].ID, songs[2].ID, songs[3].ID}, got.SongIDs)

	// a removed song can come back, at the end
	require.NoError(t, playlists.AddSong(ctx, p.ID, songs[1].ID))
	got, err = playlists.GetForUser(ctx, p.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{songs[0].ID, songs[2].ID, songs[3].ID, songs[1].ID}, got.SongIDs)

	require.NoError(t, playlists.Delete(ctx, p.ID, alice.ID))
	_, err = store.Songs().Get(ctx, songs[0].ID)
	assert.NoError(t, err, "songs outlive the playlists that reference them")
}
