package playlists

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/listify/internal/apperr"
	"github.com/justestif/listify/internal/db"
	"github.com/justestif/listify/internal/db/dbtest"
	"github.com/justestif/listify/internal/db/sqlite"
)

func newTestService(t *testing.T) (*Service, *sqlite.DB) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))
	return NewService(store, log.New(io.Discard)), store
}

func songIDs(d *Detail) []string {
	ids := make([]string, len(d.Songs))
	for i, s := range d.Songs {
		ids[i] = s.ID
	}
	return ids
}

func TestCreate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, store, "alice")
	bob := dbtest.CreateUser(t, store, "bob")
	s1 := dbtest.CreateSong(t, store, "One", "X")
	s2 := dbtest.CreateSong(t, store, "Two", "Y")

	detail, err := svc.Create(ctx, alice.ID, CreateInput{Name: "Road Trip", SongIDs: []string{s2.ID, s1.ID}})
	require.NoError(t, err)
	assert.Equal(t, "Road Trip", detail.Name)
	assert.Equal(t, "", detail.Description)
	assert.Equal(t, []string{s2.ID, s1.ID}, songIDs(detail))
	assert.Equal(t, Owner{ID: alice.ID, Name: "alice", Email: "alice@example.com"}, detail.Owner)

	_, err = svc.Create(ctx, alice.ID, CreateInput{Name: "Road Trip"})
	require.ErrorIs(t, err, apperr.ErrConflict)
	conflict, _ := apperr.As(err)
	existing, ok := conflict.Data.(*Detail)
	require.True(t, ok, "conflict carries the existing playlist")
	assert.Equal(t, detail.ID, existing.ID)

	_, err = svc.Create(ctx, bob.ID, CreateInput{Name: "Road Trip"})
	assert.NoError(t, err, "names are unique per owner only")

	tests := []struct {
		name string
		in   CreateInput
		msg  string
	}{
		{"missing name", CreateInput{}, "Playlist name is required"},
		{"blank name", CreateInput{Name: "  "}, "Playlist name is required"},
		{"unknown song", CreateInput{Name: "A", SongIDs: []string{uuid.NewString()}}, "One or more songs not found"},
		{"malformed song id", CreateInput{Name: "B", SongIDs: []string{"nope"}}, "One or more songs not found"},
		{"repeated song", CreateInput{Name: "C", SongIDs: []string{s1.ID, s1.ID}}, "Songs must not contain duplicates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, alice.ID, tt.in)
			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.EqualError(t, err, tt.msg)
		})
	}
}

// lateNameCheck hides the owner's existing playlist from the first name
// lookup, so Create runs into the store's uniqueness constraint instead.
type lateNameCheck struct {
	db.PlaylistRepository
	hidden bool
}

func (r *lateNameCheck) GetByName(ctx context.Context, userID, name string) (*db.Playlist, error) {
	if !r.hidden {
		r.hidden = true
		return nil, db.ErrNotFound
	}
	return r.PlaylistRepository.GetByName(ctx, userID, name)
}

type racingStore struct {
	*sqlite.DB
	playlists *lateNameCheck
}

func (s racingStore) Playlists() db.PlaylistRepository { return s.playlists }

func TestCreate_ConcurrentNameClash(t *testing.T) {
	_, base := newTestService(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, base, "alice")

	winner := &db.Playlist{UserID: alice.ID, Name: "Road Trip"}
	require.NoError(t, base.Playlists().Create(ctx, winner))

	store := racingStore{DB: base, playlists: &lateNameCheck{PlaylistRepository: base.Playlists()}}
	svc := NewService(store, log.New(io.Discard))

	_, err := svc.Create(ctx, alice.ID, CreateInput{Name: "Road Trip"})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.EqualError(t, err, "A playlist with this name already exists")
	conflict, _ := apperr.As(err)
	existing, ok := conflict.Data.(*Detail)
	require.True(t, ok, "conflict carries the playlist that won")
	assert.Equal(t, winner.ID, existing.ID)
}

func TestCreate_MissingOwner(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, uuid.NewString(), CreateInput{Name: "Ghost"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "User not found")

	song := dbtest.CreateSong(t, store, "One", "X")
	_, err = svc.Create(ctx, uuid.NewString(), CreateInput{Name: "Ghost", SongIDs: []string{song.ID}})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "User not found")
}

func TestList(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, store, "alice")
	bob := dbtest.CreateUser(t, store, "bob")

	for i := 1; i <= 25; i++ {
		_, err := svc.Create(ctx, alice.ID, CreateInput{Name: fmt.Sprintf("Mix %02d", i)})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, bob.ID, CreateInput{Name: "Bob's"})
	require.NoError(t, err)

	page, pagination, err := svc.List(ctx, alice.ID, ListInput{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page, 10)
	assert.Equal(t, Pagination{CurrentPage: 1, TotalPages: 3, TotalItems: 25, ItemsPerPage: 10}, pagination)
	assert.Equal(t, "Mix 25", page[0].Name)

	page, pagination, err = svc.List(ctx, alice.ID, ListInput{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page, 5)
	assert.Equal(t, 3, pagination.CurrentPage)
	assert.Equal(t, "Mix 01", page[4].Name)

	page, pagination, err = svc.List(ctx, alice.ID, ListInput{Search: "mix 1"})
	require.NoError(t, err)
	assert.Equal(t, 10, pagination.TotalItems)
	assert.Len(t, page, 10)

	_, pagination, err = svc.List(ctx, alice.ID, ListInput{Page: -4, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, pagination.CurrentPage)
	assert.Equal(t, MaxLimit, pagination.ItemsPerPage)
	assert.Equal(t, 1, pagination.TotalPages)

	page, pagination, err = svc.List(ctx, uuid.NewString(), ListInput{})
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, Pagination{CurrentPage: 1, TotalPages: 0, TotalItems: 0, ItemsPerPage: 10}, pagination)
}

func TestGet_OwnershipScoped(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, store, "alice")
	bob := dbtest.CreateUser(t, store, "bob")

	detail, err := svc.Create(ctx, alice.ID, CreateInput{Name: "Private"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob.ID, detail.ID)
	notOwned := err
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Get(ctx, bob.ID, uuid.NewString())
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, notOwned.Error(), err.Error(), "foreign and missing playlists look the same")

	_, err = svc.Get(ctx, alice.ID, "not-an-id")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, store, "alice")
	bob := dbtest.CreateUser(t, store, "bob")

	p, err := svc.Create(ctx, alice.ID, CreateInput{Name: "Old", Description: "keep me"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice.ID, CreateInput{Name: "Taken"})
	require.NoError(t, err)

	got, err := svc.Update(ctx, alice.ID, p.ID, UpdateInput{Name: Set("New")})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, "keep me", got.Description, "absent fields are untouched")

	got, err = svc.Update(ctx, alice.ID, p.ID, UpdateInput{Description: Set("")})
	require.NoError(t, err)
	assert.Equal(t, "", got.Description)
	assert.Equal(t, "New", got.Name)

	_, err = svc.Update(ctx, alice.ID, p.ID, UpdateInput{Description: Set("back")})
	require.NoError(t, err)
	got, err = svc.Update(ctx, alice.ID, p.ID, UpdateInput{Description: Null[string]()})
	require.NoError(t, err)
	assert.Equal(t, "", got.Description)

	got, err = svc.Update(ctx, alice.ID, p.ID, UpdateInput{Name: Set("New")})
	require.NoError(t, err, "keeping the same name is not a conflict")
	assert.Equal(t, "New", got.Name)

	_, err = svc.Update(ctx, alice.ID, p.ID, UpdateInput{Name: Set("Taken")})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.Update(ctx, alice.ID, p.ID, UpdateInput{Name: Set("")})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Update(ctx, alice.ID, p.ID, UpdateInput{Name: Null[string]()})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Update(ctx, bob.ID, p.ID, UpdateInput{Name: Set("Stolen")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDelete(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, store, "alice")
	bob := dbtest.CreateUser(t, store, "bob")
	song := dbtest.CreateSong(t, store, "Keep", "Me")

	p, err := svc.Create(ctx, alice.ID, CreateInput{Name: "Gone", SongIDs: []string{song.ID}})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, p.ID), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, alice.ID, "bad"), apperr.ErrValidation)
	require.NoError(t, svc.Delete(ctx, alice.ID, p.ID))

	_, err = svc.Get(ctx, alice.ID, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, alice.ID, p.ID), apperr.ErrNotFound)

	_, err = store.Songs().Get(ctx, song.ID)
	assert.NoError(t, err)
}

func TestAddSong(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, store, "alice")
	bob := dbtest.CreateUser(t, store, "bob")

	first, err := svc.Create(ctx, alice.ID, CreateInput{Name: "First"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, alice.ID, CreateInput{Name: "Second"})
	require.NoError(t, err)

	in := SongInput{Title: "Hey Jude", Artists: []string{"The Beatles"}, ExternalID: "sp123", Duration: 431}
	got, err := svc.AddSong(ctx, alice.ID, first.ID, in)
	require.NoError(t, err)
	require.Len(t, got.Songs, 1)
	assert.Equal(t, "sp123", got.Songs[0].ExternalID)

	// same catalog id, different metadata: the stored record wins
	in.Title = "Hey Jude (Remastered)"
	got2, err := svc.AddSong(ctx, alice.ID, second.ID, in)
	require.NoError(t, err)
	require.Len(t, got2.Songs, 1)
	assert.Equal(t, got.Songs[0].ID, got2.Songs[0].ID)
	assert.Equal(t, "Hey Jude", got2.Songs[0].Title)

	var count int
	require.NoError(t, store.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM songs WHERE external_id = 'sp123'`).Scan(&count))
	assert.Equal(t, 1, count)

	_, err = svc.AddSong(ctx, alice.ID, first.ID, in)
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.EqualError(t, err, "Song is already in the playlist")

	_, err = svc.AddSong(ctx, bob.ID, first.ID, SongInput{Title: "X", Artists: []string{"Y"}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	invalid := []SongInput{
		{Artists: []string{"A"}},
		{Title: "No artists"},
		{Title: "Empty artists", Artists: []string{}},
		{Title: "Blank artist", Artists: []string{" "}},
	}
	for _, in := range invalid {
		_, err := svc.AddSong(ctx, alice.ID, first.ID, in)
		require.ErrorIs(t, err, apperr.ErrValidation, in.Title)
		assert.EqualError(t, err, "Song must have title and artists array")
	}

	_, err = svc.AddSong(ctx, alice.ID, first.ID, SongInput{Title: "T", Artists: []string{"A"}, Duration: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.AddSong(ctx, alice.ID, "bad", SongInput{Title: "T", Artists: []string{"A"}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRemoveSong(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, store, "alice")

	songs := make([]*db.Song, 3)
	for i := range songs {
		songs[i] = dbtest.CreateSong(t, store, fmt.Sprintf("Song %d", i), "A")
	}
	p, err := svc.Create(ctx, alice.ID, CreateInput{
		Name:    "Ordered",
		SongIDs: []string{songs[0].ID, songs[1].ID, songs[2].ID},
	})
	require.NoError(t, err)

	got, err := svc.RemoveSong(ctx, alice.ID, p.ID, songs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{songs[0].ID, songs[2].ID}, songIDs(got))

	_, err = svc.RemoveSong(ctx, alice.ID, p.ID, songs[1].ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.EqualError(t, err, "Song not found in playlist")

	_, err = svc.RemoveSong(ctx, alice.ID, p.ID, "bad")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRoadTrip(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	alice := dbtest.CreateUser(t, store, "alice")

	p, err := svc.Create(ctx, alice.ID, CreateInput{Name: "Road Trip"})
	require.NoError(t, err)

	in := SongInput{Title: "Drive", Artists: []string{"Incubus"}, ExternalID: "sp123"}
	got, err := svc.AddSong(ctx, alice.ID, p.ID, in)
	require.NoError(t, err)
	_, err = svc.AddSong(ctx, alice.ID, p.ID, in)
	require.ErrorIs(t, err, apperr.ErrConflict)

	got, err = svc.Get(ctx, alice.ID, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Songs, 1)
	assert.Equal(t, "sp123", got.Songs[0].ExternalID)

	got, err = svc.RemoveSong(ctx, alice.ID, p.ID, got.Songs[0].ID)
	require.NoError(t, err)
	assert.Empty(t, got.Songs)
}
