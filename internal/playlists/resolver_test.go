package playlists

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/listify/internal/db"
	"github.com/justestif/listify/internal/db/dbtest"
)

func TestResolver(t *testing.T) {
	_, store := newTestService(t)
	ctx := context.Background()
	r := NewResolver(store.Songs())

	duet := dbtest.CreateSong(t, store, "Under Pressure", "Queen", "David Bowie")

	tests := []struct {
		name    string
		in      SongInput
		wantID  string
		created bool
	}{
		{
			name:   "subset of stored artists matches",
			in:     SongInput{Title: "Under Pressure", Artists: []string{"David Bowie"}},
			wantID: duet.ID,
		},
		{
			name:   "artist order does not matter",
			in:     SongInput{Title: "Under Pressure", Artists: []string{"David Bowie", "Queen"}},
			wantID: duet.ID,
		},
		{
			name:    "extra inbound artist creates a new song",
			in:      SongInput{Title: "Under Pressure", Artists: []string{"Queen", "Vanilla Ice"}},
			created: true,
		},
		{
			name:    "title must match exactly",
			in:      SongInput{Title: "under pressure", Artists: []string{"Queen"}},
			created: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			song, err := r.Resolve(ctx, tt.in)
			require.NoError(t, err)
			if tt.created {
				assert.NotEqual(t, duet.ID, song.ID)
				assert.Equal(t, tt.in.Artists, song.Artists)
				return
			}
			assert.Equal(t, tt.wantID, song.ID)
		})
	}
}

func TestResolver_ExternalIDFirst(t *testing.T) {
	_, store := newTestService(t)
	ctx := context.Background()
	r := NewResolver(store.Songs())

	created, err := r.Resolve(ctx, SongInput{
		Title:       "Intro",
		Artists:     []string{"The xx"},
		Album:       "xx",
		Duration:    127,
		Cover:       "https://img/xx.jpg",
		ExternalID:  "sp-intro",
		ExternalURL: "https://open.spotify.com/track/sp-intro",
	})
	require.NoError(t, err)
	assert.Equal(t, 127, created.Duration)

	again, err := r.Resolve(ctx, SongInput{Title: "Something Else", Artists: []string{"Nobody"}, ExternalID: "sp-intro"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "Intro", again.Title)

	// without an external id the title/artist rule still finds it
	byTitle, err := r.Resolve(ctx, SongInput{Title: "Intro", Artists: []string{"The xx"}})
	require.NoError(t, err)
	assert.Equal(t, created.ID, byTitle.ID)

	// a different external id with the same title/artists falls through to the title rule
	other, err := r.Resolve(ctx, SongInput{Title: "Intro", Artists: []string{"The xx"}, ExternalID: "sp-other"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, other.ID)
}

func TestResolver_Defaults(t *testing.T) {
	_, store := newTestService(t)
	r := NewResolver(store.Songs())

	song, err := r.Resolve(context.Background(), SongInput{Title: "Bare", Artists: []string{"Minimal"}})
	require.NoError(t, err)
	assert.Equal(t, "", song.Album)
	assert.Equal(t, 0, song.Duration)
	assert.Equal(t, "", song.Cover)
	assert.Equal(t, "", song.ExternalID)
	assert.Equal(t, "", song.ExternalURL)
}

// racingSongs finds nothing until Create has failed, as when another request
// stores the same catalog entry between the lookup and the insert.
type racingSongs struct {
	db.SongRepository
	stored  *db.Song
	lookups int
	creates int
}

func (r *racingSongs) FindByExternalID(_ context.Context, externalID string) (*db.Song, error) {
	r.lookups++
	if r.creates == 0 || externalID != r.stored.ExternalID {
		return nil, db.ErrNotFound
	}
	return r.stored, nil
}

func (r *racingSongs) FindByTitleArtists(context.Context, string, []string) (*db.Song, error) {
	return nil, db.ErrNotFound
}

func (r *racingSongs) Create(context.Context, *db.Song) error {
	r.creates++
	return db.ErrDuplicate
}

func TestResolver_LostCreateRace(t *testing.T) {
	songs := &racingSongs{stored: &db.Song{ID: "winner", Title: "Drive", Artists: []string{"Incubus"}, ExternalID: "sp-drive"}}
	r := NewResolver(songs)

	song, err := r.Resolve(context.Background(), SongInput{
		Title:      "Drive",
		Artists:    []string{"Incubus"},
		ExternalID: "sp-drive",
	})
	require.NoError(t, err)
	assert.Equal(t, "winner", song.ID)
	assert.Equal(t, 1, songs.creates)
	assert.Equal(t, 2, songs.lookups)
}

func TestResolver_DuplicateWithoutExternalID(t *testing.T) {
	songs := &racingSongs{stored: &db.Song{ID: "winner", ExternalID: "sp-drive"}}
	r := NewResolver(songs)

	_, err := r.Resolve(context.Background(), SongInput{Title: "Drive", Artists: []string{"Incubus"}})
	require.ErrorIs(t, err, db.ErrDuplicate)
	assert.Equal(t, 0, songs.lookups)
}

func TestResolver_RoundsDuration(t *testing.T) {
	_, store := newTestService(t)
	r := NewResolver(store.Songs())

	song, err := r.Resolve(context.Background(), SongInput{Title: "Drive", Artists: []string{"Incubus"}, Duration: 231.6})
	require.NoError(t, err)
	assert.Equal(t, 232, song.Duration)
}
