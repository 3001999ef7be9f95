package playlists

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/justestif/listify/internal/db"
)

// SongInput describes a song to add to a playlist. It is matched against
// existing songs before a new one is created.
type SongInput struct {
	Title       string   `json:"title" validate:"required"`
	Artists     []string `json:"artists" validate:"required,min=1,dive,required"`
	Album       string   `json:"album"`
	Duration    float64  `json:"duration"` // seconds, rounded when stored
	Cover       string   `json:"cover"`
	ExternalID  string   `json:"externalId"`
	ExternalURL string   `json:"externalUrl"`
}

// Resolver maps inbound song data onto a stored song, creating one only when
// nothing matches.
type Resolver struct {
	songs db.SongRepository
}

// NewResolver returns a resolver over songs.
func NewResolver(songs db.SongRepository) *Resolver {
	return &Resolver{songs: songs}
}

// Resolve returns the stored song for in. A match by external ID wins and
// keeps the stored fields as they are. Otherwise the oldest song with the
// same title whose artists include every inbound artist is used. A stored
// song may list extra artists and still match.
func (r *Resolver) Resolve(ctx context.Context, in SongInput) (*db.Song, error) {
	if in.ExternalID != "" {
		song, err := r.songs.FindByExternalID(ctx, in.ExternalID)
		if err == nil {
			return song, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("finding song by external id: %w", err)
		}
	}

	song, err := r.songs.FindByTitleArtists(ctx, in.Title, in.Artists)
	if err == nil {
		return song, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("finding song by title: %w", err)
	}

	song = &db.Song{
		Title:       in.Title,
		Artists:     in.Artists,
		Album:       in.Album,
		Duration:    int(math.Round(in.Duration)),
		Cover:       in.Cover,
		ExternalID:  in.ExternalID,
		ExternalURL: in.ExternalURL,
	}
	err = r.songs.Create(ctx, song)
	if errors.Is(err, db.ErrDuplicate) && in.ExternalID != "" {
		// lost a race with a concurrent import of the same catalog entry
		return r.songs.FindByExternalID(ctx, in.ExternalID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating song: %w", err)
	}
	return song, nil
}
