// Package db defines the persistence contract for users, songs and playlists.
//
// Backends live in subpackages (postgres, sqlite, mongo) and all satisfy [Store].
package db

import (
	"context"
	"errors"
)

// Common errors.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// Store is an open handle on a backend. It is created once at startup and closed at shutdown.
type Store interface {
	Users() UserRepository
	Playlists() PlaylistRepository
	Songs() SongRepository

	// Migrate brings the schema (or indexes) up to date.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Rollbacker is implemented by backends with versioned schema migrations.
type Rollbacker interface {
	Rollback(ctx context.Context) error
}

// UserRepository handles user persistence.
type UserRepository interface {
	// Create inserts user, assigning ID and timestamps. Returns ErrDuplicate when the email is taken.
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// PlaylistRepository handles playlist persistence. Every lookup that can act on a
// playlist is scoped by its owner so other users' playlists read as ErrNotFound.
type PlaylistRepository interface {
	// Create inserts playlist together with its initial SongIDs.
	// Returns ErrDuplicate when the owner already has a playlist with that name.
	Create(ctx context.Context, playlist *Playlist) error
	GetForUser(ctx context.Context, id, userID string) (*Playlist, error)
	GetByName(ctx context.Context, userID, name string) (*Playlist, error)
	// List returns one page of the owner's playlists, newest first, plus the total match count.
	List(ctx context.Context, params ListParams) ([]Playlist, int, error)
	// ListByUser returns all of the owner's playlists in creation order.
	ListByUser(ctx context.Context, userID string) ([]Playlist, error)
	// Update writes name and description. Returns ErrDuplicate on a name clash.
	Update(ctx context.Context, playlist *Playlist) error
	Delete(ctx context.Context, id, userID string) error
	// AddSong appends songID. Returns ErrDuplicate when it is already a member.
	AddSong(ctx context.Context, id, songID string) error
	// RemoveSong drops songID, keeping the order of the rest. Returns ErrNotFound when absent.
	RemoveSong(ctx context.Context, id, songID string) error
}

// SongRepository handles song persistence.
type SongRepository interface {
	// Create inserts song. Returns ErrDuplicate when a non-empty ExternalID is taken.
	Create(ctx context.Context, song *Song) error
	Get(ctx context.Context, id string) (*Song, error)
	// GetMany returns the songs that exist among ids, in no particular order.
	GetMany(ctx context.Context, ids []string) ([]Song, error)
	FindByExternalID(ctx context.Context, externalID string) (*Song, error)
	// FindByTitleArtists returns the oldest song with exactly this title whose
	// artists include every one of artists.
	FindByTitleArtists(ctx context.Context, title string, artists []string) (*Song, error)
}
