package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/justestif/listify/internal/db"
)

const songColumns = `id, title, artists, album, duration, cover, external_id, external_url, created_at, updated_at`

// SongRepository handles song database operations.
type SongRepository struct {
	conn *sql.DB
}

// Create inserts a new song.
func (r *SongRepository) Create(ctx context.Context, song *db.Song) error {
	query := `INSERT INTO songs (` + songColumns + `) VALUES (` + placeholders(10) + `)`

	artists := song.Artists
	if artists == nil {
		artists = []string{}
	}
	encoded, err := json.Marshal(artists)
	if err != nil {
		return fmt.Errorf("encoding artists: %w", err)
	}

	id := newID(song.ID)
	now := time.Now().UTC()
	_, err = r.conn.ExecContext(ctx, query,
		id,
		song.Title,
		string(encoded),
		song.Album,
		song.Duration,
		song.Cover,
		song.ExternalID,
		song.ExternalURL,
		now,
		now,
	)
	if isUnique(err) {
		return db.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("inserting song: %w", err)
	}
	song.ID = id
	song.Artists = artists
	song.CreatedAt = now
	song.UpdatedAt = now
	return nil
}

// Get retrieves a song by ID.
func (r *SongRepository) Get(ctx context.Context, id string) (*db.Song, error) {
	return r.queryOne(ctx, `SELECT `+songColumns+` FROM songs WHERE id = ?`, id)
}

// GetMany retrieves every song whose ID is in ids.
func (r *SongRepository) GetMany(ctx context.Context, ids []string) ([]db.Song, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT ` + songColumns + ` FROM songs WHERE id IN (` + placeholders(len(ids)) + `)`
	return r.queryMany(ctx, query, args...)
}

// FindByExternalID retrieves the song imported from an external catalog entry.
func (r *SongRepository) FindByExternalID(ctx context.Context, externalID string) (*db.Song, error) {
	if externalID == "" {
		return nil, db.ErrNotFound
	}
	return r.queryOne(ctx, `SELECT `+songColumns+` FROM songs WHERE external_id = ?`, externalID)
}

// FindByTitleArtists retrieves the oldest song with this exact title whose
// artists contain all of artists. Artist containment is checked in Go since
// the column holds a JSON array.
func (r *SongRepository) FindByTitleArtists(ctx context.Context, title string, artists []string) (*db.Song, error) {
	query := `SELECT ` + songColumns + ` FROM songs WHERE title = ? ORDER BY created_at, rowid`
	candidates, err := r.queryMany(ctx, query, title)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if db.ContainsArtists(candidates[i].Artists, artists) {
			return &candidates[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *SongRepository) queryOne(ctx context.Context, query string, args ...any) (*db.Song, error) {
	song, err := scanSong(r.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying song: %w", err)
	}
	return song, nil
}

func (r *SongRepository) queryMany(ctx context.Context, query string, args ...any) ([]db.Song, error) {
	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying songs: %w", err)
	}
	defer rows.Close()

	var songs []db.Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning song: %w", err)
		}
		songs = append(songs, *song)
	}
	return songs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSong(row scanner) (*db.Song, error) {
	var (
		song    db.Song
		artists string
	)
	err := row.Scan(
		&song.ID,
		&song.Title,
		&artists,
		&song.Album,
		&song.Duration,
		&song.Cover,
		&song.ExternalID,
		&song.ExternalURL,
		&song.CreatedAt,
		&song.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(artists), &song.Artists); err != nil {
		return nil, fmt.Errorf("decoding artists: %w", err)
	}
	return &song, nil
}
