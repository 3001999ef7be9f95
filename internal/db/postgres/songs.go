package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/listify/internal/db"
)

const songColumns = `id, title, artists, album, duration, cover, external_id, external_url, created_at, updated_at`

// SongRepository handles song database operations.
type SongRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a new song.
func (r *SongRepository) Create(ctx context.Context, song *db.Song) error {
	query := `
		INSERT INTO songs (` + songColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	artists := song.Artists
	if artists == nil {
		artists = []string{}
	}
	id := newID(song.ID)
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, query,
		id,
		song.Title,
		artists,
		song.Album,
		song.Duration,
		song.Cover,
		song.ExternalID,
		song.ExternalURL,
		now,
		now,
	)
	if isCode(err, codeUniqueViolation) {
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
	query := `SELECT ` + songColumns + ` FROM songs WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// GetMany retrieves every song whose ID is in ids.
func (r *SongRepository) GetMany(ctx context.Context, ids []string) ([]db.Song, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + songColumns + ` FROM songs WHERE id = ANY($1::text[])`
	rows, err := r.pool.Query(ctx, query, ids)
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

// FindByExternalID retrieves the song imported from an external catalog entry.
func (r *SongRepository) FindByExternalID(ctx context.Context, externalID string) (*db.Song, error) {
	if externalID == "" {
		return nil, db.ErrNotFound
	}
	query := `SELECT ` + songColumns + ` FROM songs WHERE external_id = $1`
	return r.queryOne(ctx, query, externalID)
}

// FindByTitleArtists retrieves the oldest song with this exact title whose
// artists contain all of artists.
func (r *SongRepository) FindByTitleArtists(ctx context.Context, title string, artists []string) (*db.Song, error) {
	if artists == nil {
		artists = []string{}
	}
	query := `
		SELECT ` + songColumns + `
		FROM songs
		WHERE title = $1 AND artists @> $2::text[]
		ORDER BY created_at, id
		LIMIT 1
	`
	return r.queryOne(ctx, query, title, artists)
}

func (r *SongRepository) queryOne(ctx context.Context, query string, args ...any) (*db.Song, error) {
	song, err := scanSong(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying song: %w", err)
	}
	return song, nil
}

func scanSong(row pgx.Row) (*db.Song, error) {
	var song db.Song
	err := row.Scan(
		&song.ID,
		&song.Title,
		&song.Artists,
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
	return &song, nil
}
