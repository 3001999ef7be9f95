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

const playlistColumns = `id, user_id, name, description, created_at, updated_at`

// PlaylistRepository handles playlist database operations.
type PlaylistRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a new playlist and its initial songs in one transaction.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *db.Playlist) error {
	id := newID(playlist.ID)
	now := time.Now().UTC()

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO playlists (id, user_id, name, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, playlist.UserID, playlist.Name, playlist.Description, now, now)
		if err != nil {
			return err
		}
		if len(playlist.SongIDs) == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO playlist_songs (playlist_id, song_id, position)
			SELECT $1, s.song_id, s.position
			FROM unnest($2::text[]) WITH ORDINALITY AS s(song_id, position)
		`, id, playlist.SongIDs)
		return err
	})
	switch {
	case isCode(err, codeUniqueViolation):
		return db.ErrDuplicate
	case isCode(err, codeForeignKeyViolation):
		return db.ErrNotFound
	case err != nil:
		return fmt.Errorf("inserting playlist: %w", err)
	}

	playlist.ID = id
	playlist.CreatedAt = now
	playlist.UpdatedAt = now
	return nil
}

// GetForUser retrieves a playlist by ID if it belongs to userID.
func (r *PlaylistRepository) GetForUser(ctx context.Context, id, userID string) (*db.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = $1 AND user_id = $2`
	return r.queryOne(ctx, query, id, userID)
}

// GetByName retrieves the owner's playlist with exactly this name.
func (r *PlaylistRepository) GetByName(ctx context.Context, userID, name string) (*db.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE user_id = $1 AND name = $2`
	return r.queryOne(ctx, query, userID, name)
}

// List returns one page of the owner's playlists, newest first.
func (r *PlaylistRepository) List(ctx context.Context, params db.ListParams) ([]db.Playlist, int, error) {
	filter := `WHERE user_id = $1`
	args := []any{params.UserID}
	if params.Search != "" {
		filter += ` AND name ILIKE $2`
		args = append(args, db.LikePattern(params.Search))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM playlists `+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting playlists: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM playlists %s
		ORDER BY created_at DESC, seq DESC
		LIMIT $%d OFFSET $%d
	`, playlistColumns, filter, len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Offset)

	playlists, err := r.queryMany(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return playlists, total, nil
}

// ListByUser returns all of the owner's playlists in creation order.
func (r *PlaylistRepository) ListByUser(ctx context.Context, userID string) ([]db.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE user_id = $1 ORDER BY created_at, seq`
	return r.queryMany(ctx, query, userID)
}

// Update writes the playlist's name and description.
func (r *PlaylistRepository) Update(ctx context.Context, playlist *db.Playlist) error {
	query := `
		UPDATE playlists
		SET name = $3, description = $4, updated_at = $5
		WHERE id = $1 AND user_id = $2
	`
	now := time.Now().UTC()
	result, err := r.pool.Exec(ctx, query, playlist.ID, playlist.UserID, playlist.Name, playlist.Description, now)
	if isCode(err, codeUniqueViolation) {
		return db.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("updating playlist: %w", err)
	}
	if result.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	playlist.UpdatedAt = now
	return nil
}

// Delete removes a playlist owned by userID. Its song links go with it.
func (r *PlaylistRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM playlists WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting playlist: %w", err)
	}
	if result.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// AddSong appends songID to the end of the playlist. The playlist row is
// locked so concurrent appends take distinct positions.
func (r *PlaylistRepository) AddSong(ctx context.Context, id, songID string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked int
		err := tx.QueryRow(ctx, `SELECT 1 FROM playlists WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return db.ErrNotFound
		}
		if err != nil {
			return err
		}

		result, err := tx.Exec(ctx, `
			INSERT INTO playlist_songs (playlist_id, song_id, position)
			SELECT $1::text, $2::text, COALESCE(MAX(position), 0) + 1
			FROM playlist_songs
			WHERE playlist_id = $1::text
			ON CONFLICT (playlist_id, song_id) DO NOTHING
		`, id, songID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return db.ErrDuplicate
		}
		return touch(ctx, tx, id)
	})
	switch {
	case errors.Is(err, db.ErrDuplicate), errors.Is(err, db.ErrNotFound):
		return err
	case isCode(err, codeForeignKeyViolation):
		return db.ErrNotFound
	case err != nil:
		return fmt.Errorf("adding song to playlist: %w", err)
	}
	return nil
}

// RemoveSong drops songID from the playlist.
func (r *PlaylistRepository) RemoveSong(ctx context.Context, id, songID string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `DELETE FROM playlist_songs WHERE playlist_id = $1 AND song_id = $2`, id, songID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return db.ErrNotFound
		}
		return touch(ctx, tx, id)
	})
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("removing song from playlist: %w", err)
	}
	return err
}

func touch(ctx context.Context, tx pgx.Tx, id string) error {
	result, err := tx.Exec(ctx, `UPDATE playlists SET updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *PlaylistRepository) queryOne(ctx context.Context, query string, args ...any) (*db.Playlist, error) {
	var p db.Playlist
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying playlist: %w", err)
	}

	playlists := []db.Playlist{p}
	if err := r.attachSongs(ctx, playlists); err != nil {
		return nil, err
	}
	return &playlists[0], nil
}

func (r *PlaylistRepository) queryMany(ctx context.Context, query string, args ...any) ([]db.Playlist, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying playlists: %w", err)
	}
	defer rows.Close()

	var playlists []db.Playlist
	for rows.Next() {
		var p db.Playlist
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.Name,
			&p.Description,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating playlists: %w", err)
	}

	if err := r.attachSongs(ctx, playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// attachSongs fills SongIDs for every playlist in one query.
func (r *PlaylistRepository) attachSongs(ctx context.Context, playlists []db.Playlist) error {
	if len(playlists) == 0 {
		return nil
	}

	ids := make([]string, len(playlists))
	index := make(map[string]int, len(playlists))
	for i, p := range playlists {
		ids[i] = p.ID
		index[p.ID] = i
		playlists[i].SongIDs = []string{}
	}

	rows, err := r.pool.Query(ctx, `
		SELECT playlist_id, song_id
		FROM playlist_songs
		WHERE playlist_id = ANY($1::text[])
		ORDER BY playlist_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("querying playlist songs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var playlistID, songID string
		if err := rows.Scan(&playlistID, &songID); err != nil {
			return fmt.Errorf("scanning playlist song: %w", err)
		}
		i := index[playlistID]
		playlists[i].SongIDs = append(playlists[i].SongIDs, songID)
	}
	return rows.Err()
}
