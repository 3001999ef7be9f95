package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/justestif/listify/internal/db"
)

const playlistColumns = `id, user_id, name, description, created_at, updated_at`

// PlaylistRepository handles playlist database operations.
type PlaylistRepository struct {
	conn *sql.DB
}

// Create inserts a new playlist and its initial songs in one transaction.
func (r *PlaylistRepository) Create(ctx context.Context, playlist *db.Playlist) error {
	id := newID(playlist.ID)
	now := time.Now().UTC()

	err := withTx(ctx, r.conn, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO playlists (id, user_id, name, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, playlist.UserID, playlist.Name, playlist.Description, now, now)
		if err != nil {
			return err
		}
		for i, songID := range playlist.SongIDs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES (?, ?, ?)`,
				id, songID, i+1)
			if err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case isUnique(err):
		return db.ErrDuplicate
	case isForeignKey(err):
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
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ? AND user_id = ?`
	return r.queryOne(ctx, query, id, userID)
}

// GetByName retrieves the owner's playlist with exactly this name.
func (r *PlaylistRepository) GetByName(ctx context.Context, userID, name string) (*db.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE user_id = ? AND name = ?`
	return r.queryOne(ctx, query, userID, name)
}

// List returns one page of the owner's playlists, newest first.
func (r *PlaylistRepository) List(ctx context.Context, params db.ListParams) ([]db.Playlist, int, error) {
	filter := `WHERE user_id = ?`
	args := []any{params.UserID}
	if params.Search != "" {
		filter += ` AND name LIKE ? ESCAPE '\'`
		args = append(args, db.LikePattern(params.Search))
	}

	var total int
	if err := r.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlists `+filter, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting playlists: %w", err)
	}

	query := `SELECT ` + playlistColumns + ` FROM playlists ` + filter + `
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`
	args = append(args, params.Limit, params.Offset)

	playlists, err := r.queryMany(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return playlists, total, nil
}

// ListByUser returns all of the owner's playlists in creation order.
func (r *PlaylistRepository) ListByUser(ctx context.Context, userID string) ([]db.Playlist, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE user_id = ? ORDER BY created_at, rowid`
	return r.queryMany(ctx, query, userID)
}

// Update writes the playlist's name and description.
func (r *PlaylistRepository) Update(ctx context.Context, playlist *db.Playlist) error {
	query := `
		UPDATE playlists
		SET name = ?, description = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`
	now := time.Now().UTC()
	result, err := r.conn.ExecContext(ctx, query, playlist.Name, playlist.Description, now, playlist.ID, playlist.UserID)
	if isUnique(err) {
		return db.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("updating playlist: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return db.ErrNotFound
	}
	playlist.UpdatedAt = now
	return nil
}

// Delete removes a playlist owned by userID. Its song links go with it.
func (r *PlaylistRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.conn.ExecContext(ctx, `DELETE FROM playlists WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting playlist: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// AddSong appends songID to the end of the playlist.
func (r *PlaylistRepository) AddSong(ctx context.Context, id, songID string) error {
	err := withTx(ctx, r.conn, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO playlist_songs (playlist_id, song_id, position)
			SELECT ?, ?, COALESCE(MAX(position), 0) + 1
			FROM playlist_songs
			WHERE playlist_id = ?
			ON CONFLICT (playlist_id, song_id) DO NOTHING
		`, id, songID, id)
		if err != nil {
			return err
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return db.ErrDuplicate
		}
		return touch(ctx, tx, id)
	})
	switch {
	case errors.Is(err, db.ErrDuplicate), errors.Is(err, db.ErrNotFound):
		return err
	case isForeignKey(err):
		return db.ErrNotFound
	case err != nil:
		return fmt.Errorf("adding song to playlist: %w", err)
	}
	return nil
}

// RemoveSong drops songID from the playlist.
func (r *PlaylistRepository) RemoveSong(ctx context.Context, id, songID string) error {
	err := withTx(ctx, r.conn, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM playlist_songs WHERE playlist_id = ? AND song_id = ?`, id, songID)
		if err != nil {
			return err
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return db.ErrNotFound
		}
		return touch(ctx, tx, id)
	})
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("removing song from playlist: %w", err)
	}
	return err
}

func touch(ctx context.Context, tx *sql.Tx, id string) error {
	result, err := tx.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *PlaylistRepository) queryOne(ctx context.Context, query string, args ...any) (*db.Playlist, error) {
	var p db.Playlist
	err := r.conn.QueryRowContext(ctx, query, args...).Scan(
		&p.ID,
		&p.UserID,
		&p.Name,
		&p.Description,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
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
	playlists, err := r.scanPlaylists(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := r.attachSongs(ctx, playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// scanPlaylists reads every row before returning so the connection is free
// for the follow-up song query.
func (r *PlaylistRepository) scanPlaylists(ctx context.Context, query string, args ...any) ([]db.Playlist, error) {
	rows, err := r.conn.QueryContext(ctx, query, args...)
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
	return playlists, nil
}

// attachSongs fills SongIDs for every playlist in one query.
func (r *PlaylistRepository) attachSongs(ctx context.Context, playlists []db.Playlist) error {
	if len(playlists) == 0 {
		return nil
	}

	args := make([]any, len(playlists))
	index := make(map[string]int, len(playlists))
	for i, p := range playlists {
		args[i] = p.ID
		index[p.ID] = i
		playlists[i].SongIDs = []string{}
	}

	rows, err := r.conn.QueryContext(ctx, `
		SELECT playlist_id, song_id
		FROM playlist_songs
		WHERE playlist_id IN (`+placeholders(len(args))+`)
		ORDER BY playlist_id, position
	`, args...)
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
