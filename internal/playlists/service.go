// Package playlists owns playlist lifecycle and song membership. Every
// operation is scoped to the acting user: a playlist owned by someone else
// is reported exactly like one that does not exist.
package playlists

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/justestif/listify/internal/apperr"
	"github.com/justestif/listify/internal/db"
)

// Paging defaults and bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

var (
	errNotFound       = apperr.NotFound("Playlist not found")
	errInvalidID      = apperr.Validation("Invalid playlist ID")
	errInvalidSongID  = apperr.Validation("Invalid song ID")
	errNameRequired   = apperr.Validation("Playlist name is required")
	errNameEmpty      = apperr.Validation("Playlist name cannot be empty")
	errSongsNotFound  = apperr.Validation("One or more songs not found")
	errDuplicateSongs = apperr.Validation("Songs must not contain duplicates")
	errSongInPlaylist = apperr.Conflict("Song is already in the playlist", nil)
	errSongNotListed  = apperr.NotFound("Song not found in playlist")
	errBadDuration    = apperr.Validation("Song duration cannot be negative")
	errOwnerMissing   = apperr.NotFound("User not found")

	// ErrInvalidSong rejects song data without a title or artists list.
	ErrInvalidSong = apperr.Validation(msgSongInvalid)
)

const (
	msgNameTaken   = "A playlist with this name already exists"
	msgSongInvalid = "Song must have title and artists array"
)

// Owner is the public view of a playlist's owner.
type Owner struct {
	ID    string
	Name  string
	Email string
}

// Detail is a playlist with its owner and songs expanded, songs in playlist order.
type Detail struct {
	db.Playlist
	Owner Owner
	Songs []db.Song
}

// Pagination describes one page of a listing.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SongIDs     []string `json:"songs"`
}

// ListInput selects a page of the user's playlists. Zero values take the defaults.
type ListInput struct {
	Page   int
	Limit  int
	Search string
}

// UpdateInput carries the fields to change. Absent fields are left alone.
type UpdateInput struct {
	Name        Field[string] `json:"name"`
	Description Field[string] `json:"description"`
}

// Service implements the playlist operations.
type Service struct {
	playlists db.PlaylistRepository
	songs     db.SongRepository
	users     db.UserRepository
	resolver  *Resolver
	logger    *log.Logger
}

// NewService wires the service to store.
func NewService(store db.Store, logger *log.Logger) *Service {
	return &Service{
		playlists: store.Playlists(),
		songs:     store.Songs(),
		users:     store.Users(),
		resolver:  NewResolver(store.Songs()),
		logger:    logger,
	}
}

// Create makes a new playlist for userID.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Detail, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errNameRequired
	}

	existing, err := s.playlists.GetByName(ctx, userID, name)
	if err == nil {
		return nil, s.nameConflict(ctx, existing)
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, s.internal("create playlist", err)
	}

	if err := s.checkSongs(ctx, in.SongIDs); err != nil {
		return nil, err
	}

	playlist := &db.Playlist{
		UserID:      userID,
		Name:        name,
		Description: in.Description,
		SongIDs:     append([]string{}, in.SongIDs...),
	}
	switch err := s.playlists.Create(ctx, playlist); {
	case errors.Is(err, db.ErrDuplicate):
		// a concurrent create won
		if existing, err := s.playlists.GetByName(ctx, userID, name); err == nil {
			return nil, s.nameConflict(ctx, existing)
		}
		return nil, apperr.Conflict(msgNameTaken, nil)
	case errors.Is(err, db.ErrNotFound):
		return nil, s.missingReference(ctx, userID)
	case err != nil:
		return nil, s.internal("create playlist", err)
	}

	s.logger.Debug("playlist created", "user_id", userID, "playlist_id", playlist.ID)
	return s.expandOne(ctx, playlist)
}

// List returns a page of userID's playlists, newest first.
func (s *Service) List(ctx context.Context, userID string, in ListInput) ([]Detail, Pagination, error) {
	page, limit := in.Page, in.Limit
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	playlists, total, err := s.playlists.List(ctx, db.ListParams{
		UserID: userID,
		Search: strings.TrimSpace(in.Search),
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return nil, Pagination{}, s.internal("list playlists", err)
	}

	details, err := s.expand(ctx, playlists)
	if err != nil {
		return nil, Pagination{}, s.internal("list playlists", err)
	}

	return details, Pagination{
		CurrentPage:  page,
		TotalPages:   (total + limit - 1) / limit,
		TotalItems:   total,
		ItemsPerPage: limit,
	}, nil
}

// Get returns one of userID's playlists.
func (s *Service) Get(ctx context.Context, userID, playlistID string) (*Detail, error) {
	playlist, err := s.find(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}
	return s.expandOne(ctx, playlist)
}

// Update applies the fields present in in.
func (s *Service) Update(ctx context.Context, userID, playlistID string, in UpdateInput) (*Detail, error) {
	playlist, err := s.find(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}

	if in.Name.Present {
		name := strings.TrimSpace(in.Name.Value)
		if in.Name.Null || name == "" {
			return nil, errNameEmpty
		}
		if name != playlist.Name {
			other, err := s.playlists.GetByName(ctx, userID, name)
			if err == nil {
				return nil, s.nameConflict(ctx, other)
			}
			if !errors.Is(err, db.ErrNotFound) {
				return nil, s.internal("update playlist", err)
			}
		}
		playlist.Name = name
	}
	if in.Description.Present {
		// null clears just like ""
		playlist.Description = in.Description.Value
	}

	switch err := s.playlists.Update(ctx, playlist); {
	case errors.Is(err, db.ErrDuplicate):
		return nil, apperr.Conflict(msgNameTaken, nil)
	case errors.Is(err, db.ErrNotFound):
		return nil, errNotFound
	case err != nil:
		return nil, s.internal("update playlist", err)
	}
	return s.expandOne(ctx, playlist)
}

// Delete removes one of userID's playlists. The songs it referenced are kept.
func (s *Service) Delete(ctx context.Context, userID, playlistID string) error {
	if !validID(playlistID) {
		return errInvalidID
	}
	switch err := s.playlists.Delete(ctx, playlistID, userID); {
	case errors.Is(err, db.ErrNotFound):
		return errNotFound
	case err != nil:
		return s.internal("delete playlist", err)
	}
	return nil
}

// AddSong resolves in to a stored song and appends it to the playlist.
func (s *Service) AddSong(ctx context.Context, userID, playlistID string, in SongInput) (*Detail, error) {
	if !validID(playlistID) {
		return nil, errInvalidID
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Artists != nil {
		artists := make([]string, len(in.Artists))
		for i, artist := range in.Artists {
			artists[i] = strings.TrimSpace(artist)
		}
		in.Artists = artists
	}
	if err := apperr.Validate(in, msgSongInvalid); err != nil {
		return nil, err
	}
	if in.Duration < 0 {
		return nil, errBadDuration
	}

	playlist, err := s.find(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}

	song, err := s.resolver.Resolve(ctx, in)
	if err != nil {
		return nil, s.internal("resolve song", err)
	}
	if playlist.HasSong(song.ID) {
		return nil, errSongInPlaylist
	}

	switch err := s.playlists.AddSong(ctx, playlist.ID, song.ID); {
	case errors.Is(err, db.ErrDuplicate):
		return nil, errSongInPlaylist
	case errors.Is(err, db.ErrNotFound):
		return nil, errNotFound
	case err != nil:
		return nil, s.internal("add song", err)
	}

	s.logger.Debug("song added", "playlist_id", playlist.ID, "song_id", song.ID)
	return s.Get(ctx, userID, playlist.ID)
}

// RemoveSong takes songID out of the playlist, keeping the order of the rest.
func (s *Service) RemoveSong(ctx context.Context, userID, playlistID, songID string) (*Detail, error) {
	if !validID(playlistID) {
		return nil, errInvalidID
	}
	if !validID(songID) {
		return nil, errInvalidSongID
	}

	playlist, err := s.find(ctx, userID, playlistID)
	if err != nil {
		return nil, err
	}
	if !playlist.HasSong(songID) {
		return nil, errSongNotListed
	}

	switch err := s.playlists.RemoveSong(ctx, playlist.ID, songID); {
	case errors.Is(err, db.ErrNotFound):
		return nil, errSongNotListed
	case err != nil:
		return nil, s.internal("remove song", err)
	}
	return s.Get(ctx, userID, playlist.ID)
}

// missingReference picks the error for a create rejected over a dangling
// reference. The songs were checked beforehand, so the owner is tried first.
func (s *Service) missingReference(ctx context.Context, userID string) error {
	_, err := s.users.Get(ctx, userID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return errOwnerMissing
	case err != nil:
		return s.internal("create playlist", err)
	}
	return errSongsNotFound
}

// find is the single ownership-scoped lookup every by-id operation goes through.
func (s *Service) find(ctx context.Context, userID, playlistID string) (*db.Playlist, error) {
	if !validID(playlistID) {
		return nil, errInvalidID
	}
	playlist, err := s.playlists.GetForUser(ctx, playlistID, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, s.internal("get playlist", err)
	}
	return playlist, nil
}

func (s *Service) checkSongs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !validID(id) {
			return errSongsNotFound
		}
		if seen[id] {
			return errDuplicateSongs
		}
		seen[id] = true
	}

	songs, err := s.songs.GetMany(ctx, ids)
	if err != nil {
		return s.internal("check songs", err)
	}
	if len(songs) != len(ids) {
		return errSongsNotFound
	}
	return nil
}

func (s *Service) nameConflict(ctx context.Context, existing *db.Playlist) error {
	detail, err := s.expandOne(ctx, existing)
	if err != nil {
		return apperr.Conflict(msgNameTaken, nil)
	}
	return apperr.Conflict(msgNameTaken, detail)
}

func (s *Service) expandOne(ctx context.Context, playlist *db.Playlist) (*Detail, error) {
	details, err := s.expand(ctx, []db.Playlist{*playlist})
	if err != nil {
		return nil, s.internal("expand playlist", err)
	}
	return &details[0], nil
}

// expand loads owners and songs for playlists with one lookup per owner and
// one song query overall.
func (s *Service) expand(ctx context.Context, playlists []db.Playlist) ([]Detail, error) {
	details := make([]Detail, len(playlists))
	if len(playlists) == 0 {
		return details, nil
	}

	owners := make(map[string]Owner)
	var songIDs []string
	seen := make(map[string]bool)
	for _, p := range playlists {
		if _, ok := owners[p.UserID]; !ok {
			user, err := s.users.Get(ctx, p.UserID)
			if err != nil && !errors.Is(err, db.ErrNotFound) {
				return nil, fmt.Errorf("loading owner: %w", err)
			}
			owner := Owner{ID: p.UserID}
			if user != nil {
				owner = Owner{ID: user.ID, Name: user.Name, Email: user.Email}
			}
			owners[p.UserID] = owner
		}
		for _, id := range p.SongIDs {
			if !seen[id] {
				seen[id] = true
				songIDs = append(songIDs, id)
			}
		}
	}

	songs, err := s.songs.GetMany(ctx, songIDs)
	if err != nil {
		return nil, fmt.Errorf("loading songs: %w", err)
	}
	byID := make(map[string]db.Song, len(songs))
	for _, song := range songs {
		byID[song.ID] = song
	}

	for i, p := range playlists {
		ordered := make([]db.Song, 0, len(p.SongIDs))
		for _, id := range p.SongIDs {
			if song, ok := byID[id]; ok {
				ordered = append(ordered, song)
			}
		}
		details[i] = Detail{Playlist: p, Owner: owners[p.UserID], Songs: ordered}
	}
	return details, nil
}

func (s *Service) internal(op string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	s.logger.Error("playlist operation failed", "op", op, "err", err)
	return fmt.Errorf("%s: %w", op, err)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
