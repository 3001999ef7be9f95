package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/justestif/listify/internal/apperr"
	"github.com/justestif/listify/internal/auth"
	"github.com/justestif/listify/internal/catalog"
	"github.com/justestif/listify/internal/playlists"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	auth      *auth.Service
	playlists *playlists.Service
	catalog   catalog.Searcher
	logger    *log.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc Services, logger *log.Logger) *Handlers {
	return &Handlers{
		auth:      svc.Auth,
		playlists: svc.Playlists,
		catalog:   svc.Catalog,
		logger:    logger,
	}
}

// Health reports that the process is up (GET /health).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"message":   "Server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// NotFound handles unknown routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, envelope{Message: "Route not found"})
}

// MethodNotAllowed handles known routes called with the wrong method.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, envelope{Message: "Method not allowed"})
}

type sessionView struct {
	User  userView `json:"user"`
	Token string   `json:"token"`
}

func newSessionView(s *auth.Session) sessionView {
	return sessionView{User: newUserView(s.User, s.PlaylistIDs), Token: s.Token}
}

// Register handles POST /api/auth/register.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.auth.Register(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "User registered successfully", newSessionView(session))
}

// Login handles POST /api/auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.auth.Login(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Login successful", newSessionView(session))
}

// Profile handles GET /api/auth/profile.
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.auth.Profile(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]any{
		"user": newUserView(profile.User, newPlaylistSummaries(profile.Playlists)),
	})
}

// CreatePlaylist handles POST /api/playlists.
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var in playlists.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	detail, err := h.playlists.Create(r.Context(), UserID(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Playlist created successfully", newPlaylistView(detail))
}

// ListPlaylists handles GET /api/playlists?page=&limit=&search=.
func (h *Handlers) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	list, pagination, err := h.playlists.List(r.Context(), UserID(r.Context()), playlists.ListInput{
		Page:   queryInt(query.Get("page")),
		Limit:  queryInt(query.Get("limit")),
		Search: query.Get("search"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	views := make([]playlistView, len(list))
	for i := range list {
		views[i] = newPlaylistView(&list[i])
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: views, Pagination: &pagination})
}

// GetPlaylist handles GET /api/playlists/{id}.
func (h *Handlers) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	detail, err := h.playlists.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", newPlaylistView(detail))
}

// UpdatePlaylist handles PUT /api/playlists/{id}.
func (h *Handlers) UpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	var in playlists.UpdateInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	detail, err := h.playlists.Update(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Playlist updated successfully", newPlaylistView(detail))
}

// DeletePlaylist handles DELETE /api/playlists/{id}.
func (h *Handlers) DeletePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := h.playlists.Delete(r.Context(), UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Playlist deleted successfully", nil)
}

// addSongRequest also accepts the spotifyId/spotifyUrl names older clients send.
type addSongRequest struct {
	playlists.SongInput
	SpotifyID  string `json:"spotifyId"`
	SpotifyURL string `json:"spotifyUrl"`
}

// songField reports whether a decode error path points into the fields that
// make up a song's identity. The path may carry embedded struct names and
// element indexes around the field name.
func songField(path string) bool {
	for _, part := range strings.Split(path, ".") {
		if part == "title" || part == "artists" {
			return true
		}
	}
	return false
}

// AddSong handles POST /api/playlists/{id}/songs.
func (h *Handlers) AddSong(w http.ResponseWriter, r *http.Request) {
	var req addSongRequest
	if err := readJSON(w, r, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && songField(typeErr.Field) {
			h.writeError(w, r, playlists.ErrInvalidSong)
			return
		}
		h.writeError(w, r, bodyError(err))
		return
	}
	in := req.SongInput
	if in.ExternalID == "" {
		in.ExternalID = req.SpotifyID
	}
	if in.ExternalURL == "" {
		in.ExternalURL = req.SpotifyURL
	}

	detail, err := h.playlists.AddSong(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Song added to playlist successfully", newPlaylistView(detail))
}

// RemoveSong handles DELETE /api/playlists/{id}/songs/{songId}.
func (h *Handlers) RemoveSong(w http.ResponseWriter, r *http.Request) {
	detail, err := h.playlists.RemoveSong(r.Context(), UserID(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "songId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Song removed from playlist successfully", newPlaylistView(detail))
}

// SearchSongs handles GET /api/songs/search?q=&limit=.
func (h *Handlers) SearchSongs(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		h.writeError(w, r, apperr.Validation("Search query is required"))
		return
	}
	tracks, err := h.catalog.SearchTracks(r.Context(), q, queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		h.logger.Error("catalog search failed", "query", q, "err", err)
		writeJSON(w, http.StatusBadGateway, envelope{Message: "Catalog search failed"})
		return
	}
	writeOK(w, http.StatusOK, "", tracks)
}

// queryInt parses an optional positive query value. Anything missing,
// malformed or below one comes back as zero, which the services read as
// "use the default".
func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0
	}
	return n
}
