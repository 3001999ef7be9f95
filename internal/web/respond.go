package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/justestif/listify/internal/apperr"
	"github.com/justestif/listify/internal/db"
	"github.com/justestif/listify/internal/playlists"
)

const maxBodyBytes = 1 << 20

// envelope is the shape of every API response body.
type envelope struct {
	Success    bool                  `json:"success"`
	Message    string                `json:"message,omitempty"`
	Data       any                   `json:"data,omitempty"`
	Pagination *playlists.Pagination `json:"pagination,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// writeError maps service errors onto status codes. Anything that is not an
// *apperr.Error is logged and reported as a bare 500.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
		writeJSON(w, http.StatusInternalServerError, envelope{Message: "Internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(e, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(e, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(e, apperr.ErrAuth):
		status = http.StatusUnauthorized
	case errors.Is(e, apperr.ErrNotFound):
		status = http.StatusNotFound
	}

	h.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "reason", e.Message)

	data := e.Data
	if detail, ok := data.(*playlists.Detail); ok {
		data = newPlaylistView(detail)
	}
	writeJSON(w, status, envelope{Message: e.Message, Data: data})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := readJSON(w, r, v); err != nil {
		return bodyError(err)
	}
	return nil
}

// readJSON decodes the body and returns the decoder's own error.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(body).Decode(v)
}

func bodyError(err error) error {
	if errors.Is(err, io.EOF) {
		return apperr.Validation("Request body is required")
	}
	return apperr.Validation("Invalid JSON in request body")
}

type userView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Image     string    `json:"image"`
	Playlists any       `json:"playlists"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newUserView(u *db.User, playlists any) userView {
	return userView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Image:     u.Image,
		Playlists: playlists,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// playlistSummaryView is a playlist with song references left as IDs.
type playlistSummaryView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Songs       []string  `json:"songs"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newPlaylistSummaries(list []db.Playlist) []playlistSummaryView {
	views := make([]playlistSummaryView, len(list))
	for i, p := range list {
		views[i] = playlistSummaryView{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Songs:       p.SongIDs,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		}
	}
	return views
}

type ownerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type songView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Artists     []string  `json:"artists"`
	Album       string    `json:"album"`
	Duration    int       `json:"duration"`
	Cover       string    `json:"cover"`
	ExternalID  string    `json:"externalId"`
	ExternalURL string    `json:"externalUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type playlistView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Owner       ownerView  `json:"owner"`
	Songs       []songView `json:"songs"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func newPlaylistView(d *playlists.Detail) playlistView {
	songs := make([]songView, len(d.Songs))
	for i, s := range d.Songs {
		songs[i] = songView{
			ID:          s.ID,
			Title:       s.Title,
			Artists:     s.Artists,
			Album:       s.Album,
			Duration:    s.Duration,
			Cover:       s.Cover,
			ExternalID:  s.ExternalID,
			ExternalURL: s.ExternalURL,
			CreatedAt:   s.CreatedAt,
			UpdatedAt:   s.UpdatedAt,
		}
	}
	return playlistView{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Owner:       ownerView{ID: d.Owner.ID, Name: d.Owner.Name, Email: d.Owner.Email},
		Songs:       songs,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
