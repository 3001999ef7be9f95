package db

import (
	"slices"
	"strings"
	"time"
)

// User is a registered account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Image        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Song is a catalog entry shared by every playlist that references it.
type Song struct {
	ID          string
	Title       string
	Artists     []string
	Album       string
	Duration    int
	Cover       string
	ExternalID  string // empty when the song did not come from an external catalog
	ExternalURL string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Playlist is an ordered, duplicate-free list of song references owned by one user.
type Playlist struct {
	ID          string
	UserID      string
	Name        string
	Description string
	SongIDs     []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasSong reports whether songID is already a member of the playlist.
func (p *Playlist) HasSong(songID string) bool {
	return slices.Contains(p.SongIDs, songID)
}

// ListParams scopes a playlist listing to one owner.
type ListParams struct {
	UserID string
	Search string // case-insensitive substring of the name; empty matches all
	Offset int
	Limit  int
}

// ContainsArtists reports whether stored holds every artist in wanted.
func ContainsArtists(stored, wanted []string) bool {
	for _, a := range wanted {
		if !slices.Contains(stored, a) {
			return false
		}
	}
	return true
}

// LikePattern turns a search term into a LIKE pattern matching it as a literal
// substring, escaping wildcards with a backslash.
func LikePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
