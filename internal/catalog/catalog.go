// Package catalog searches the Spotify catalog for tracks a user can add to a playlist.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// Search limits.
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// ErrMissingCredentials is returned when the client ID or secret is not set.
var ErrMissingCredentials = errors.New("missing spotify client id or secret")

// Track is a catalog match, shaped like the body of an add-song request.
type Track struct {
	Title       string   `json:"title"`
	Artists     []string `json:"artists"`
	Album       string   `json:"album"`
	Duration    int      `json:"duration"` // seconds
	Cover       string   `json:"cover"`
	ExternalID  string   `json:"externalId"`
	ExternalURL string   `json:"externalUrl"`
}

// Searcher finds tracks by free-text query.
type Searcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]Track, error)
}

// Config holds app credentials. The URLs default to Spotify's own.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
}

// Client searches Spotify using the client-credentials flow; no user login is involved.
type Client struct {
	api *spotify.Client
}

// New creates a client. The token is fetched lazily and refreshed by oauth2.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = spotifyauth.TokenURL
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	opts := []spotify.ClientOption{spotify.WithRetry(true)}
	if cfg.BaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(cfg.BaseURL))
	}

	return &Client{api: spotify.New(creds.Client(ctx), opts...)}, nil
}

// SearchTracks returns up to limit tracks matching query.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Track{}, nil
	}
	limit = ClampLimit(limit)

	result, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("searching tracks: %w", err)
	}

	tracks := []Track{}
	if result.Tracks == nil {
		return tracks, nil
	}
	for _, t := range result.Tracks.Tracks {
		tracks = append(tracks, convertTrack(t))
	}
	return tracks, nil
}

// ClampLimit applies the default and maximum page size.
func ClampLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// convertTrack converts a Spotify FullTrack to a Track.
func convertTrack(t spotify.FullTrack) Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	// Spotify orders album images largest first
	var cover string
	if len(t.Album.Images) > 0 {
		cover = t.Album.Images[0].URL
	}

	return Track{
		Title:       t.Name,
		Artists:     artists,
		Album:       t.Album.Name,
		Duration:    int(t.Duration) / 1000,
		Cover:       cover,
		ExternalID:  t.ID.String(),
		ExternalURL: t.ExternalURLs["spotify"],
	}
}
