package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/zmb3/spotify/v2"
)

func TestConvertTrack(t *testing.T) {
	tests := []struct {
		name     string
		track    spotify.FullTrack
		expected Track
	}{
		{
			name: "single artist with cover",
			track: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{
					ID:           "track123",
					Name:         "Test Song",
					Artists:      []spotify.SimpleArtist{{Name: "Artist One"}},
					Duration:     215000,
					ExternalURLs: map[string]string{"spotify": "https://open.spotify.com/track/track123"},
				},
				Album: spotify.SimpleAlbum{
					Name:   "Test Album",
					Images: []spotify.Image{{URL: "https://i.scdn.co/large.jpg"}, {URL: "https://i.scdn.co/small.jpg"}},
				},
			},
			expected: Track{
				Title:       "Test Song",
				Artists:     []string{"Artist One"},
				Album:       "Test Album",
				Duration:    215,
				Cover:       "https://i.scdn.co/large.jpg",
				ExternalID:  "track123",
				ExternalURL: "https://open.spotify.com/track/track123",
			},
		},
		{
			name: "multiple artists",
			track: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{
					ID:   "track456",
					Name: "Collab Track",
					Artists: []spotify.SimpleArtist{
						{Name: "Artist A"},
						{Name: "Artist B"},
						{Name: "Artist C"},
					},
				},
			},
			expected: Track{
				Title:      "Collab Track",
				Artists:    []string{"Artist A", "Artist B", "Artist C"},
				ExternalID: "track456",
			},
		},
		{
			name: "no artists",
			track: spotify.FullTrack{
				SimpleTrack: spotify.SimpleTrack{ID: "track000", Name: "Unknown"},
			},
			expected: Track{
				Title:      "Unknown",
				Artists:    []string{},
				ExternalID: "track000",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertTrack(tt.track)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("convertTrack() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLimit},
		{-3, DefaultLimit},
		{5, 5},
		{50, 50},
		{500, MaxLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("New() error = %v, want ErrMissingCredentials", err)
	}
}

func TestSearchTracks(t *testing.T) {
	var gotQuery, gotType, gotLimit, gotAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotType = r.URL.Query().Get("type")
		gotLimit = r.URL.Query().Get("limit")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"tracks": {
				"items": [{
					"id": "4uLU6hMCjMI75M1A2tKUQC",
					"name": "Drive",
					"duration_ms": 232000,
					"artists": [{"name": "Incubus"}],
					"external_urls": {"spotify": "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC"},
					"album": {"name": "Make Yourself", "images": [{"url": "https://i.scdn.co/cover.jpg", "height": 640, "width": 640}]}
				}],
				"limit": 5,
				"total": 1
			}
		}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := New(context.Background(), Config{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     server.URL + "/token",
		BaseURL:      server.URL + "/",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tracks, err := client.SearchTracks(context.Background(), "  drive incubus ", 5)
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}

	if gotQuery != "drive incubus" {
		t.Errorf("q = %q, want %q", gotQuery, "drive incubus")
	}
	if gotType != "track" {
		t.Errorf("type = %q, want %q", gotType, "track")
	}
	if gotLimit != "5" {
		t.Errorf("limit = %q, want %q", gotLimit, "5")
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}

	want := []Track{{
		Title:       "Drive",
		Artists:     []string{"Incubus"},
		Album:       "Make Yourself",
		Duration:    232,
		Cover:       "https://i.scdn.co/cover.jpg",
		ExternalID:  "4uLU6hMCjMI75M1A2tKUQC",
		ExternalURL: "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
	}}
	if !reflect.DeepEqual(tracks, want) {
		t.Errorf("SearchTracks() = %+v, want %+v", tracks, want)
	}
}

func TestSearchTracks_EmptyQuery(t *testing.T) {
	client, err := New(context.Background(), Config{ClientID: "id", ClientSecret: "secret", BaseURL: "http://127.0.0.1:1/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tracks, err := client.SearchTracks(context.Background(), "   ", 10)
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("SearchTracks() = %v, want empty", tracks)
	}
}
