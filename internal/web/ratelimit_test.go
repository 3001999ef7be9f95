package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(requests int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(RateLimit{Requests: requests, Window: window})
	l.now = clock.now
	return l, clock
}

func TestRateLimiterAllow(t *testing.T) {
	// two per 16s refills one token every 8s
	l, clock := newTestLimiter(2, 16*time.Second)

	for i := 0; i < 2; i++ {
		ok, _ := l.Allow("10.0.0.1")
		require.True(t, ok, "request %d", i+1)
	}

	ok, wait := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 8*time.Second, wait)

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok, "other clients have their own bucket")

	clock.advance(8 * time.Second)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.Allow("10.0.0.1")
	assert.False(t, ok)
}

func TestRateLimiterSweep(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	l.Allow("10.0.0.1")
	clock.advance(2 * time.Minute)
	l.Allow("10.0.0.2")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.visitors, "10.0.0.1")
	assert.Contains(t, l.visitors, "10.0.0.2")
}

func TestRateLimiterDefaults(t *testing.T) {
	l := NewRateLimiter(RateLimit{})
	assert.Equal(t, DefaultRateLimit.Requests, l.burst)
	assert.Equal(t, DefaultRateLimit.Window, l.idleTTL)
}

func TestRateLimiterMiddleware(t *testing.T) {
	l, _ := newTestLimiter(1, 32*time.Second)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, send().Code)

	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "32", rec.Header().Get("Retry-After"))
	assert.JSONEq(t,
		`{"success":false,"message":"Too many requests from this IP, please try again later."}`,
		rec.Body.String())
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tt.header)
		if got := bearerToken(req); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
