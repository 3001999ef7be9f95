package web

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit allows Requests per Window for each client IP.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// DefaultRateLimit is 100 requests per 15 minutes.
var DefaultRateLimit = RateLimit{Requests: 100, Window: 15 * time.Minute}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. A client may burst the
// whole allowance at once and then refills evenly across the window.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter. Non-positive values fall back to DefaultRateLimit.
func NewRateLimiter(cfg RateLimit) *RateLimiter {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		cfg = DefaultRateLimit
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(cfg.Window / time.Duration(cfg.Requests)),
		burst:    cfg.Requests,
		idleTTL:  cfg.Window,
		now:      time.Now,
	}
}

// Allow reports whether key may make a request now, and if not, how long until it may.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	res := v.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep drops visitors idle for a full window; their buckets are full again anyway.
// Runs at most once per minute.
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.idleTTL {
			delete(l.visitors, key)
		}
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := l.Allow(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, envelope{
				Message: "Too many requests from this IP, please try again later.",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's remote IP. middleware.RealIP has already
// applied any proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
