// Package ratelimit throttles HTTP endpoints per client address.
//
// Each endpoint gets its own [Limiter]; each limiter keeps one token bucket
// per client. A bucket holds a full minute's allowance and refills evenly, so
// a client may burst up to the per-minute limit and then continues at the
// steady rate. Buckets of clients that stay idle are dropped.
package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lingoloop/lingoloop/internal/observe"
)

// idleAfter is how long a client bucket survives without requests.
const idleAfter = 10 * time.Minute

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// Limiter allows perMinute requests per client. It is safe for concurrent
// use.
type Limiter struct {
	perMinute int
	now       func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

// New creates a Limiter. perMinute <= 0 yields a limiter that allows
// everything.
func New(perMinute int) *Limiter {
	return &Limiter{
		perMinute: perMinute,
		now:       time.Now,
		clients:   make(map[string]*client),
	}
}

// Limit returns the per-minute limit.
func (l *Limiter) Limit() int { return l.perMinute }

// Allow reports whether key may make a request now and consumes a token if so.
func (l *Limiter) Allow(key string) bool {
	if l.perMinute <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= idleAfter {
		l.sweep(now)
	}
	c, ok := l.clients[key]
	if !ok {
		c = &client{bucket: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.bucket.AllowN(now, 1)
}

// Clients returns the number of tracked clients.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) sweep(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= idleAfter {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

// Set holds one limiter per endpoint name.
type Set struct {
	limiters map[string]*Limiter
	metrics  *observe.Metrics
}

// NewSet creates a limiter for every entry of limits (endpoint → per minute).
// A nil metrics uses [observe.DefaultMetrics].
func NewSet(limits map[string]int, metrics *observe.Metrics) *Set {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	s := &Set{limiters: make(map[string]*Limiter, len(limits)), metrics: metrics}
	for endpoint, n := range limits {
		s.limiters[endpoint] = New(n)
	}
	return s
}

// Limiter returns the limiter for endpoint, or nil when the endpoint is not
// limited.
func (s *Set) Limiter(endpoint string) *Limiter {
	return s.limiters[endpoint]
}

// Wrap throttles next under the endpoint's limiter. Rejected requests get 429
// with a JSON error body.
func (s *Set) Wrap(endpoint string, next http.Handler) http.Handler {
	l := s.limiters[endpoint]
	if l == nil || l.Limit() <= 0 {
		return next
	}
	limit := strconv.Itoa(l.Limit())
	retry := strconv.Itoa(int((time.Minute / time.Duration(l.Limit())).Seconds() + 0.999))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", limit)
		if !l.Allow(ClientIP(r)) {
			s.metrics.RecordRateLimited(r.Context(), endpoint)
			observe.Logger(r.Context()).Warn("rate limit exceeded",
				"endpoint", endpoint,
				"client", ClientIP(r),
			)
			w.Header().Set("Retry-After", retry)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			if err := json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"}); err != nil {
				slog.Debug("write rate limit response", "err", err)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of r.RemoteAddr. Forwarding headers are not
// trusted.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
