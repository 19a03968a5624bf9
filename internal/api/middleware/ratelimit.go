package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pgsteward/pgsteward/internal/models"
)

// RateLimiter applies a fixed-window request limit per client IP.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	clients map[string]*clientWindow
}

type clientWindow struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter creates a rate limiter allowing limit requests per window
// per client IP.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientWindow),
	}
}

// Limit enforces the rate limit and reports the standard X-RateLimit-*
// headers on every response.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		remaining, resetAt, allowed := rl.take(ip)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
			writeError(w, http.StatusTooManyRequests, models.ErrCodeRateLimited, "Rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take consumes one request from the client's window, rolling the window
// over when it has elapsed. Expired entries are pruned opportunistically so
// the map stays bounded by the number of active clients.
func (rl *RateLimiter) take(ip string) (remaining int, resetAt time.Time, allowed bool) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	cw, ok := rl.clients[ip]
	if !ok || now.After(cw.resetAt) {
		if len(rl.clients) > 10_000 {
			for k, v := range rl.clients {
				if now.After(v.resetAt) {
					delete(rl.clients, k)
				}
			}
		}
		cw = &clientWindow{resetAt: now.Add(rl.window)}
		rl.clients[ip] = cw
	}

	if cw.count >= rl.limit {
		return 0, cw.resetAt, false
	}
	cw.count++
	return rl.limit - cw.count, cw.resetAt, true
}

// clientIP extracts the client address, relying on RealIP having already
// rewritten RemoteAddr when the service runs behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
