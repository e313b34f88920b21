package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/airobot/server/internal/http/respond"
)

// RateLimiter counts requests per key in fixed windows.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string]*window
	window   time.Duration
	maxReqs  int
	now      func() time.Time
}

type window struct {
	start time.Time
	count int
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(size time.Duration, maxReqs int) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string]*window),
		window:   size,
		maxReqs:  maxReqs,
		now:      time.Now,
	}
}

// Allow records a request for key. When the window is exhausted it reports
// false and how long until the window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.requests[key]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.requests[key] = &window{start: now, count: 1}
		return true, 0
	}
	if w.count >= rl.maxReqs {
		return false, w.start.Add(rl.window).Sub(now)
	}
	w.count++
	return true, 0
}

// Sweep drops expired windows and returns how many were removed.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for key, w := range rl.requests {
		if now.Sub(w.start) >= rl.window {
			delete(rl.requests, key)
			n++
		}
	}
	return n
}

// RateLimitMiddleware creates a rate limiting middleware
func RateLimitMiddleware(limiter *RateLimiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ok, retryAfter := limiter.Allow(keyFunc(r)); !ok {
				respond.TooManyRequests(w, retryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIPKey keys requests by client IP. RemoteAddr is expected to have been
// rewritten from proxy headers already.
func GetIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
