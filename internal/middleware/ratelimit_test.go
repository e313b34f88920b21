package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_fixedWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(time.Minute, 2)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("a")
	assert.True(t, ok)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)

	now = now.Add(20 * time.Second)
	ok, retry := rl.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, retry)

	ok, _ = rl.Allow("b")
	assert.True(t, ok, "keys are independent")

	now = now.Add(40 * time.Second)
	ok, _ = rl.Allow("a")
	assert.True(t, ok, "a new window admits again")
}

func TestRateLimiter_sweep(t *testing.T) {
	now := time.Now()
	rl := NewRateLimiter(time.Minute, 1)
	rl.now = func() time.Time { return now }
	rl.Allow("a")
	rl.Allow("b")

	assert.Equal(t, 0, rl.Sweep())
	now = now.Add(time.Minute)
	assert.Equal(t, 2, rl.Sweep())
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(15*time.Minute, 1)
	h := RateLimitMiddleware(rl, GetIPKey)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.RemoteAddr = "10.1.1.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req.RemoteAddr = "10.1.1.1:6666"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"code":429`)
}
