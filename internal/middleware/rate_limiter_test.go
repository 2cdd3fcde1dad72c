package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 5, BurstSize: 10})

	allowed := 0
	for i := 0; i < 20; i++ {
		if rl.Allow("org-1:stu-1") {
			allowed++
		}
	}
	assert.Equal(t, 5, allowed, "calls past the per-minute limit are rejected")
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 2, BurstSize: 4})

	assert.True(t, rl.Allow("org-1:stu-1"))
	assert.True(t, rl.Allow("org-1:stu-1"))
	assert.False(t, rl.Allow("org-1:stu-1"))

	assert.True(t, rl.Allow("org-2:stu-9"), "a saturated key must not starve others")
}

func TestRateLimiter_ConcurrentAllow(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 50, BurstSize: 100})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if rl.Allow("org-1:stu-1") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// 200 concurrent calls against a limit of 50: the counter must not
	// lose increments, so exactly the limit gets through.
	assert.Equal(t, 50, allowed)
}

func TestRateLimiter_Middleware429(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxCallsPerMinute: 1, BurstSize: 2})
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/api/v1/chat", nil)
	r.RemoteAddr = "192.0.2.1:1234"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}
