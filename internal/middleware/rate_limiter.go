package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// RateLimiter enforces per-principal rate limits on API calls.
//
// Uses a sliding window: each window tracks request counts per key, and
// expired windows are garbage-collected periodically.
type RateLimiter struct {
	mu       sync.RWMutex
	windows  map[string]*rateLimitWindow
	defaults RateLimitConfig
}

// RateLimitConfig defines the rate limiting thresholds.
type RateLimitConfig struct {
	MaxCallsPerMinute int // Default max calls per minute per principal
	BurstSize         int // Allow temporary bursts above the limit
}

type rateLimitWindow struct {
	count       atomic.Int64
	windowStart time.Time // written once at creation, read-only after
}

// NewRateLimiter creates a new rate limiter with the given defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxCallsPerMinute == 0 {
		cfg.MaxCallsPerMinute = 60
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = cfg.MaxCallsPerMinute * 2
	}

	rl := &RateLimiter{
		windows:  make(map[string]*rateLimitWindow),
		defaults: cfg,
	}

	// Start background cleanup
	go rl.cleanup()

	return rl
}

// Allow checks if a request from the given key should be allowed.
//
// Read-first pattern: only acquires the write lock when a new window must
// be created or the window has expired. The counter is atomic so the hot
// path increments under the shared read lock.
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()

	rl.mu.RLock()
	window, exists := rl.windows[key]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		count := window.count.Add(1)
		rl.mu.RUnlock()

		if count > int64(rl.defaults.BurstSize) {
			slog.Warn("rate limit exceeded (burst)", "key", key, "count", count, "limit", rl.defaults.BurstSize)
			return false
		}
		if count > int64(rl.defaults.MaxCallsPerMinute) {
			slog.Warn("rate limit exceeded", "key", key, "count", count, "limit", rl.defaults.MaxCallsPerMinute)
			return false
		}
		return true
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring the write lock
	window, exists = rl.windows[key]
	if exists && now.Sub(window.windowStart) <= time.Minute {
		return window.count.Add(1) <= int64(rl.defaults.BurstSize)
	}

	window = &rateLimitWindow{windowStart: now}
	window.count.Store(1)
	rl.windows[key] = window
	return true
}

// Middleware enforces rate limiting per resolved principal: org-level
// keys share one window, subject keys get their own. Unresolved requests
// fall back to a shared anonymous window per source IP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		if principal, ok := PrincipalFrom(r.Context()); ok {
			key = principal.OrgID + ":" + principal.SubjectID
		} else {
			key = "anon:" + ClientIP(r)
		}

		if !rl.Allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded","retry_after_seconds":60}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// cleanup periodically removes expired windows to prevent memory leaks.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, window := range rl.windows {
			if now.Sub(window.windowStart) > 2*time.Minute {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}
