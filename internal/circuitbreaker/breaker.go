// Package circuitbreaker guards calls to flaky upstreams. When an
// upstream keeps failing the breaker opens and calls fail fast, which
// lets the chat pipeline fall back to canned replies instead of queueing
// requests behind a dead backend.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is open. Callers treat it like
// any other upstream failure.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker trips open after a run of consecutive failures and probes the
// upstream again after a cooldown. One successful probe closes it.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// New builds a breaker. maxFailures consecutive failures open it;
// cooldown is how long it stays open before allowing a probe.
func New(name string, maxFailures int, cooldown time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, maxFailures: maxFailures, cooldown: cooldown}
}

// Execute runs fn under the breaker. While open it returns ErrOpen
// without calling fn.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// State returns the current state, promoting open to half-open when the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked(time.Now())
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked(time.Now()) != StateOpen
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.stateLocked(time.Now())
	if err == nil {
		b.failures = 0
		if prev != StateClosed {
			slog.Info("circuit breaker closed", "breaker", b.name)
		}
		b.state = StateClosed
		return
	}

	b.failures++
	if prev == StateHalfOpen || b.failures >= b.maxFailures {
		if prev != StateOpen {
			slog.Warn("circuit breaker opened",
				"breaker", b.name,
				"consecutive_failures", b.failures,
			)
		}
		b.state = StateOpen
		b.openedAt = time.Now()
	}
}

func (b *Breaker) stateLocked(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.cooldown {
		b.state = StateHalfOpen
	}
	return b.state
}
