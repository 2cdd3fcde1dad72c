package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func failing(context.Context) error { return errUpstream }
func succeeding(context.Context) error { return nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New("test", 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(ctx, failing), errUpstream)
	}
	assert.Equal(t, StateOpen, b.State())

	// Open breaker fails fast without calling fn.
	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	b := New("test", 3, time.Minute)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, failing))
	require.Error(t, b.Execute(ctx, failing))
	require.NoError(t, b.Execute(ctx, succeeding))
	require.Error(t, b.Execute(ctx, failing))
	require.Error(t, b.Execute(ctx, failing))

	assert.Equal(t, StateClosed, b.State(), "non-consecutive failures must not trip")
}

func TestBreaker_HalfOpenProbeClosesOnSuccess(t *testing.T) {
	b := New("test", 1, 10*time.Millisecond)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, failing))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbeReopensOnFailure(t *testing.T) {
	b := New("test", 2, 10*time.Millisecond)
	ctx := context.Background()

	require.Error(t, b.Execute(ctx, failing))
	require.Error(t, b.Execute(ctx, failing))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, b.State())

	// A single failed probe reopens immediately.
	require.Error(t, b.Execute(ctx, failing))
	assert.Equal(t, StateOpen, b.State())
}
