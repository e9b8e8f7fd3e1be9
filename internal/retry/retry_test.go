package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Policy{MaxAttempts: 3, Initial: time.Millisecond, Max: 5 * time.Millisecond}

func TestDoSucceedsAfterRetries(t *testing.T) {
	calls := 0
	var retried []int
	attempts, err := Do(context.Background(), fast, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("deadlock found")
		}
		return nil
	}, func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) })

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoExhausts(t *testing.T) {
	boom := errors.New("connection refused")
	attempts, err := Do(context.Background(), fast, func(context.Context) error { return boom }, nil)

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, boom)
	var ex *ExhaustedError
	require.ErrorAs(t, err, &ex)
	assert.Equal(t, 3, ex.Attempts)
}

func TestDoStopsOnPermanent(t *testing.T) {
	bad := errors.New("malformed payload")
	attempts, err := Do(context.Background(), fast, func(context.Context) error { return Permanent(bad) }, nil)

	assert.Equal(t, 1, attempts)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, bad)
	assert.NotErrorIs(t, err, ErrExhausted)
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := Do(ctx, fast, func(context.Context) error { return nil }, nil)
	assert.Equal(t, 0, attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := Policy{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, p.Backoff(0))
	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 16*time.Second, p.Backoff(4))
	assert.Equal(t, 30*time.Second, p.Backoff(5))
}
