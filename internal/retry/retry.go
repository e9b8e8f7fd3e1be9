// Package retry runs an operation with capped exponential backoff. The
// insert worker uses it around catalog writes and its broker reconnect loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// ErrExhausted is matched by errors.Is on the error Do returns when every
// attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy configures attempts and backoff. Zero fields take defaults.
type Policy struct {
	MaxAttempts int           // total attempts including the first; default 3
	Initial     time.Duration // wait before the second attempt; default 500ms
	Max         time.Duration // cap on any single wait; default 10s
	Multiplier  float64       // default 2
	Jitter      float64       // ±fraction of each wait, 0..1
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 3
	}
	if p.Initial <= 0 {
		p.Initial = 500 * time.Millisecond
	}
	if p.Max <= 0 {
		p.Max = 10 * time.Second
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	p.Jitter = math.Min(math.Max(p.Jitter, 0), 1)
	return p
}

// Backoff returns the wait after the given zero-based failed attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	d := float64(p.Initial) * math.Pow(p.Multiplier, float64(attempt))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	if d > float64(p.Max) {
		d = float64(p.Max)
	}
	if d < 0 {
		d = float64(p.Initial)
	}
	return time.Duration(d)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// ExhaustedError reports the last failure after the final attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error { return []error{ErrExhausted, e.Last} }

// OnRetry is called after a failed attempt, before waiting.
type OnRetry func(attempt int, err error, wait time.Duration)

// Do runs op until it succeeds, returns a permanent error, the context
// ends, or MaxAttempts is reached. It returns the number of attempts made.
// A context error is returned as is so callers can tell shutdown apart
// from exhaustion.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error, onRetry OnRetry) (int, error) {
	p = p.withDefaults()
	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		last = err
		if IsPermanent(err) {
			return attempt, err
		}
		if attempt >= p.MaxAttempts {
			return attempt, &ExhaustedError{Attempts: attempt, Last: last}
		}
		wait := p.Backoff(attempt - 1)
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return attempt, ctx.Err()
		case <-t.C:
		}
	}
}
