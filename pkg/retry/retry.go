// Package retry repeats an operation with capped exponential backoff.
// Used for the remote recommendation service, the rollover sweep and
// optimistic-concurrency save conflicts.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err}
}

// Permanent stops the loop even when the retry predicate would accept err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err}
}

// Option tunes a Retrier.
type Option func(*Retrier)

// WithMaxAttempts counts the first call too.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithOnRetry is called before each wait with the attempt that just failed.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// WithSleep replaces the wait between attempts. Tests use it to skip delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Retrier) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// Retrier runs an operation until it succeeds, fails permanently or runs out
// of attempts. The delay doubles from base up to ceiling, spread by jitter.
type Retrier struct {
	attempts int
	base     time.Duration
	ceiling  time.Duration
	jitter   float64
	retryIf  func(error) bool
	onRetry  func(attempt int, err error, delay time.Duration)
	sleep    func(ctx context.Context, d time.Duration) error
}

func newRetrier(attempts int, base, ceiling time.Duration, jitter float64, opts []Option) *Retrier {
	r := &Retrier{
		attempts: attempts,
		base:     base,
		ceiling:  ceiling,
		jitter:   jitter,
		sleep:    sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecommendationRetrier is short because the caller falls back to local data.
func RecommendationRetrier(opts ...Option) *Retrier {
	return newRetrier(3, 200*time.Millisecond, 2*time.Second, 0.2, opts)
}

// ConflictRetrier retries load-modify-save loops that lost a version race.
// Only errors accepted by isConflict are retried.
func ConflictRetrier(isConflict func(error) bool, opts ...Option) *Retrier {
	r := newRetrier(5, 10*time.Millisecond, 200*time.Millisecond, 0.5, opts)
	r.retryIf = isConflict
	return r
}

// DatabaseRetrier is for store calls that hit a transient failure.
func DatabaseRetrier(opts ...Option) *Retrier {
	return newRetrier(3, 50*time.Millisecond, time.Second, 0.05, opts)
}

// Do calls op until it returns nil. Errors wrapped with Retryable, or accepted
// by the retrier's predicate, are retried. Markers are stripped from the
// returned error. A cancelled context ends the loop with the last error seen.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		var retry *retryableError
		marked := errors.As(err, &retry)
		if marked {
			last = retry.err
		} else {
			last = err
		}
		if !marked && (r.retryIf == nil || !r.retryIf(err)) {
			return last
		}
		if attempt >= r.attempts {
			return last
		}

		delay := r.backoff(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, last, delay)
		}
		if r.sleep(ctx, delay) != nil {
			return last
		}
	}
}

func (r *Retrier) backoff(attempt int) time.Duration {
	d := r.base << (attempt - 1)
	if d <= 0 || d > r.ceiling {
		d = r.ceiling
	}
	if r.jitter > 0 {
		d += time.Duration(float64(d) * r.jitter * (rand.Float64()*2 - 1))
	}
	return max(d, 0)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
