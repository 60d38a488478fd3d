// Package retry wraps unreliable network calls with bounded, linearly
// backed-off retries.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"
)

// Default policy values.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 5 * time.Second
)

// Sleeper pauses the caller. Implementations must return early when ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, delay time.Duration) error
}

// Policy bounds the number of attempts and the delay between them.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Jitter adds up to BaseDelay/2 of random delay to every backoff.
	Jitter bool

	sleeper Sleeper
}

// New builds a Policy that sleeps through sleeper.
// Non-positive values fall back to the defaults.
func New(maxAttempts int, baseDelay time.Duration, jitter bool, sleeper Sleeper) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay < 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Jitter:      jitter,
		sleeper:     sleeper,
	}
}

// Backoff returns the wait before the attempt following the given (1-based) failed attempt.
func (p *Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay * time.Duration(attempt)
	if p.Jitter {
		delay += randomJitter(p.BaseDelay / 2)
	}
	return delay
}

// ShouldRetry reports whether err leaves room for another attempt.
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do runs call until it succeeds or the policy is exhausted. onFailure, when
// non-nil, is invoked after every failed attempt with its 1-based number.
// Exhaustion yields the zero value and false; Do never returns the error.
func Do[T any](
	ctx context.Context,
	p *Policy,
	call func(context.Context) (T, error),
	onFailure func(attempt int, err error),
) (T, bool) {
	var zero T
	for attempt := 1; ; attempt++ {
		result, err := call(ctx)
		if err == nil {
			return result, true
		}
		if onFailure != nil {
			onFailure(attempt, err)
		}
		if !p.ShouldRetry(err, attempt) || ctx.Err() != nil {
			return zero, false
		}
		if p.sleeper != nil {
			if serr := p.sleeper.Sleep(ctx, p.Backoff(attempt)); serr != nil {
				return zero, false
			}
		}
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
