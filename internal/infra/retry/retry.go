// Package retry wraps provider calls in a bounded retry loop with
// exponential backoff and jitter.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Config bounds the retry loop.
type Config struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// BaseDelay is the delay before the second attempt; it doubles per
	// attempt up to MaxDelay.
	BaseDelay time.Duration

	// MaxDelay caps the backoff.
	MaxDelay time.Duration
}

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 100 * time.Millisecond
	DefaultMaxDelay  = 2 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	return c
}

// Do runs fn until it succeeds, the attempts are exhausted, or the
// context is cancelled. It returns the last error on exhaustion.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var (
		result  T
		lastErr error
	)

	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff(cfg, attempt)); err != nil {
				return result, err
			}
		}

		result, lastErr = fn(ctx)
		if lastErr == nil {
			return result, nil
		}
	}

	return result, lastErr
}

// backoff computes the jittered delay before the given attempt.
func backoff(cfg Config, attempt int) time.Duration {
	delay := cfg.BaseDelay << (attempt - 1)
	if delay > cfg.MaxDelay || delay <= 0 {
		delay = cfg.MaxDelay
	}
	// Full jitter keeps concurrent retriers from thundering together.
	return time.Duration(rand.Int64N(int64(delay)) + 1)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
