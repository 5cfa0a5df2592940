package translator

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

const (
	DefaultMaxAttempts = 6
	DefaultMinDelay    = 1 * time.Second
	DefaultMaxDelay    = 60 * time.Second
)

// RetryPolicy runs an operation up to MaxAttempts times with randomized
// exponential backoff. The delay after failed attempt n is drawn uniformly
// from [MinDelay, MinDelay*2^n], clamped to MaxDelay.
type RetryPolicy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration

	// test seams; nil means real clock and real randomness
	sleep      func(context.Context, time.Duration) error
	randInt63n func(int64) int64
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MinDelay <= 0 {
		p.MinDelay = DefaultMinDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.MaxDelay < p.MinDelay {
		p.MaxDelay = p.MinDelay
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	if p.randInt63n == nil {
		p.randInt63n = rand.Int63n
	}
	return p
}

// Do returns nil on the first successful op. onRetry (optional) fires before
// every backoff sleep. Cancellation wins over further attempts.
func (p RetryPolicy) Do(ctx context.Context, op func() error, onRetry func(attempt int, delay time.Duration, err error)) error {
	pol := p.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= pol.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == pol.MaxAttempts {
			break
		}
		delay := pol.backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, lastErr)
		}
		if err := pol.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", pol.MaxAttempts, lastErr)
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	upper := p.MinDelay << uint(attempt)
	if upper <= 0 || upper > p.MaxDelay {
		upper = p.MaxDelay
	}
	if upper <= p.MinDelay {
		return p.MinDelay
	}
	return p.MinDelay + time.Duration(p.randInt63n(int64(upper-p.MinDelay)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
