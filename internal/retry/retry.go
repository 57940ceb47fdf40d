package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/phuslu/log"

	"realty-engine/internal/domain"
)

// Policy retries transient and rate-limited failures with exponential
// backoff and jitter. Every other error is returned after one attempt.
type Policy struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter is the +/- fraction applied to every backoff (0.25 = ±25%).
	Jitter float64
	// Cooldown is the minimum pause after a rate-limit signal.
	Cooldown time.Duration

	// OnRateLimit runs before the next attempt after a RateLimitError, with
	// the cooldown that applies. Typically pauses the host and renews the
	// session.
	OnRateLimit func(ctx context.Context, err error, cooldown time.Duration) error

	sleep func(ctx context.Context, d time.Duration) error
}

func Default() Policy {
	return Policy{
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.25,
		Cooldown:          30 * time.Second,
	}
}

// ExhaustedError is returned when every allowed attempt failed with a
// retryable error.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Backoff returns the delay before retry number attempt (0-based).
func (p Policy) Backoff(attempt int) time.Duration {
	mult := p.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	backoff := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= mult
		if p.MaxBackoff > 0 && backoff > float64(p.MaxBackoff) {
			break
		}
	}
	if p.MaxBackoff > 0 && backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		backoff += backoff * p.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}

// Do runs fn at most MaxRetries+1 times. ctx cancellation stops further
// attempts but never interrupts fn itself; fn owns its request deadline.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%s: %w (last error: %v)", op, err, lastErr)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		attempts++
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !domain.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxRetries {
			break
		}

		wait := p.Backoff(attempt)
		if errors.Is(lastErr, domain.ErrRateLimited) {
			cooldown := p.Cooldown
			var he *domain.HTTPError
			if errors.As(lastErr, &he) && he.RetryAfter > cooldown {
				cooldown = he.RetryAfter
			}
			if cooldown > wait {
				wait = cooldown
			}
			if p.OnRateLimit != nil {
				if err := p.OnRateLimit(ctx, lastErr, cooldown); err != nil {
					return fmt.Errorf("%s: rate-limit recovery: %w", op, err)
				}
			}
		}

		log.Debug().
			Str("op", op).
			Int("attempt", attempts).
			Int("max_attempts", p.MaxRetries+1).
			Err(lastErr).
			Dur("backoff", wait).
			Msg("retrying after backoff")

		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("%s: %w (last error: %v)", op, err, lastErr)
		}
	}

	log.Warn().
		Str("op", op).
		Int("attempts", attempts).
		Err(lastErr).
		Msg("all retry attempts exhausted")
	return &ExhaustedError{Op: op, Attempts: attempts, Err: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
