package httpx

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// Retry policy shared by every venue client.
const (
	DefaultMaxAttempts    = 5
	DefaultBaseDelay      = 500 * time.Millisecond
	DefaultMaxDelay       = 60 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// RetryConfig tunes the backoff loop. The zero value gets the defaults.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// sleep and jitter are test seams.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(d time.Duration) time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.sleep == nil {
		c.sleep = sleepCtx
	}
	if c.jitter == nil {
		c.jitter = addJitter
	}
	return c
}

// Retry runs fn until it succeeds, returns a permanent error, or the attempt
// budget is spent. Transient and rate-limited errors back off exponentially;
// a server-advertised Retry-After wins over the computed delay, capped at
// MaxDelay either way.
func Retry(ctx context.Context, cfg RetryConfig, op string, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()
	var last error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		last = err

		var he *Error
		if !errors.As(err, &he) || !he.Retryable() {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(cfg, attempt, he.RetryAfter)
		log.Debug().
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Str("kind", he.Kind.String()).
			Msg("Retrying request")
		if serr := cfg.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return last
}

// backoffDelay picks the wait before the next attempt: the server's
// Retry-After when given, otherwise base*2^(attempt-1) with up to 25% jitter.
func backoffDelay(cfg RetryConfig, attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > cfg.MaxDelay {
			return cfg.MaxDelay
		}
		return retryAfter
	}
	delay := cfg.BaseDelay << uint(attempt-1)
	if delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	delay = cfg.jitter(delay)
	if delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}

func addJitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
