// Package resilience guards store writes with a rate limit, a circuit
// breaker, and retries of transient failures.
package resilience

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GuardConfig configures a Guard. Zero values select defaults.
type GuardConfig struct {
	// Name labels log lines, e.g. "upsert_match".
	Name string
	// Attempts is the total number of tries per call. Default 3.
	Attempts int
	// WritesPerSec throttles calls; 0 is unlimited.
	WritesPerSec float64
	Backoff      Backoff
	Breaker      BreakerConfig
	// Retryable decides which errors are retried and count against the
	// breaker. Default IsTransient.
	Retryable func(error) bool
	Clock     clockwork.Clock
}

// Guard runs store writes under one limiter and breaker. It is safe for
// concurrent use.
type Guard struct {
	name      string
	attempts  int
	backoff   Backoff
	retryable func(error) bool
	clock     clockwork.Clock
	limiter   *rate.Limiter
	breaker   *Breaker
}

// NewGuard creates a Guard.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Retryable == nil {
		cfg.Retryable = IsTransient
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	limit, burst := rate.Inf, 1
	if cfg.WritesPerSec > 0 {
		limit = rate.Limit(cfg.WritesPerSec)
		burst = max(1, int(cfg.WritesPerSec))
	}

	name := cfg.Name
	return &Guard{
		name:      name,
		attempts:  cfg.Attempts,
		backoff:   cfg.Backoff,
		retryable: cfg.Retryable,
		clock:     cfg.Clock,
		limiter:   rate.NewLimiter(limit, burst),
		breaker: NewBreaker(cfg.Breaker, cfg.Clock, func(from, to State) {
			zap.L().Warn("resilience: breaker changed state",
				zap.String("guard", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}),
	}
}

// Breaker exposes the guard's breaker.
func (g *Guard) Breaker() *Breaker { return g.breaker }

// Do runs fn under the guard.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call runs fn under g: it waits for the limiter, checks the breaker, and
// retries retryable errors with backoff. Only retryable failures count
// against the breaker. A done context stops retries at once.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := g.limiter.Wait(ctx); err != nil {
		return zero, eris.Wrap(err, "resilience: wait for write slot")
	}
	if err := g.breaker.Allow(); err != nil {
		return zero, err
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			g.breaker.Record(false)
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			g.breaker.release()
			return zero, lastErr
		}
		if !g.retryable(err) || attempt >= g.attempts {
			break
		}

		delay := g.backoff.Delay(attempt)
		zap.L().Warn("resilience: retrying write",
			zap.String("guard", g.name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			g.breaker.release()
			return zero, lastErr
		case <-g.clock.After(delay):
		}
	}

	g.breaker.Record(g.retryable(lastErr))
	return zero, lastErr
}
