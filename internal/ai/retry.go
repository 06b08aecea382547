package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

const maxBackoff = 2 * time.Minute

// RetryPolicy bounds retries of language-model calls.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration

	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)

	sleep func(ctx context.Context, d time.Duration) error
}

// calculateBackoff returns initial * 2^(attempt-1), capped at maxBackoff.
func calculateBackoff(attempt int, initial time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// WithRetry runs fn until it succeeds or the policy gives up.
//
// Rate-limited errors wait initial*2^(n-1) (or the server's Retry-After, when
// longer) and fail with ErrRetriesExhausted after MaxRetries attempts. Other
// retryable errors are retried on the same schedule and return the last
// error once the cap is hit. Anything else returns immediately.
func WithRetry[T any](ctx context.Context, p RetryPolicy, logger *slog.Logger, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	maxRetries := p.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		limited := types.IsRateLimited(err)
		if !limited && !types.IsRetryable(err) {
			return zero, err
		}
		if attempt >= maxRetries {
			if limited {
				return zero, fmt.Errorf("%w: %d attempts rate limited: %v", types.ErrRetriesExhausted, attempt, err)
			}
			return zero, err
		}

		delay := calculateBackoff(attempt, p.InitialBackoff)
		var fe *types.FetchError
		if errors.As(err, &fe) && fe.RetryAfter > delay {
			delay = fe.RetryAfter
		}
		logger.Warn("llm call failed, retrying",
			"attempt", attempt,
			"max_retries", maxRetries,
			"delay", delay,
			"rate_limited", limited,
			"error", err,
		)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
