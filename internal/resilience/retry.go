package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig holds tuning knobs for [Retry].
type RetryConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MaxAttempts is the total number of attempts including the first.
	// Default: 3.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt; it doubles after each
	// subsequent failure. Default: 2s.
	BaseDelay time.Duration
}

// Retry runs fn up to cfg.MaxAttempts times with exponential backoff between
// attempts. The delay starts at cfg.BaseDelay and doubles after each failure.
// Waiting respects ctx; cancellation returns the context error wrapped with
// the last attempt's error.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 2 * time.Second
	}

	var lastErr error
	delay := cfg.BaseDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			slog.Warn("retrying after failure",
				"name", cfg.Name,
				"attempt", attempt,
				"max_attempts", cfg.MaxAttempts,
				"delay", delay,
				"error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("retry %s cancelled: %w (last error: %v)", cfg.Name, ctx.Err(), lastErr)
			}
			delay *= 2
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", cfg.Name, cfg.MaxAttempts, lastErr)
}

// RetryWithResult is the result-returning variant of [Retry]. It is a
// package-level function because Go does not support method-level type
// parameters.
func RetryWithResult[R any](ctx context.Context, cfg RetryConfig, fn func() (R, error)) (R, error) {
	var result R
	err := Retry(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
