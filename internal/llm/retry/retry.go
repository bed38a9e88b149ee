// Package retry wraps fallible vendor calls in a deterministic exponential
// backoff. Cancellation is never retried; every other failure is retried
// until the attempt budget is spent.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
)

var errMaxAttemptsInvalid = errors.New("maxAttempts must be greater than 0")

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures Do.
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// Sleep defaults to a timer-based wait. Tests inject a recorder.
	Sleep SleepFunc

	// Logger defaults to slog.Default() tagged with component=retry.
	Logger *slog.Logger
}

// DefaultOptions returns three attempts with a 500ms base delay.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: configuration.DefaultMaxAttempts,
		BaseDelay:   configuration.DefaultBaseDelay,
	}
}

// FromConfig builds Options from the retry section of the configuration.
func FromConfig(cfg configuration.RetryConfig) Options {
	return Options{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BaseDelay}
}

// Validate rejects an empty attempt budget.
func (o Options) Validate() error {
	if o.MaxAttempts <= 0 {
		return fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, o.MaxAttempts)
	}
	return nil
}

// Delay returns the wait after the attempt with the given 0-based index.
func (o Options) Delay(attempt int) time.Duration {
	return o.BaseDelay << uint(attempt)
}

// Do calls op until it succeeds or the attempt budget is spent. After a
// failed attempt i (0-based) it waits BaseDelay*2^i; there is no wait after
// the final attempt. Cancellation, observed either on the error or on ctx,
// returns immediately as a CancellationError. Configuration errors are
// returned as-is since repeating them cannot succeed.
func Do[T any](ctx context.Context, opts Options, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := opts.Validate(); err != nil {
		return zero, err
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = timerSleep
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "retry")
	}

	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, cancelled(err)
		}

		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("request succeeded after retry", "attempt", attempt+1)
			}
			return result, nil
		}

		if llmerrors.IsCancellation(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, cancelled(ctx.Err())
		}
		if llmerrors.Classify(err) == llmerrors.ErrorTypeConfiguration {
			return zero, err
		}

		lastErr = err
		if attempt == opts.MaxAttempts-1 {
			break
		}

		backoff := opts.Delay(attempt)
		logger.Debug("retrying after backoff",
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err)

		if err := sleep(ctx, backoff); err != nil {
			return zero, cancelled(err)
		}
	}

	logger.Warn("all attempts failed", "attempts", opts.MaxAttempts, "error", lastErr)
	return zero, fmt.Errorf("after %d attempts: %w", opts.MaxAttempts, lastErr)
}

func cancelled(err error) error {
	return &llmerrors.CancellationError{Op: "generation", Err: err}
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
