// Package retry runs a single operation with bounded attempts and exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/lewisgerrard/divafitness-backend/internal/errors"
	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/metrics"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config controls one Do call.
type Config struct {
	// MaxAttempts is the total number of tries, including the first. Must be >= 1.
	MaxAttempts int
	// BaseDelay is the wait after the first failure; it doubles after each further failure.
	BaseDelay time.Duration
	// AttemptTimeout bounds a single try. Zero disables the per-attempt deadline.
	AttemptTimeout time.Duration
	// Operation names the call in logs and metrics.
	Operation string
	Sleep     SleepFunc
	Log       *zap.SugaredLogger
}

// DefaultConfig waits 1s, 2s between three attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		AttemptTimeout: 30 * time.Second,
		Operation:      "operation",
	}
}

// Result carries the value of the successful attempt and its 1-based number.
type Result[T any] struct {
	Value    T
	Attempts int
}

// Backoff returns the wait before attempt+1, i.e. BaseDelay * 2^(attempt-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return base * time.Duration(int64(1)<<uint(attempt-1))
}

// SleepContext is the default SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls op until it succeeds or MaxAttempts is reached. On exhaustion the error of the
// final attempt is returned as-is. Cancelling ctx during a backoff wait returns ctx.Err().
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (Result[T], error) {
	var zero Result[T]
	if cfg.MaxAttempts < 1 {
		return zero, appErrors.NewInvalidInput("invalid retry configuration",
			fmt.Errorf("max attempts must be at least 1, got %d", cfg.MaxAttempts))
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	name := cfg.Operation
	if name == "" {
		name = "operation"
	}
	log := logging.OrNop(cfg.Log)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		metrics.RetryAttempts.WithLabelValues(name).Inc()

		value, err := runAttempt(ctx, cfg.AttemptTimeout, op)
		if err == nil {
			if attempt > 1 {
				log.Infow("Operation succeeded after retry", "operation", name, "attempt", attempt)
			}
			return Result[T]{Value: value, Attempts: attempt}, nil
		}
		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := Backoff(cfg.BaseDelay, attempt)
		log.Warnw("Attempt failed, backing off",
			"operation", name,
			"attempt", attempt,
			"maxAttempts", cfg.MaxAttempts,
			"retryIn", delay.String(),
			"error", err)
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	metrics.RetryExhausted.WithLabelValues(name).Inc()
	log.Errorw("Operation failed on every attempt", "operation", name, "attempts", cfg.MaxAttempts, "error", lastErr)
	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}
