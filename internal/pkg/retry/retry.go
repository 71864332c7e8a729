package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"camsync/internal/pkg/logging"

	"go.uber.org/zap"
)

// Operation represents a function that can be retried.
type Operation func() error

// permanent marks an error that must not be retried.
type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent wraps err so WithRetry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// WithRetry executes the given operation with exponential backoff.
func WithRetry(ctx context.Context, name string, op Operation, maxRetries int, baseDelay time.Duration) error {
	log := logging.L()
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			delay := time.Duration(math.Pow(2, float64(attempt-2))) * baseDelay
			log.Warn("retrying",
				zap.String("op", name),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxRetries),
				zap.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Debug("attempt failed", zap.String("op", name), zap.Int("attempt", attempt), zap.Error(err))

		var p *permanent
		if errors.As(err, &p) {
			return p.err
		}
		// Don't retry if context is cancelled or deadline exceeded
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, maxRetries, lastErr)
}
