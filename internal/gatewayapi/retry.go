package gatewayapi

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	deperr "github.com/mrz1836/depositor/pkg/errors"
)

// Sentinel errors for retry logic.
var (
	ErrRetryable = &deperr.DepositError{
		Code:     "RETRYABLE_ERROR",
		Message:  "retryable error",
		ExitCode: deperr.ExitGeneral,
	}

	ErrRateLimited = &deperr.DepositError{
		Code:     "RATE_LIMITED",
		Message:  "rate limited by gateway",
		ExitCode: deperr.ExitGeneral,
	}
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (including initial)
	BaseDelay   time.Duration // Initial delay between retries
	MaxDelay    time.Duration // Maximum delay between retries
}

// DefaultRetryConfig returns 3 attempts with delays of roughly 500ms and 1s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// RetryWithConfig executes operation, retrying retryable failures with
// exponential backoff and jitter.
func RetryWithConfig[T any](ctx context.Context, cfg RetryConfig, operation func() (T, error)) (T, error) {
	return RetryWhen(ctx, cfg, IsRetryable, operation)
}

// RetryWhen is RetryWithConfig with a caller-chosen retry predicate.
func RetryWhen[T any](ctx context.Context, cfg RetryConfig, retryable func(error) bool, operation func() (T, error)) (T, error) {
	var result T
	var err error

	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err = operation()
		if err == nil {
			return result, nil
		}

		if !retryable(err) {
			return result, err
		}

		if attempt < cfg.MaxAttempts-1 {
			timer := time.NewTimer(calculateDelay(attempt, cfg.BaseDelay, cfg.MaxDelay))
			select {
			case <-ctx.Done():
				timer.Stop()
				return result, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return result, fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, err)
}

// calculateDelay returns a delay in [d/2, d) where d = baseDelay * 2^attempt capped at maxDelay.
func calculateDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	delay := baseDelay * (1 << attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	half := delay / 2
	if half <= 0 {
		return delay
	}
	return half + rand.N(half) //nolint:gosec // G404: Jitter does not require cryptographic randomness
}

// IsRetryable returns true if the error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRetryable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsRateLimited reports whether the gateway refused the request with a 429.
// Such a request was never processed and is safe to repeat.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// ParseRetryAfter parses a Retry-After header in seconds. Returns 0 if absent or malformed.
func ParseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// WrapRetryable marks err as retryable.
func WrapRetryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}
