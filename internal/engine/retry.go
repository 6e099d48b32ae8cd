package engine

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/relayworks/relay/pkg/schema"
)

// IsRetryableError classifies whether a failed execution should be retried.
// Retryable by default: network errors, timeouts, context.DeadlineExceeded.
// Non-retryable: validation errors, cancellations, typed RelayErrors with
// non-retryable codes.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Deadline exceeded is retryable (step timeout, not engine shutdown).
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Context cancelled is NOT retryable, the engine is shutting down
	// or the execution was cancelled.
	if errors.Is(err, context.Canceled) {
		return false
	}

	// RelayError checks its own code.
	var relayErr *schema.RelayError
	if errors.As(err, &relayErr) {
		return relayErr.IsRetryable()
	}

	// Network errors are retryable.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// String heuristics for common retryable patterns.
	msg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"eof",
		"temporary failure",
		"i/o timeout",
		"service unavailable",
		"bad gateway",
		"gateway timeout",
		"internal server error",
		"too many requests",
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	// Default: retryable, the attempt cap limits the damage.
	return true
}

// ComputeBackoff calculates the delay before the next retry attempt:
// base * 2^retryCount, capped at maxDelay when maxDelay > 0.
func ComputeBackoff(base time.Duration, retryCount int, maxDelay time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if retryCount < 0 {
		retryCount = 0
	}

	delay := base
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if maxDelay > 0 && delay >= maxDelay {
			return maxDelay
		}
	}

	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// NextRetryAt returns the wall-clock time of the next retry attempt.
func NextRetryAt(now time.Time, base time.Duration, retryCount int, maxDelay time.Duration) time.Time {
	return now.Add(ComputeBackoff(base, retryCount, maxDelay))
}

// WaitForBackoff sleeps for the computed backoff duration or returns early
// if the context is cancelled. Returns an error if the context was
// cancelled during the wait.
func WaitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
