package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := min(time.Duration(1<<uint(attempt))*time.Second, 30*time.Second)
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

// Retrying wraps a Completer and retries RetryableErrors with Backoff.
type Retrying struct {
	Next  Completer
	Log   *slog.Logger
	delay func(attempt int) time.Duration
}

func NewRetrying(next Completer, log *slog.Logger) *Retrying {
	return &Retrying{Next: next, Log: log, delay: Backoff}
}

func (r *Retrying) Complete(ctx context.Context, req Request) (string, error) {
	var (
		out     string
		lastErr error
	)
	for attempt := range MaxRetries {
		out, lastErr = r.Next.Complete(ctx, req)
		if lastErr == nil || !IsRetryable(lastErr) {
			return out, lastErr
		}
		if attempt == MaxRetries-1 {
			break
		}
		r.Log.Warn("retryable llm error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(r.delay(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}
