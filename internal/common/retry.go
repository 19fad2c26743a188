package common

import (
	"context"
	"fmt"
	"time"
)

// DefaultBackoffs is the wait schedule used between attempts of idempotent
// storage operations.
var DefaultBackoffs = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// RetryWithBackoff executes fn up to maxRetries times, sleeping backoffs[i]
// after the i-th failure. It stops early when ctx is done.
func RetryWithBackoff(ctx context.Context, backoffs []time.Duration, maxRetries int, fn func() error) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if i == maxRetries-1 || i >= len(backoffs) {
			continue
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled after %d attempts: %w", i+1, lastErr)
		case <-time.After(backoffs[i]):
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
