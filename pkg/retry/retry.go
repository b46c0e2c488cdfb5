// pkg/retry/retry.go - retrying file system actions with exponential backoff.

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/windowsadmins/c2rscrub/pkg/logging"
)

// NonRetryableError marks errors that retrying cannot fix, such as a path
// name the file system rejects.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string { return e.Err.Error() }
func (e *NonRetryableError) Unwrap() error { return e.Err }

// Permanent wraps err so Retry stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// RetryConfig defines the configuration for retry attempts
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	Multiplier      float64
}

// Retry runs action until it succeeds, returns a NonRetryableError, the
// attempts run out or ctx is cancelled. The last error is returned wrapped.
func Retry(ctx context.Context, config RetryConfig, action func() error) error {
	if config.MaxRetries < 1 {
		config.MaxRetries = 1
	}
	interval := config.InitialInterval

	var err error
	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		err = action()
		if err == nil {
			return nil
		}

		var nonRetryable *NonRetryableError
		if errors.As(err, &nonRetryable) {
			logging.LogStructured(logging.LevelDebug,
				fmt.Sprintf("Non-retryable error encountered: %s", err.Error()),
				map[string]interface{}{
					"level":         "RETRY",
					"attempt":       attempt,
					"non_retryable": true,
				})
			return nonRetryable.Err
		}

		if attempt == config.MaxRetries {
			logging.LogStructured(logging.LevelWarn,
				fmt.Sprintf("Attempt %d/%d failed: %s. No more retries.", attempt, config.MaxRetries, err),
				map[string]interface{}{
					"level":         "RETRY",
					"attempt":       attempt,
					"max_attempts":  config.MaxRetries,
					"final_failure": true,
				})
			break
		}

		logging.LogStructured(logging.LevelDebug,
			fmt.Sprintf("Attempt %d/%d failed: %s. Retrying in %s...", attempt, config.MaxRetries, err, interval),
			map[string]interface{}{
				"level":        "RETRY",
				"attempt":      attempt,
				"max_attempts": config.MaxRetries,
				"retry_delay":  interval.String(),
			})

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, errors.Join(err, ctx.Err()))
		}
		if config.Multiplier > 0 {
			interval = time.Duration(float64(interval) * config.Multiplier)
		}
	}

	return fmt.Errorf("action failed after %d attempts: %w", config.MaxRetries, err)
}
