// Package retry provides exponential backoff retry logic with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int
	// InitialBackoff is the initial delay before retrying.
	InitialBackoff time.Duration
	// MaxBackoff is the maximum delay between retries.
	MaxBackoff time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// JitterFraction is the fraction of backoff used for jitter (0.0-1.0).
	JitterFraction float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Classifier reports whether an error is worth retrying. Callers supply a
// classifier that knows their collaborator's permanent-failure modes; nil
// uses Transient.
type Classifier func(error) bool

// Transient is the default classifier: context errors are permanent,
// everything else is retryable.
func Transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Do executes fn, retrying transient failures with exponential backoff.
// It returns the last error wrapped in *ExhaustedError once all attempts
// have failed, or the error itself if the classifier marks it permanent.
func Do(ctx context.Context, cfg Config, classify Classifier, fn func(context.Context) error) error {
	if classify == nil {
		classify = Transient
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := fn(ctx); err == nil {
			return nil
		} else {
			lastErr = err
			if !classify(err) {
				return err
			}
		}

		if attempt == cfg.MaxRetries {
			break
		}

		sleep := backoff + jitter(backoff, cfg.JitterFraction)
		if sleep > cfg.MaxBackoff {
			sleep = cfg.MaxBackoff
		}

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return &ExhaustedError{Err: lastErr, Attempts: cfg.MaxRetries + 1}
}

// jitter returns a random duration in range [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	spread := float64(d) * fraction
	return time.Duration((rand.Float64() - 0.5) * 2 * spread)
}

// ExhaustedError wraps the last error after all attempts failed.
type ExhaustedError struct {
	Err      error
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
