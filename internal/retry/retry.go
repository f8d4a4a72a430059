// Package retry wraps cenkalti/backoff with a bounded exponential policy and
// a caller-supplied predicate deciding which errors are worth retrying.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxRetries      = 2
	InitialBackoffInterval = 500 * time.Millisecond
	MaxBackoffInterval     = 5 * time.Second
)

// Operation is one attempt; nil means success
type Operation func() error

// ShouldRetryFunc reports whether err is transient
type ShouldRetryFunc func(error) bool

// Config sets the retry policy
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns the recommended policy
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: InitialBackoffInterval,
		MaxInterval:     MaxBackoffInterval,
	}
}

func newBackOffPolicy(ctx context.Context, cfg Config) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, cfg.MaxRetries), ctx)
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// retries or ctx is done. It returns the number of attempts made.
func Do(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetry ShouldRetryFunc) (int, error) {
	attempts := 0
	permanent := false
	var lastErr error

	wrapped := func() error {
		attempts++
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if shouldRetry != nil && shouldRetry(err) {
			return err
		}
		permanent = true
		return backoff.Permanent(err)
	}

	err := backoff.Retry(wrapped, newBackOffPolicy(ctx, cfg))
	if err == nil {
		return attempts, nil
	}

	if permanent {
		return attempts, lastErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if lastErr != nil {
			return attempts, fmt.Errorf("%s: context done after %d attempt(s): %w", operationName, attempts, errors.Join(err, lastErr))
		}
		return attempts, fmt.Errorf("%s: %w", operationName, err)
	}
	return attempts, fmt.Errorf("%s: gave up after %d attempt(s): %w", operationName, attempts, lastErr)
}
