// Package retry provides bounded exponential-backoff retry for outbound
// network calls. Only failures marked transient are retried; everything
// else propagates to the caller immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// InitialBackoff is the wait before the first retry.
	// Default: 1 second
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff growth.
	// Default: 10 seconds
	MaxBackoff time.Duration

	// Multiplier is the exponential growth factor.
	// Default: 2
	Multiplier float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}
}

// applyDefaults sets default values for unset fields.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = defaults.InitialBackoff
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = defaults.MaxBackoff
	}
	if c.Multiplier == 0 {
		c.Multiplier = defaults.Multiplier
	}
}

// transientError marks an error as eligible for retry.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so that Do will retry it. Wrapping nil returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked
// transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Do invokes op until it succeeds, fails permanently, or the attempt cap
// is reached. Each retry waits with exponential backoff, capped at
// cfg.MaxBackoff, and honors context cancellation. The final error is
// returned unwrapped of its transient marker so callers see the
// underlying failure.
func Do[T any](ctx context.Context, cfg Config, logger *zap.Logger, name string, op func(context.Context) (T, error)) (T, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	var zero T
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("operation recovered after retries",
					zap.String("operation", name),
					zap.Int("attempts", attempt))
			}
			return result, nil
		}

		lastErr = err
		if !IsTransient(err) {
			logger.Debug("operation failed permanently",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return zero, err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		logger.Info("retrying operation after transient error",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			next := time.Duration(float64(backoff) * cfg.Multiplier)
			if next > cfg.MaxBackoff {
				next = cfg.MaxBackoff
			}
			backoff = next
		}
	}

	logger.Warn("operation failed after all retries exhausted",
		zap.String("operation", name),
		zap.Int("attempts", cfg.MaxAttempts),
		zap.Error(lastErr))

	return zero, fmt.Errorf("%s failed after %d attempts: %w", name, cfg.MaxAttempts, Unmark(lastErr))
}

// Unmark strips the transient marker, returning the underlying error.
func Unmark(err error) error {
	var te *transientError
	if errors.As(err, &te) {
		return te.err
	}
	return err
}
