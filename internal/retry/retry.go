// Package retry provides bounded retries with configurable backoff for the
// outbound HTTP calls (WhatsApp sends, Odoo requests).
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialDelay is the delay after the first failure.
	InitialDelay time.Duration
	// MaxDelay caps the delay between attempts.
	MaxDelay time.Duration
	// Factor multiplies the delay after each failure.
	Factor float64
	// Jitter randomizes each delay within [0.5, 1.5] of its value.
	Jitter bool
}

// Linear retries a fixed number of times with a constant delay.
func Linear(maxAttempts int, delay time.Duration) Config {
	return Config{MaxAttempts: maxAttempts, InitialDelay: delay, MaxDelay: delay, Factor: 1.0}
}

// Exponential retries with doubling delays and jitter.
func Exponential(maxAttempts int, initial, max time.Duration) Config {
	return Config{MaxAttempts: maxAttempts, InitialDelay: initial, MaxDelay: max, Factor: 2.0, Jitter: true}
}

// Do runs op until it succeeds, returns a permanent error, exhausts
// MaxAttempts, or the context is canceled. It returns the last error.
func Do(ctx context.Context, config Config, op func() error) error {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.Factor <= 0 {
		config.Factor = 1.0
	}

	delay := config.InitialDelay
	var err error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err = op(); err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if attempt >= config.MaxAttempts {
			break
		}

		sleep := delay
		if config.Jitter {
			sleep = time.Duration(float64(delay) * (0.5 + rand.Float64())) // #nosec G404 -- jitter needs no crypto randomness
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay = time.Duration(float64(delay) * config.Factor)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
	return err
}

// DoWithValue is Do for operations that return a value.
func DoWithValue[T any](ctx context.Context, config Config, op func() (T, error)) (T, error) {
	var value T
	err := Do(ctx, config, func() error {
		var opErr error
		value, opErr = op()
		return opErr
	})
	return value, err
}

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do stops retrying immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}
