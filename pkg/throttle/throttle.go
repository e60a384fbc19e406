// Package throttle provides a process-wide request limiter and a retry
// helper for upstream media APIs. The limiter enforces a minimum interval
// between outbound calls across every guild, which is deliberate global
// backpressure against upstream rate limiting.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces outbound requests at a fixed minimum interval.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a Limiter allowing one request per interval.
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until a request slot is available or the context ends.
func (l *Limiter) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return l.limiter.Wait(ctx)
}

// HTTPError is implemented by errors that carry an HTTP status code.
// Errors do not need to implement it; it only refines classification.
type HTTPError interface {
	error
	StatusCode() int
}

// FatalError wraps errors that must stop retries immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// RetryConfig configures WithRetry.
type RetryConfig struct {
	MaxAttempts  int           // attempt cap, >= 1
	InitialDelay time.Duration // first backoff delay
	MaxDelay     time.Duration // backoff ceiling
	Multiplier   float64       // backoff growth factor
}

// DefaultRetryConfig matches the upstream clients' needs: a handful of
// attempts with doubling delays.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
	}
}

// WithRetry runs fn through the limiter with exponential backoff. It stops
// on success, on a FatalError, on context cancellation, or once the attempt
// cap is exhausted, returning the last error in that case.
func WithRetry(ctx context.Context, lim *Limiter, fn func() error) error {
	return WithRetryConfig(ctx, lim, fn, DefaultRetryConfig())
}

// WithRetryConfig is WithRetry with explicit settings.
func WithRetryConfig(ctx context.Context, lim *Limiter, fn func() error, cfg RetryConfig) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2.0
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var fatal *FatalError
		if errors.As(err, &fatal) {
			return fatal.Err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		next := delay
		if IsRateLimited(err) && next < cfg.InitialDelay {
			next = cfg.InitialDelay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

// IsRateLimited reports whether err carries a 429 status.
func IsRateLimited(err error) bool {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode() == http.StatusTooManyRequests
	}
	return false
}
