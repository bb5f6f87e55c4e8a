// Package dbretry wraps a database call with exponential backoff, falling
// back to a slower fixed interval after sustained outages. It exists so the
// corpus and payroll repositories don't each reimplement retry logic for
// UpstreamFailure (spec §7): a transient network blip is retried, a real
// outage is logged and surfaced to the caller rather than retried forever.
package dbretry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Config controls backoff behavior. MaxRetries of -1 retries indefinitely.
type Config struct {
	MaxRetries          int
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration
	BackoffFactor       float64
	LongOutageInterval  time.Duration
	LongOutageThreshold int
}

// DefaultConfig mirrors sensible defaults for a single-process read service:
// a handful of fast retries, then the error is returned. MaxRetries is below
// LongOutageThreshold, so the long-outage interval is not reached with these
// defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:          3,
		InitialBackoff:      200 * time.Millisecond,
		MaxBackoff:          5 * time.Second,
		BackoffFactor:       2.0,
		LongOutageInterval:  30 * time.Second,
		LongOutageThreshold: 10,
	}
}

// ShouldRetry reports whether err looks transient (network-level) rather
// than a permanent query error (bad SQL, constraint violation, etc).
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	switch err.Error() {
	case "EOF", "unexpected EOF", "connection reset by peer", "broken pipe", "driver: bad connection":
		return true
	}
	return false
}

// Do runs fn, retrying on transient errors with exponential backoff up to
// cfg.MaxRetries. After cfg.LongOutageThreshold consecutive failures it
// switches to polling at cfg.LongOutageInterval instead of backing off
// further, so a prolonged outage doesn't accumulate unbounded delay.
func Do(ctx context.Context, logger *slog.Logger, operation string, cfg Config, fn func() error) error {
	var lastErr error
	attempt := 0
	consecutiveFailures := 0

	for {
		if cfg.MaxRetries >= 0 && attempt > cfg.MaxRetries {
			break
		}

		if attempt > 0 {
			backoff := nextBackoff(cfg, attempt, consecutiveFailures)
			logger.Warn("retrying database operation",
				"operation", operation,
				"attempt", attempt,
				"consecutive_failures", consecutiveFailures,
				"backoff", backoff,
				"error", lastErr,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fmt.Errorf("%s: context cancelled during retry: %w", operation, ctx.Err())
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if !ShouldRetry(err) {
			return fmt.Errorf("%s: %w", operation, err)
		}

		attempt++
		consecutiveFailures++
	}

	return fmt.Errorf("%s: exhausted retries: %w", operation, lastErr)
}

func nextBackoff(cfg Config, attempt, consecutiveFailures int) time.Duration {
	if consecutiveFailures >= cfg.LongOutageThreshold {
		return cfg.LongOutageInterval
	}
	backoff := cfg.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
		if backoff >= cfg.MaxBackoff {
			return cfg.MaxBackoff
		}
	}
	return backoff
}
