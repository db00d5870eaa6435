// Package startup waits for external applications that the first scheduled
// runs depend on.
package startup

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig configures the exponential backoff.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Multiplier   float64
}

// DefaultRetryConfig returns the backoff used while waiting for Plex.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 5 * time.Second,
		MaxDelay:     2 * time.Minute,
		MaxAttempts:  5,
		Multiplier:   2.0,
	}
}

// Probe is an application that can be tested for reachability.
type Probe interface {
	IsConfigured() bool
	Test(ctx context.Context) error
}

var networkIndicators = []string{
	"connection refused",
	"no such host",
	"timeout",
	"network is unreachable",
	"no route to host",
	"host is down",
	"dial tcp",
	"i/o timeout",
	"connection reset",
	"temporary failure in name resolution",
	"eof",
}

// IsNetworkError reports whether err looks like the application is not
// reachable yet, as opposed to a rejected request.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, indicator := range networkIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// WaitFor probes app until it answers, retrying only network errors.
// Unconfigured applications return immediately.
func WaitFor(ctx context.Context, name string, app Probe, cfg RetryConfig, logger zerolog.Logger) error {
	if !app.IsConfigured() {
		logger.Debug().Str("app", name).Msg("not configured, skipping startup check")
		return nil
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = app.Test(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info().Str("app", name).Int("attempt", attempt).Msg("application reachable after retry")
			}
			return nil
		}
		if !IsNetworkError(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		logger.Warn().
			Err(lastErr).
			Str("app", name).
			Int("attempt", attempt).
			Int("maxAttempts", cfg.MaxAttempts).
			Dur("nextRetryIn", delay).
			Msg("application unreachable, will retry")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = nextDelay(delay, cfg)
	}

	return lastErr
}

func nextDelay(delay time.Duration, cfg RetryConfig) time.Duration {
	next := time.Duration(float64(delay) * cfg.Multiplier)
	if cfg.MaxDelay > 0 && next > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return next
}
