// Package retry re-issues model requests that failed for transient reasons,
// waiting an exponentially growing delay between attempts.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	sprenerrors "github.com/stevehiehn/spren/internal/errors"
)

// Config bounds the retry loop. MaxRetries counts retries after the first
// attempt.
type Config struct {
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// DefaultConfig is 3 retries starting at one second, capped at ten.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, InitialDelay: time.Second, MaxDelay: 10 * time.Second}
}

// Delay is the wait before retry number attempt (0-based):
// InitialDelay * 2^attempt, capped at MaxDelay.
func (c Config) Delay(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if c.MaxDelay > 0 && d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns an error that is not retryable, or
// the retries run out. The last error is returned. Waiting stops early when
// ctx is cancelled.
func Do[T any](ctx context.Context, cfg Config, logger *zap.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !sprenerrors.IsRetryable(err) || attempt >= cfg.MaxRetries {
			return zero, err
		}

		delay := cfg.Delay(attempt)
		logger.Warn("request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
}
