package collector

import (
	"context"
	"errors"
	"time"

	"github.com/newthinker/buddy/internal/core"
	"go.uber.org/zap"
)

// Retrying wraps a provider and retries failed fetches with exponential
// backoff. Missing data is final and never retried.
type Retrying struct {
	Provider
	attempts int
	delay    time.Duration
	logger   *zap.Logger
}

// WithRetry wraps p. attempts counts the first call, so 2 means retry once.
func WithRetry(p Provider, attempts int, delay time.Duration, logger *zap.Logger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{Provider: p, attempts: attempts, delay: delay, logger: logger}
}

func (r *Retrying) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*Series, error) {
	var series *Series
	err := retry(ctx, r.attempts, r.delay, func(attempt int) error {
		var err error
		series, err = r.Provider.FetchHistory(ctx, symbol, start, end)
		if err != nil && !errors.Is(err, core.ErrNoMarketData) {
			r.logger.Warn("price fetch failed",
				zap.String("provider", r.Name()),
				zap.String("symbol", symbol),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	})
	return series, err
}

// retry calls fn up to maxAttempts times, doubling the delay between calls.
func retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func(attempt int) error) error {
	var err error
	delay := baseDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil || errors.Is(err, core.ErrNoMarketData) {
			return err
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return err
}
