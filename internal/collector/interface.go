package collector

import (
	"context"
	"time"

	"github.com/newthinker/buddy/internal/core"
)

// Config holds collector configuration
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Timeout   time.Duration
	Extra     map[string]any
}

// Provider supplies daily price history for a ticker.
type Provider interface {
	// Metadata
	Name() string
	SupportedMarkets() []core.Market

	// Lifecycle
	Init(cfg Config) error

	// FetchHistory returns daily bars in [start, end]. An unknown ticker
	// fails with core.ErrNoMarketData.
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*Series, error)
}
