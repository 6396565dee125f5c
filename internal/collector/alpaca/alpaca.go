// Package alpaca serves US daily bars from the Alpaca market-data API.
package alpaca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/newthinker/buddy/internal/collector"
	"github.com/newthinker/buddy/internal/core"
)

// barsClient is the subset of *marketdata.Client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Alpaca implements collector.Provider on the Alpaca data API.
type Alpaca struct {
	client barsClient
	feed   marketdata.Feed
}

// New creates an Alpaca provider; call Init before fetching.
func New() *Alpaca {
	return &Alpaca{feed: marketdata.IEX}
}

func (a *Alpaca) Name() string {
	return "alpaca"
}

func (a *Alpaca) SupportedMarkets() []core.Market {
	return []core.Market{core.MarketUS}
}

func (a *Alpaca) Init(cfg collector.Config) error {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return core.Errorf(core.ErrConfigMissing, "alpaca: api key and secret are required")
	}
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}
	if feed, ok := cfg.Extra["feed"].(string); ok && feed != "" {
		a.feed = marketdata.Feed(feed)
	}
	a.client = marketdata.NewClient(opts)
	return nil
}

// FetchHistory fetches daily bars. Alpaca does not report listing dates, so
// FirstAvailable is the first bar returned.
func (a *Alpaca) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*collector.Series, error) {
	if a.client == nil {
		return nil, core.Errorf(core.ErrCollectorFailed, "alpaca: provider not initialized")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if core.DetectMarket(symbol) != core.MarketUS {
		return nil, core.Errorf(core.ErrNoMarketData, "alpaca: %s is not a US listing", symbol)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      core.Day(start),
		End:        core.Day(end).AddDate(0, 0, 1),
		Adjustment: marketdata.All,
		Feed:       a.feed,
	})
	if err != nil {
		return nil, core.WrapError(core.ErrCollectorFailed, fmt.Errorf("GetBars %s: %w", symbol, err))
	}
	if len(bars) == 0 {
		return nil, core.Errorf(core.ErrNoMarketData, "alpaca: no bars for %s", symbol)
	}

	return collector.NewSeries(symbol, toPoints(symbol, bars), time.Time{}), nil
}

func toPoints(symbol string, bars []marketdata.Bar) []core.OHLCV {
	points := make([]core.OHLCV, 0, len(bars))
	for _, b := range bars {
		if b.Close <= 0 {
			continue
		}
		points = append(points, core.OHLCV{
			Symbol:   symbol,
			Interval: "1d",
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   int64(b.Volume),
			// Daily bars are stamped at midnight New York time.
			Time: core.Day(b.Timestamp.In(newYork)),
		})
	}
	return points
}

var newYork = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}()
