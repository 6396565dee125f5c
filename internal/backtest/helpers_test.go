package backtest

import (
	"context"
	"time"

	"github.com/newthinker/buddy/internal/collector"
	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/storage/archive"
	"github.com/newthinker/buddy/internal/strategy/builtin"
	"github.com/shopspring/decimal"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// bars builds weekday bars in [from, to] priced by f(i).
func bars(symbol, from, to string, f func(i int) float64) []core.OHLCV {
	var out []core.OHLCV
	i := 0
	for d := day(from); !d.After(day(to)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		c := f(i)
		out = append(out, core.OHLCV{Symbol: symbol, Interval: "1d", Open: c, High: c, Low: c, Close: c, Volume: 1000, Time: d})
		i++
	}
	return out
}

func uptrend(i int) float64 { return 100 + float64(i)*0.5 }

// countingProvider records how often history is requested.
type countingProvider struct {
	*collector.Memory
	calls int
}

func (c *countingProvider) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (*collector.Series, error) {
	c.calls++
	return c.Memory.FetchHistory(ctx, symbol, start, end)
}

func newTestEngine(mem collector.Provider, store *ArtifactStore) *Engine {
	reg, err := builtin.NewRegistry(nil)
	if err != nil {
		panic(err)
	}
	return New(mem, reg, store, nil)
}

func newLocalStore(dir string, format Format) *ArtifactStore {
	fs, err := archive.NewLocalFS(dir)
	if err != nil {
		panic(err)
	}
	return NewArtifactStore(fs, format, "results")
}

func money(n int64) decimal.Decimal { return decimal.NewFromInt(n) }
