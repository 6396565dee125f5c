package alpaca

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/newthinker/buddy/internal/collector"
	"github.com/newthinker/buddy/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBars struct {
	bars []marketdata.Bar
	err  error
	req  marketdata.GetBarsRequest
	sym  string
}

func (f *fakeBars) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.sym = symbol
	f.req = req
	return f.bars, f.err
}

func TestAlpaca_ImplementsProvider(t *testing.T) {
	var _ collector.Provider = (*Alpaca)(nil)
}

func TestAlpaca_InitRequiresCredentials(t *testing.T) {
	err := New().Init(collector.Config{})
	assert.True(t, errors.Is(err, core.ErrConfigMissing))

	assert.NoError(t, New().Init(collector.Config{APIKey: "k", APISecret: "s"}))
}

func TestAlpaca_FetchHistory(t *testing.T) {
	ny := newYork
	fake := &fakeBars{bars: []marketdata.Bar{
		{Timestamp: time.Date(2022, 1, 4, 0, 0, 0, 0, ny), Open: 1, High: 2, Low: 1, Close: 2, Volume: 10},
		{Timestamp: time.Date(2022, 1, 3, 0, 0, 0, 0, ny), Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 20},
	}}
	a := &Alpaca{client: fake, feed: marketdata.IEX}

	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2022, 1, 4, 0, 0, 0, 0, time.UTC)
	series, err := a.FetchHistory(context.Background(), "qqq", start, end)
	require.NoError(t, err)

	assert.Equal(t, "QQQ", fake.sym)
	assert.Equal(t, marketdata.OneDay, fake.req.TimeFrame)
	assert.Equal(t, time.Date(2022, 1, 5, 0, 0, 0, 0, time.UTC), fake.req.End)

	require.Len(t, series.Points, 2)
	assert.Equal(t, time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), series.Points[0].Time)
	assert.Equal(t, 1.5, series.Points[0].Close)
	assert.Equal(t, series.Points[0].Time, series.FirstAvailable)
}

func TestAlpaca_FetchHistory_Empty(t *testing.T) {
	a := &Alpaca{client: &fakeBars{}}
	_, err := a.FetchHistory(context.Background(), "ZZZZINVALID", time.Now().AddDate(0, -1, 0), time.Now())
	assert.True(t, errors.Is(err, core.ErrNoMarketData))
}

func TestAlpaca_FetchHistory_NonUS(t *testing.T) {
	fake := &fakeBars{}
	a := &Alpaca{client: fake}
	_, err := a.FetchHistory(context.Background(), "005930.KS", time.Now().AddDate(0, -1, 0), time.Now())
	assert.True(t, errors.Is(err, core.ErrNoMarketData))
	assert.Empty(t, fake.sym, "no request for non-US symbols")
}

func TestAlpaca_FetchHistory_Error(t *testing.T) {
	a := &Alpaca{client: &fakeBars{err: errors.New("429 too many requests")}}
	_, err := a.FetchHistory(context.Background(), "QQQ", time.Now().AddDate(0, -1, 0), time.Now())
	assert.True(t, errors.Is(err, core.ErrCollectorFailed))
}
