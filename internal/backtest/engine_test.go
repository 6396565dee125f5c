package backtest

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/newthinker/buddy/internal/collector"
	"github.com/newthinker/buddy/internal/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qqqRequest() Request {
	return Request{
		Ticker:   "QQQ",
		Start:    day("2022-01-01"),
		End:      day("2022-02-01"),
		Initial:  money(30_000_000),
		Monthly:  money(1_000_000),
		Strategy: "modified_monthly",
	}
}

func qqqProvider() *collector.Memory {
	mem := collector.NewMemory()
	mem.Add("QQQ", bars("QQQ", "2021-10-01", "2022-03-31", uptrend), day("1999-03-10"))
	return mem
}

func TestEngine_QQQScenario(t *testing.T) {
	engine := newTestEngine(qqqProvider(), newLocalStore(t.TempDir(), FormatCSV))

	res, err := engine.Run(context.Background(), qqqRequest())
	require.NoError(t, err)

	assert.Equal(t, "QQQ", res.Ticker)
	assert.Equal(t, "modified_monthly", res.Strategy)
	assert.Equal(t, 2, res.Contributions)
	assert.True(t, res.Invested.Equal(money(31_000_000)), "invested = %s", res.Invested)
	assert.Equal(t, day("2022-01-03"), res.MinDataDate)
	assert.Equal(t, day("2022-01-01"), res.ScheduleAnchor)

	first, last := res.Rows[0], res.Rows[len(res.Rows)-1]
	assert.Equal(t, day("2022-01-03"), first.Date)
	assert.Equal(t, day("2022-02-01"), last.Date)
	assert.True(t, first.Contribution.Equal(money(30_000_000)))
	assert.True(t, last.Contribution.Equal(money(1_000_000)))

	var deposits int
	for _, r := range res.Rows {
		if r.Contribution.IsPositive() {
			deposits++
		}
	}
	assert.Equal(t, 2, deposits)

	// Both buys at their own day's close.
	shares := money(30_000_000).Div(first.Price).Add(money(1_000_000).Div(last.Price))
	assert.True(t, last.Shares.Equal(shares))
	assert.True(t, last.Cash.IsZero())
	assert.True(t, res.Balance.Equal(shares.Mul(last.Price)))
	assert.True(t, res.Rate.Equal(ReturnRate(res.Balance, res.Invested)))
	assert.True(t, res.Rate.IsPositive())
	assert.Equal(t, core.ActionBuy, res.LastSignal)
	assert.Equal(t, "results/QQQ_modified_monthly_20220101_20220201.csv", res.ArtifactPath)
}

func TestEngine_QQQScenario_FallingJanuary(t *testing.T) {
	// Rises through 2021, then falls every day from 2022-01-03 so the fast
	// average sits below the slow one on 2022-02-01.
	points := bars("QQQ", "2021-10-01", "2022-03-31", uptrend)
	for k := range points {
		if points[k].Time.Before(day("2022-01-03")) {
			continue
		}
		c := points[k-1].Close - 1
		points[k].Open, points[k].High, points[k].Low, points[k].Close = c, c, c, c
	}
	mem := collector.NewMemory()
	mem.Add("QQQ", points, day("1999-03-10"))
	engine := newTestEngine(mem, nil)

	res, err := engine.Run(context.Background(), qqqRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Contributions)
	assert.True(t, res.Invested.Equal(money(31_000_000)), "invested = %s", res.Invested)

	first, last := res.Rows[0], res.Rows[len(res.Rows)-1]
	assert.Equal(t, day("2022-02-01"), last.Date)
	assert.Equal(t, core.ActionSell, last.Signal)
	assert.True(t, last.Contribution.Equal(money(1_000_000)))

	shares := money(30_000_000).Div(first.Price).Add(money(1_000_000).Div(last.Price))
	assert.True(t, last.Cash.IsZero(), "cash = %s", last.Cash)
	assert.True(t, last.Shares.Equal(shares))
	assert.True(t, res.Balance.Equal(shares.Mul(last.Price)))
	assert.True(t, res.Rate.IsNegative())
}

func TestEngine_Deterministic(t *testing.T) {
	mem := collector.NewMemory()
	mem.Add("WAVE", bars("WAVE", "2019-01-01", "2022-12-31", func(i int) float64 {
		return math.Round((100+20*math.Sin(float64(i)/15))*100) / 100
	}), day("2019-01-01"))
	engine := newTestEngine(mem, nil)

	req := Request{
		Ticker:   "WAVE",
		Start:    day("2020-01-01"),
		End:      day("2022-12-31"),
		Initial:  money(10_000),
		Monthly:  money(500),
		Strategy: "2",
	}

	a, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	b, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, a.Balance.Equal(b.Balance))
	assert.True(t, a.Rate.Equal(b.Rate))
	assert.True(t, a.Invested.Equal(b.Invested))
	assert.Equal(t, a.LastSignal, b.LastSignal)
	require.Equal(t, len(a.Rows), len(b.Rows))
	for i := range a.Rows {
		assert.True(t, a.Rows[i].Value.Equal(b.Rows[i].Value), "row %d", i)
		assert.Equal(t, a.Rows[i].Signal, b.Rows[i].Signal)
	}
}

func TestEngine_InvestedEqualsContributions(t *testing.T) {
	mem := collector.NewMemory()
	mem.Add("WAVE", bars("WAVE", "2019-01-01", "2022-12-31", func(i int) float64 {
		return math.Round((100+20*math.Sin(float64(i)/15))*100) / 100
	}), day("2019-01-01"))
	engine := newTestEngine(mem, nil)

	for _, strat := range []string{"1", "modified_monthly"} {
		t.Run(strat, func(t *testing.T) {
			res, err := engine.Run(context.Background(), Request{
				Ticker:   "WAVE",
				Start:    day("2020-01-01"),
				End:      day("2022-12-31"),
				Initial:  money(10_000),
				Monthly:  money(500),
				Strategy: strat,
			})
			require.NoError(t, err)

			sum := decimal.Zero
			for _, r := range res.Rows {
				sum = sum.Add(r.Contribution)
				assert.False(t, r.Cash.IsNegative())
				assert.True(t, r.Value.Equal(r.Shares.Mul(r.Price).Add(r.Cash)))
			}
			assert.True(t, res.Invested.Equal(sum))
			// 2020-01-01 initial plus 35 monthly deposits through 2022-12.
			assert.Equal(t, 36, res.Contributions)
			assert.True(t, res.Invested.Equal(money(10_000+35*500)))
		})
	}
}

func TestEngine_ModifiedMonthlyParksCash(t *testing.T) {
	// Falls until 2022-02-18, rises from 2022-02-21.
	mem := collector.NewMemory()
	mem.Add("DIP", bars("DIP", "2021-11-01", "2022-04-29", func(i int) float64 {
		if i < 80 {
			return 200 - float64(i)
		}
		return 121 + float64(i-79)*2
	}), day("2000-01-03"))
	engine := newTestEngine(mem, nil)

	req := Request{
		Ticker:   "DIP",
		Start:    day("2022-01-03"),
		End:      day("2022-04-29"),
		Initial:  money(1000),
		Monthly:  money(100),
		Strategy: "modified_monthly",
	}
	modified, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	var parkedDays int
	for _, r := range modified.Rows {
		if r.Cash.IsPositive() {
			parkedDays++
		}
	}
	assert.Positive(t, parkedDays, "SELL-day deposits stay in cash")
	assert.True(t, modified.Rows[len(modified.Rows)-1].Cash.IsZero(), "parked cash is released on BUY")
	assert.True(t, modified.Invested.Equal(money(1300)))

	req.Strategy = "1"
	basic, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	for _, r := range basic.Rows {
		assert.True(t, r.Cash.IsZero())
	}
	assert.True(t, basic.Invested.Equal(modified.Invested))
}

func TestEngine_ZeroMonthly(t *testing.T) {
	engine := newTestEngine(qqqProvider(), nil)

	req := qqqRequest()
	req.End = day("2022-03-31")
	req.Monthly = decimal.Zero

	res, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Invested.Equal(req.Initial))
	assert.Equal(t, 1, res.Contributions)
}

func TestEngine_ClampsToFirstAvailable(t *testing.T) {
	mem := collector.NewMemory()
	mem.Add("NEW", bars("NEW", "2020-06-01", "2021-06-30", uptrend), day("2020-06-01"))
	engine := newTestEngine(mem, nil)

	res, err := engine.Run(context.Background(), Request{
		Ticker:   "NEW",
		Start:    day("2015-01-01"),
		End:      day("2021-06-30"),
		Initial:  money(1000),
		Monthly:  money(100),
		Strategy: "1",
	})
	require.NoError(t, err)

	assert.Equal(t, day("2020-06-01"), res.MinDataDate)
	assert.Equal(t, day("2020-06-01"), res.Rows[0].Date)
	assert.Equal(t, day("2020-06-01"), res.ScheduleAnchor)
	// 2020-06-01 plus 2020-07-01 .. 2021-06-01
	assert.Equal(t, 13, res.Contributions)
}

func TestEngine_ValidationBeforeFetch(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Request)
		wantErr error
	}{
		{"end before start", func(r *Request) { r.End = day("2021-12-31") }, core.ErrInvalidDateRange},
		{"negative initial", func(r *Request) { r.Initial = money(-1) }, core.ErrInvalidParameters},
		{"negative monthly", func(r *Request) { r.Monthly = money(-1) }, core.ErrInvalidParameters},
		{"missing ticker", func(r *Request) { r.Ticker = "" }, core.ErrInvalidParameters},
		{"unknown strategy", func(r *Request) { r.Strategy = "martingale" }, core.ErrInvalidStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &countingProvider{Memory: qqqProvider()}
			engine := newTestEngine(provider, nil)

			req := qqqRequest()
			tt.modify(&req)

			_, err := engine.Run(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Zero(t, provider.calls)
		})
	}
}

func TestEngine_UnknownTicker(t *testing.T) {
	engine := newTestEngine(qqqProvider(), nil)

	req := qqqRequest()
	req.Ticker = "ZZZZINVALID"

	_, err := engine.Run(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrNoMarketData))
}

func TestEngine_NoPricesInRange(t *testing.T) {
	engine := newTestEngine(qqqProvider(), nil)

	req := qqqRequest()
	req.Start = day("2023-01-01")
	req.End = day("2023-02-01")

	_, err := engine.Run(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrNoMarketData))
}

func TestEngine_Canceled(t *testing.T) {
	engine := newTestEngine(qqqProvider(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx, qqqRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWarmupDays(t *testing.T) {
	assert.Equal(t, 0, warmupDays(1))
	assert.Equal(t, 38, warmupDays(20))
}
