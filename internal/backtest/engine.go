// Package backtest replays daily prices through a strategy and a
// contribution schedule to produce a portfolio trajectory.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/buddy/internal/collector"
	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/schedule"
	"github.com/newthinker/buddy/internal/strategy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine runs backtests. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	provider   collector.Provider
	strategies *strategy.Registry
	artifacts  *ArtifactStore
	logger     *zap.Logger
}

// New creates an Engine. A nil artifact store skips persistence.
func New(provider collector.Provider, strategies *strategy.Registry, artifacts *ArtifactStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		provider:   provider,
		strategies: strategies,
		artifacts:  artifacts,
		logger:     logger,
	}
}

// Strategies exposes the registry the engine resolves ids against.
func (e *Engine) Strategies() *strategy.Registry {
	return e.strategies
}

// Artifacts returns the configured artifact store, or nil.
func (e *Engine) Artifacts() *ArtifactStore {
	return e.artifacts
}

// Run executes one backtest.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	strat, err := e.strategies.Resolve(req.Strategy)
	if err != nil {
		return nil, err
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	start, end := core.Day(req.Start), core.Day(req.End)

	series, err := e.provider.FetchHistory(ctx, ticker, start.AddDate(0, 0, -warmupDays(strat.Lookback())), end)
	if err != nil {
		if errors.Is(err, core.ErrNoMarketData) {
			return nil, err
		}
		return nil, fmt.Errorf("fetching %s: %w", ticker, err)
	}

	if !req.ListedBy.IsZero() && series.FirstAvailable.After(core.Day(req.ListedBy)) {
		return nil, core.Errorf(core.ErrMisalignedHorizon, "%s listed %s, after %s",
			ticker, series.FirstAvailable.Format(time.DateOnly), req.ListedBy.Format(time.DateOnly))
	}

	from := series.IndexFrom(start)
	last := series.IndexFrom(end.AddDate(0, 0, 1))
	if from >= last {
		return nil, core.Errorf(core.ErrNoMarketData, "%s has no prices between %s and %s",
			ticker, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	closes := series.Closes()[:last]
	signals, err := strategy.Generate(ctx, strat, closes, from)
	if err != nil {
		return nil, err
	}
	dates := series.Dates()[from:last]
	prices := closes[from:]

	anchor := core.Day(req.Anchor)
	if req.Anchor.IsZero() {
		anchor = start
		if series.FirstAvailable.After(anchor) {
			anchor = series.FirstAvailable
		}
	}

	plan, err := schedule.Build(schedule.Params{
		Initial:  req.Initial,
		Monthly:  req.Monthly,
		Anchor:   anchor,
		End:      end,
		Dates:    dates,
		Signals:  signals,
		Strategy: strat,
	})
	if err != nil {
		return nil, err
	}

	rows, p, err := simulate(ctx, dates, prices, signals, plan)
	if err != nil {
		return nil, err
	}

	final := rows[len(rows)-1]
	result := &Result{
		Ticker:         ticker,
		Strategy:       strat.Name(),
		Start:          start,
		End:            end,
		Initial:        req.Initial,
		Monthly:        req.Monthly,
		Listed:         series.FirstAvailable,
		MinDataDate:    dates[0],
		ScheduleAnchor: plan.Anchor,
		Rows:           rows,
		Contributions:  len(plan.Contributions),
		Balance:        final.Value,
		Invested:       p.invested,
		Rate:           ReturnRate(final.Value, p.invested),
		LastSignal:     final.Signal,
		Stats:          CalculateStats(rows),
	}

	if e.artifacts != nil {
		name := req.Name
		if name == "" {
			name = ArtifactName(ticker, result.Strategy, start, end)
		}
		path, err := e.artifacts.Save(ctx, name, rows)
		if err != nil {
			return nil, err
		}
		result.ArtifactPath = path
	}

	e.logger.Debug("backtest complete",
		zap.String("ticker", ticker),
		zap.String("strategy", result.Strategy),
		zap.Time("min_data_date", result.MinDataDate),
		zap.Int("periods", len(rows)),
		zap.Int("contributions", result.Contributions),
		zap.String("balance", result.Balance.StringFixed(2)),
		zap.String("rate", result.Rate.StringFixed(2)),
	)

	return result, nil
}

// simulate walks the trading days in order, depositing and buying per plan.
func simulate(ctx context.Context, dates []time.Time, prices []decimal.Decimal, signals []core.Action, plan schedule.Plan) ([]Row, *portfolio, error) {
	p := &portfolio{}
	rows := make([]Row, 0, len(dates))
	nextContribution, nextRelease := 0, 0

	for i, date := range dates {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		price := prices[i]
		deposited := decimal.Zero
		for nextContribution < len(plan.Contributions) && plan.Contributions[nextContribution].Index == i {
			c := plan.Contributions[nextContribution]
			p.deposit(c.Amount)
			p.buy(c.Invested, price)
			deposited = deposited.Add(c.Amount)
			nextContribution++
		}
		for nextRelease < len(plan.Releases) && plan.Releases[nextRelease].Index == i {
			p.buy(plan.Releases[nextRelease].Amount, price)
			nextRelease++
		}

		rows = append(rows, Row{
			Date:         date,
			Price:        price,
			Signal:       signals[i],
			Contribution: deposited,
			Shares:       p.shares,
			Cash:         p.cash,
			Value:        p.value(price),
		})
	}

	return rows, p, nil
}

// warmupDays converts a lookback in trading days to calendar days with slack
// for weekends and holidays.
func warmupDays(lookback int) int {
	if lookback <= 1 {
		return 0
	}
	return lookback*7/5 + 10
}

// ArtifactName is the default base name for a run's artifact.
func ArtifactName(ticker, strategyName string, start, end time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s", strings.ToUpper(ticker), strategyName,
		start.Format("20060102"), end.Format("20060102"))
}
