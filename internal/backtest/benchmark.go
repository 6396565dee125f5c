package backtest

import (
	"context"
	"fmt"
	"strings"

	"github.com/newthinker/buddy/internal/core"
)

// DefaultBenchmark is a broad-market index fund proxy.
const DefaultBenchmark = "VOO"

// Benchmark reruns a user's backtest against a reference ticker over the same
// horizon and contribution calendar.
type Benchmark struct {
	engine *Engine
	ticker string
}

// NewBenchmark creates a benchmark runner for ticker, or DefaultBenchmark.
func NewBenchmark(engine *Engine, ticker string) *Benchmark {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		ticker = DefaultBenchmark
	}
	return &Benchmark{engine: engine, ticker: ticker}
}

// Ticker returns the benchmark symbol.
func (b *Benchmark) Ticker() string {
	return b.ticker
}

// Run starts the benchmark at the user run's first usable date and reuses its
// schedule anchor. A benchmark listed after that date is misaligned and
// leaves no artifact behind.
func (b *Benchmark) Run(ctx context.Context, user *Result) (*Result, error) {
	if user == nil || len(user.Rows) == 0 {
		return nil, core.Errorf(core.ErrInvalidParameters, "benchmark needs a completed run")
	}

	res, err := b.engine.Run(ctx, Request{
		Ticker:   b.ticker,
		Start:    user.MinDataDate,
		End:      user.End,
		Initial:  user.Initial,
		Monthly:  user.Monthly,
		Strategy: user.Strategy,
		Anchor:   user.ScheduleAnchor,
		Name:     fmt.Sprintf("%s_vs_%s", user.Ticker, b.ticker),
		ListedBy: user.MinDataDate,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
