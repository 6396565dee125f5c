package backtest

import (
	"math"
	"testing"

	"github.com/newthinker/buddy/internal/core"
	"github.com/shopspring/decimal"
)

func TestCalculateStats_Empty(t *testing.T) {
	stats := CalculateStats(nil)
	if stats.Periods != 0 {
		t.Error("expected 0 periods for empty input")
	}
}

func TestCalculateStats_SignalCounts(t *testing.T) {
	rows := []Row{
		{Signal: core.ActionBuy, Value: decimal.NewFromInt(100)},
		{Signal: core.ActionStrongBuy, Value: decimal.NewFromInt(100)},
		{Signal: core.ActionSell, Value: decimal.NewFromInt(100)},
		{Signal: core.ActionHold, Value: decimal.NewFromInt(100)},
	}

	stats := CalculateStats(rows)

	if stats.Periods != 4 {
		t.Errorf("Periods = %d, want 4", stats.Periods)
	}
	if stats.BuyDays != 2 || stats.SellDays != 1 || stats.HoldDays != 1 {
		t.Errorf("unexpected counts %+v", stats)
	}
}

func TestCalculateStats_IgnoresDeposits(t *testing.T) {
	// Value doubles only because of a deposit; no drawdown, no gain.
	rows := []Row{
		{Signal: core.ActionHold, Value: decimal.NewFromInt(100), Contribution: decimal.NewFromInt(100)},
		{Signal: core.ActionHold, Value: decimal.NewFromInt(200), Contribution: decimal.NewFromInt(100)},
		{Signal: core.ActionHold, Value: decimal.NewFromInt(200)},
	}

	returns := dailyReturns(rows)
	for i, r := range returns {
		if r != 0 {
			t.Errorf("return[%d] = %f, want 0", i, r)
		}
	}
}

func TestCalculateMaxDrawdown(t *testing.T) {
	// Up 10%, down 20%, up 5%
	returns := []float64{0.10, -0.20, 0.05}

	dd := calculateMaxDrawdown(returns)
	if math.Abs(dd-0.20) > 0.0001 {
		t.Errorf("MaxDrawdown = %f, want 0.20", dd)
	}

	if calculateMaxDrawdown(nil) != 0 {
		t.Error("expected 0 drawdown for no returns")
	}
}

func TestCalculateSharpeRatio(t *testing.T) {
	if calculateSharpeRatio([]float64{0.01}) != 0 {
		t.Error("expected 0 for a single return")
	}
	if calculateSharpeRatio([]float64{0.01, 0.01, 0.01}) != 0 {
		t.Error("expected 0 for zero variance")
	}
	if calculateSharpeRatio([]float64{0.02, 0.01, 0.03}) <= 0 {
		t.Error("expected positive ratio for positive returns")
	}
}

func TestReturnRate(t *testing.T) {
	if !ReturnRate(decimal.NewFromInt(110), decimal.NewFromInt(100)).Equal(decimal.NewFromInt(10)) {
		t.Error("expected 10%")
	}
	if !ReturnRate(decimal.NewFromInt(50), decimal.Zero).IsZero() {
		t.Error("expected 0 when nothing invested")
	}
}
