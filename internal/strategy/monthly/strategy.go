// Package monthly implements the modified monthly strategy. Monthly
// contributions that land on a SELL signal are held as cash and bought on the
// next BUY signal instead.
package monthly

import (
	"fmt"

	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/indicator"
	"github.com/newthinker/buddy/internal/strategy"
	"github.com/shopspring/decimal"
)

const (
	DefaultFastPeriod = 5
	DefaultSlowPeriod = 20
)

// ModifiedMonthly compares a fast and a slow moving average.
type ModifiedMonthly struct {
	fastPeriod int
	slowPeriod int
}

// New creates a new modified monthly strategy
func New(fastPeriod, slowPeriod int) *ModifiedMonthly {
	if fastPeriod <= 0 {
		fastPeriod = DefaultFastPeriod
	}
	if slowPeriod <= 0 {
		slowPeriod = DefaultSlowPeriod
	}
	return &ModifiedMonthly{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
	}
}

func (m *ModifiedMonthly) ID() strategy.ID { return strategy.IDModifiedMonthly }

func (m *ModifiedMonthly) Name() string { return "modified_monthly" }

func (m *ModifiedMonthly) Description() string {
	return fmt.Sprintf("MA%d/MA%d state, monthly buys deferred on SELL", m.fastPeriod, m.slowPeriod)
}

func (m *ModifiedMonthly) Init(cfg strategy.Config) error {
	if fast, ok := cfg.IntParam("fast_period"); ok {
		m.fastPeriod = fast
	}
	if slow, ok := cfg.IntParam("slow_period"); ok {
		m.slowPeriod = slow
	}
	if m.fastPeriod <= 0 || m.slowPeriod <= 0 || m.fastPeriod >= m.slowPeriod {
		return fmt.Errorf("modified_monthly: need 0 < fast_period < slow_period, got %d/%d", m.fastPeriod, m.slowPeriod)
	}
	return nil
}

func (m *ModifiedMonthly) Lookback() int { return m.slowPeriod }

func (m *ModifiedMonthly) Signal(closes []decimal.Decimal) core.Action {
	slow, ok := indicator.LastSMA(closes, m.slowPeriod)
	if !ok {
		return core.ActionHold
	}
	fast, _ := indicator.LastSMA(closes, m.fastPeriod)

	switch fast.Cmp(slow) {
	case 1:
		return core.ActionBuy
	case -1:
		return core.ActionSell
	default:
		return core.ActionHold
	}
}

// Modulate always invests the initial lump sum.
func (m *ModifiedMonthly) Modulate(initial bool, sig core.Action) strategy.Policy {
	if !initial && sig.IsSell() {
		return strategy.PolicyPark
	}
	return strategy.PolicyInvest
}

func (m *ModifiedMonthly) Release(sig core.Action) bool {
	return sig.IsBuy()
}
