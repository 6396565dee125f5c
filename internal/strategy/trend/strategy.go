// Package trend implements the basic strategy: a close against its own moving average.
package trend

import (
	"fmt"

	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/indicator"
	"github.com/newthinker/buddy/internal/strategy"
	"github.com/shopspring/decimal"
)

// DefaultPeriod is the moving-average window in trading days.
const DefaultPeriod = 20

// Trend signals BUY above the moving average and SELL below it. It never
// modulates contributions.
type Trend struct {
	period int
}

// New creates a new trend strategy
func New(period int) *Trend {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Trend{period: period}
}

func (t *Trend) ID() strategy.ID { return strategy.IDTrend }

func (t *Trend) Name() string { return "trend" }

func (t *Trend) Description() string {
	return fmt.Sprintf("Close vs MA%d, fixed monthly contributions", t.period)
}

func (t *Trend) Init(cfg strategy.Config) error {
	if p, ok := cfg.IntParam("period"); ok {
		if p <= 0 {
			return fmt.Errorf("trend: period must be positive, got %d", p)
		}
		t.period = p
	}
	return nil
}

func (t *Trend) Lookback() int { return t.period }

func (t *Trend) Signal(closes []decimal.Decimal) core.Action {
	ma, ok := indicator.LastSMA(closes, t.period)
	if !ok {
		return core.ActionHold
	}
	last := closes[len(closes)-1]
	switch last.Cmp(ma) {
	case 1:
		return core.ActionBuy
	case -1:
		return core.ActionSell
	default:
		return core.ActionHold
	}
}

func (t *Trend) Modulate(initial bool, sig core.Action) strategy.Policy {
	return strategy.PolicyInvest
}

func (t *Trend) Release(sig core.Action) bool { return false }
