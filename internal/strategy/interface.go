// Package strategy defines the tagged strategy variants used by the backtest
// engine. Each variant pairs a signal rule with a contribution policy.
package strategy

import (
	"github.com/newthinker/buddy/internal/core"
	"github.com/shopspring/decimal"
)

// ID identifies a strategy variant as users type it.
type ID string

const (
	IDTrend           ID = "1"
	IDModifiedMonthly ID = "modified_monthly"
)

// Config holds strategy configuration
type Config struct {
	Params map[string]any
}

// Policy decides what happens to a scheduled contribution on its day.
type Policy int

const (
	// PolicyInvest converts the whole contribution into shares immediately.
	PolicyInvest Policy = iota
	// PolicyPark deposits the contribution as cash and leaves it uninvested.
	PolicyPark
)

func (p Policy) String() string {
	if p == PolicyPark {
		return "park"
	}
	return "invest"
}

// Strategy is one variant: a signal generator plus its contribution modulation.
//
// Signal must only look at the closes it is given; the caller passes the
// window ending at the period being evaluated, so no future data is visible.
type Strategy interface {
	ID() ID
	Name() string
	Description() string
	Init(cfg Config) error

	// Lookback is the number of closes Signal needs before it can leave HOLD.
	Lookback() int
	Signal(closes []decimal.Decimal) core.Action

	// Modulate is asked once per scheduled contribution.
	Modulate(initial bool, sig core.Action) Policy
	// Release reports whether parked cash should be bought on this signal.
	Release(sig core.Action) bool
}

// IntParam reads an integer parameter, accepting the numeric types config
// decoders produce.
func (c Config) IntParam(key string) (int, bool) {
	switch v := c.Params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
