// Package schedule turns an investment plan into dated contribution events.
package schedule

import (
	"time"

	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/strategy"
	"github.com/shopspring/decimal"
)

// Kind distinguishes the lump sum from recurring deposits.
type Kind string

const (
	KindInitial Kind = "initial"
	KindMonthly Kind = "monthly"
)

// Contribution is cash deposited on a trading date. Invested is bought at
// that day's close; Parked stays in cash until a later Release.
type Contribution struct {
	Index    int
	Date     time.Time
	Kind     Kind
	Amount   decimal.Decimal
	Invested decimal.Decimal
	Parked   decimal.Decimal
}

// Release buys previously parked cash. It brings no new money.
type Release struct {
	Index  int
	Date   time.Time
	Amount decimal.Decimal
}

// Params describes one simulation horizon. Dates and Signals are parallel
// slices covering the trading days in range.
type Params struct {
	Initial  decimal.Decimal
	Monthly  decimal.Decimal
	Anchor   time.Time
	End      time.Time
	Dates    []time.Time
	Signals  []core.Action
	Strategy strategy.Strategy
}

// Plan is the ordered result of Build.
type Plan struct {
	Anchor        time.Time
	Contributions []Contribution
	Releases      []Release
}

// Invested returns the sum of all deposited amounts.
func (p Plan) Invested() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Contributions {
		total = total.Add(c.Amount)
	}
	return total
}

// Build lays out the initial deposit on the first trading date and one monthly
// deposit on the anchor's day of month thereafter. A scheduled day without
// trading rolls forward to the next trading date; one past End is dropped.
func Build(p Params) (Plan, error) {
	if p.Initial.IsNegative() || p.Monthly.IsNegative() {
		return Plan{}, core.Errorf(core.ErrInvalidParameters, "investment amounts must not be negative")
	}
	if len(p.Dates) == 0 {
		return Plan{}, core.Errorf(core.ErrNoMarketData, "no trading dates in horizon")
	}
	if len(p.Signals) != len(p.Dates) {
		return Plan{}, core.Errorf(core.ErrInvalidParameters, "got %d signals for %d dates", len(p.Signals), len(p.Dates))
	}

	first := core.Day(p.Dates[0])
	end := core.Day(p.End)
	anchor := core.Day(p.Anchor)
	if p.Anchor.IsZero() {
		anchor = first
	}

	plan := Plan{Anchor: anchor}
	plan.Contributions = append(plan.Contributions, contribution(p, 0, KindInitial, p.Initial))

	if p.Monthly.IsPositive() {
		cursor := 0
		for k := 1; ; k++ {
			due := monthDay(anchor, k)
			if due.After(end) {
				break
			}
			if !due.After(first) {
				continue
			}
			for cursor < len(p.Dates) && core.Day(p.Dates[cursor]).Before(due) {
				cursor++
			}
			if cursor == len(p.Dates) || core.Day(p.Dates[cursor]).After(end) {
				break
			}
			plan.Contributions = append(plan.Contributions, contribution(p, cursor, KindMonthly, p.Monthly))
		}
	}

	plan.Releases = releases(p, plan.Contributions)
	return plan, nil
}

// contribution applies the strategy's modulation. A deposit on the last
// trading day is always bought: no later day remains to release it on.
func contribution(p Params, i int, kind Kind, amount decimal.Decimal) Contribution {
	c := Contribution{
		Index:    i,
		Date:     core.Day(p.Dates[i]),
		Kind:     kind,
		Amount:   amount,
		Invested: amount,
		Parked:   decimal.Zero,
	}
	if p.Strategy == nil || i == len(p.Dates)-1 {
		return c
	}
	if p.Strategy.Modulate(kind == KindInitial, p.Signals[i]) == strategy.PolicyPark {
		c.Invested = decimal.Zero
		c.Parked = amount
	}
	return c
}

// releases walks the horizon and frees all parked cash on each releasing signal.
func releases(p Params, contributions []Contribution) []Release {
	if p.Strategy == nil {
		return nil
	}

	var out []Release
	parked := decimal.Zero
	next := 0
	for i, sig := range p.Signals {
		for next < len(contributions) && contributions[next].Index == i {
			parked = parked.Add(contributions[next].Parked)
			next++
		}
		if parked.IsPositive() && p.Strategy.Release(sig) {
			out = append(out, Release{Index: i, Date: core.Day(p.Dates[i]), Amount: parked})
			parked = decimal.Zero
		}
	}
	return out
}

// monthDay returns the anchor's day of month k months later, clamped to the
// last day of shorter months.
func monthDay(anchor time.Time, k int) time.Time {
	y, m, d := anchor.Date()
	target := time.Date(y, m+time.Month(k), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(target.Year(), target.Month()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
