// Package report renders backtest outcomes as chat-sized text.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/newthinker/buddy/internal/backtest"
	"github.com/newthinker/buddy/internal/core"
	"github.com/shopspring/decimal"
)

// namespace seeds content-derived report ids.
var namespace = uuid.MustParse("6f1c1f9e-3a52-4a8e-9d7b-5b0f3c0a2e11")

// Comparison is the benchmark side of a report.
type Comparison struct {
	Ticker       string
	Rate         decimal.Decimal
	Balance      decimal.Decimal
	ArtifactPath string
}

// Report is one backtest outcome ready for delivery.
type Report struct {
	ID           string
	Ticker       string
	Name         string
	Strategy     string
	Rate         decimal.Decimal
	Invested     decimal.Decimal
	Balance      decimal.Decimal
	LastSignal   core.Action
	MinDataDate  time.Time
	End          time.Time
	ArtifactPath string
	Benchmark    *Comparison
}

// FromResult builds a report for res. bench may be nil.
func FromResult(res, bench *backtest.Result, name string) Report {
	if name == "" {
		name = res.Ticker
	}
	r := Report{
		Ticker:       res.Ticker,
		Name:         name,
		Strategy:     res.Strategy,
		Rate:         res.Rate,
		Invested:     res.Invested,
		Balance:      res.Balance,
		LastSignal:   res.LastSignal,
		MinDataDate:  res.MinDataDate,
		End:          res.End,
		ArtifactPath: res.ArtifactPath,
	}
	if bench != nil {
		r.Benchmark = &Comparison{
			Ticker:       bench.Ticker,
			Rate:         bench.Rate,
			Balance:      bench.Balance,
			ArtifactPath: bench.ArtifactPath,
		}
	}
	r.ID = uuid.NewSHA1(namespace, []byte(r.Text()+r.End.Format(time.DateOnly))).String()
	return r
}

// Text is the chat message body.
func (r Report) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Stock: %s (%s)\n", r.Ticker, r.Name)
	fmt.Fprintf(&sb, "Total_rate: %s %%\n", Amount(r.Rate))
	fmt.Fprintf(&sb, "Invested_amount: %s $\n", Amount(r.Invested))
	fmt.Fprintf(&sb, "Total_account_balance: %s $\n", Amount(r.Balance))
	fmt.Fprintf(&sb, "Last_signal: %s \n", r.LastSignal.Label())
	return sb.String()
}

// Detail is Text plus the horizon and the benchmark comparison.
func (r Report) Detail() string {
	var sb strings.Builder
	sb.WriteString(r.Text())
	fmt.Fprintf(&sb, "Strategy: %s\n", r.Strategy)
	fmt.Fprintf(&sb, "Period: %s ~ %s\n", r.MinDataDate.Format(time.DateOnly), r.End.Format(time.DateOnly))
	if b := r.Benchmark; b != nil {
		fmt.Fprintf(&sb, "Benchmark: %s\n", b.Ticker)
		fmt.Fprintf(&sb, "Benchmark_rate: %s %%\n", Amount(b.Rate))
		fmt.Fprintf(&sb, "Benchmark_balance: %s $\n", Amount(b.Balance))
	}
	return sb.String()
}

// Subject is a one-line title for sinks that want one.
func (r Report) Subject() string {
	return fmt.Sprintf("%s %s: %s %%", r.Ticker, r.LastSignal.Label(), Amount(r.Rate))
}

// Amount rounds half to even and adds thousands separators.
func Amount(d decimal.Decimal) string {
	return humanize.Comma(d.RoundBank(0).IntPart())
}
