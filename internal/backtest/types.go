package backtest

import (
	"time"

	"github.com/newthinker/buddy/internal/core"
	"github.com/shopspring/decimal"
)

// Request describes one simulation.
type Request struct {
	Ticker   string
	Start    time.Time
	End      time.Time
	Initial  decimal.Decimal
	Monthly  decimal.Decimal
	Strategy string
	// Anchor fixes the monthly contribution calendar. Zero derives it from
	// Start and the ticker's listing date.
	Anchor time.Time
	// Name overrides the artifact base name.
	Name string
	// ListedBy, when set, rejects a ticker first listed after it with
	// ErrMisalignedHorizon before anything is persisted.
	ListedBy time.Time
}

// Validate checks the request before any data is fetched.
func (r Request) Validate() error {
	if r.Ticker == "" {
		return core.Errorf(core.ErrInvalidParameters, "ticker is required")
	}
	if r.Initial.IsNegative() {
		return core.Errorf(core.ErrInvalidParameters, "initial investment %s is negative", r.Initial)
	}
	if r.Monthly.IsNegative() {
		return core.Errorf(core.ErrInvalidParameters, "monthly investment %s is negative", r.Monthly)
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return core.Errorf(core.ErrInvalidDateRange, "start and end are required")
	}
	if core.Day(r.End).Before(core.Day(r.Start)) {
		return core.Errorf(core.ErrInvalidDateRange, "%s < %s", r.End.Format(time.DateOnly), r.Start.Format(time.DateOnly))
	}
	return nil
}

// Row is one trading day of the simulated portfolio.
type Row struct {
	Date         time.Time
	Price        decimal.Decimal
	Signal       core.Action
	Contribution decimal.Decimal
	Shares       decimal.Decimal
	Cash         decimal.Decimal
	Value        decimal.Decimal
}

// Result holds the complete backtest output. It is not modified after Run
// returns.
type Result struct {
	Ticker         string
	Strategy       string
	Start          time.Time
	End            time.Time
	Initial        decimal.Decimal
	Monthly        decimal.Decimal
	Listed         time.Time // first date the provider has for Ticker
	MinDataDate    time.Time
	ScheduleAnchor time.Time
	Rows           []Row
	Contributions  int
	Balance        decimal.Decimal
	Invested       decimal.Decimal
	Rate           decimal.Decimal // percent
	LastSignal     core.Action
	ArtifactPath   string
	Stats          Stats
}

// Stats holds presentation-only performance statistics.
type Stats struct {
	Periods     int
	BuyDays     int
	SellDays    int
	HoldDays    int
	MaxDrawdown float64 // Largest peak-to-trough decline of time-weighted returns, percent
	SharpeRatio float64 // Annualized, risk-free rate 0
}

// ReturnRate is (balance - invested) / invested * 100, or zero when nothing
// was invested.
func ReturnRate(balance, invested decimal.Decimal) decimal.Decimal {
	if !invested.IsPositive() {
		return decimal.Zero
	}
	return balance.Sub(invested).Div(invested).Mul(decimal.NewFromInt(100))
}
