package schedule

import (
	"testing"
	"time"

	"github.com/newthinker/buddy/internal/core"
	"github.com/newthinker/buddy/internal/strategy/monthly"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// weekdays returns every Monday to Friday in [from, to].
func weekdays(from, to string) []time.Time {
	var out []time.Time
	for d := date(from); !d.After(date(to)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

func fill(n int, a core.Action) []core.Action {
	out := make([]core.Action, n)
	for i := range out {
		out[i] = a
	}
	return out
}

func TestBuild_InitialAndMonthly(t *testing.T) {
	dates := weekdays("2022-01-03", "2022-02-01")
	plan, err := Build(Params{
		Initial: decimal.NewFromInt(30_000_000),
		Monthly: decimal.NewFromInt(1_000_000),
		Anchor:  date("2022-01-01"),
		End:     date("2022-02-01"),
		Dates:   dates,
		Signals: fill(len(dates), core.ActionHold),
	})
	require.NoError(t, err)

	require.Len(t, plan.Contributions, 2)
	assert.Equal(t, KindInitial, plan.Contributions[0].Kind)
	assert.Equal(t, date("2022-01-03"), plan.Contributions[0].Date)
	assert.Equal(t, KindMonthly, plan.Contributions[1].Kind)
	assert.Equal(t, date("2022-02-01"), plan.Contributions[1].Date)
	assert.Equal(t, len(dates)-1, plan.Contributions[1].Index)
	assert.True(t, plan.Invested().Equal(decimal.NewFromInt(31_000_000)))
	assert.Empty(t, plan.Releases)
}

func TestBuild_DefaultAnchorIsFirstDate(t *testing.T) {
	dates := weekdays("2022-01-03", "2022-03-04")
	plan, err := Build(Params{
		Initial: decimal.NewFromInt(100),
		Monthly: decimal.NewFromInt(10),
		End:     date("2022-03-04"),
		Dates:   dates,
		Signals: fill(len(dates), core.ActionHold),
	})
	require.NoError(t, err)

	assert.Equal(t, date("2022-01-03"), plan.Anchor)
	require.Len(t, plan.Contributions, 3)
	assert.Equal(t, date("2022-02-03"), plan.Contributions[1].Date)
	assert.Equal(t, date("2022-03-03"), plan.Contributions[2].Date)
}

func TestBuild_RollsForwardToNextTradingDay(t *testing.T) {
	// 2022-02-05 is a Saturday.
	dates := weekdays("2022-01-05", "2022-02-10")
	plan, err := Build(Params{
		Initial: decimal.NewFromInt(100),
		Monthly: decimal.NewFromInt(10),
		Anchor:  date("2022-01-05"),
		End:     date("2022-02-10"),
		Dates:   dates,
		Signals: fill(len(dates), core.ActionHold),
	})
	require.NoError(t, err)

	require.Len(t, plan.Contributions, 2)
	assert.Equal(t, date("2022-02-07"), plan.Contributions[1].Date)
}

func TestBuild_ClampsToMonthEnd(t *testing.T) {
	dates := weekdays("2022-01-31", "2022-04-29")
	plan, err := Build(Params{
		Initial: decimal.NewFromInt(100),
		Monthly: decimal.NewFromInt(10),
		Anchor:  date("2022-01-31"),
		End:     date("2022-04-29"),
		Dates:   dates,
		Signals: fill(len(dates), core.ActionHold),
	})
	require.NoError(t, err)

	require.Len(t, plan.Contributions, 3)
	assert.Equal(t, date("2022-02-28"), plan.Contributions[1].Date)
	assert.Equal(t, date("2022-03-31"), plan.Contributions[2].Date)
	// 2022-04-30 falls after End.
}

func TestBuild_DropsContributionWithoutTradingDay(t *testing.T) {
	// Due 2022-02-26 (Saturday); the next trading day is past End.
	dates := weekdays("2022-01-26", "2022-02-25")
	plan, err := Build(Params{
		Initial: decimal.NewFromInt(100),
		Monthly: decimal.NewFromInt(10),
		Anchor:  date("2022-01-26"),
		End:     date("2022-02-27"),
		Dates:   dates,
		Signals: fill(len(dates), core.ActionHold),
	})
	require.NoError(t, err)

	assert.Len(t, plan.Contributions, 1)
}

func TestBuild_ZeroMonthly(t *testing.T) {
	dates := weekdays("2020-01-01", "2021-12-31")
	plan, err := Build(Params{
		Initial: decimal.NewFromInt(5000),
		Monthly: decimal.Zero,
		End:     date("2021-12-31"),
		Dates:   dates,
		Signals: fill(len(dates), core.ActionHold),
	})
	require.NoError(t, err)

	assert.Len(t, plan.Contributions, 1)
	assert.True(t, plan.Invested().Equal(decimal.NewFromInt(5000)))
}

func TestBuild_ParksAndReleases(t *testing.T) {
	dates := weekdays("2022-01-03", "2022-03-10")
	signals := fill(len(dates), core.ActionSell)
	// BUY from 2022-03-07 onwards.
	for i, d := range dates {
		if !d.Before(date("2022-03-07")) {
			signals[i] = core.ActionBuy
		}
	}

	plan, err := Build(Params{
		Initial:  decimal.NewFromInt(1000),
		Monthly:  decimal.NewFromInt(100),
		Anchor:   date("2022-01-03"),
		End:      date("2022-03-10"),
		Dates:    dates,
		Signals:  signals,
		Strategy: monthly.New(2, 4),
	})
	require.NoError(t, err)

	require.Len(t, plan.Contributions, 3)
	initial := plan.Contributions[0]
	assert.True(t, initial.Invested.Equal(decimal.NewFromInt(1000)), "initial is invested on SELL")
	assert.True(t, initial.Parked.IsZero())

	for _, c := range plan.Contributions[1:] {
		assert.True(t, c.Invested.IsZero())
		assert.True(t, c.Parked.Equal(decimal.NewFromInt(100)))
	}

	require.Len(t, plan.Releases, 1)
	assert.Equal(t, date("2022-03-07"), plan.Releases[0].Date)
	assert.True(t, plan.Releases[0].Amount.Equal(decimal.NewFromInt(200)))
	assert.True(t, plan.Invested().Equal(decimal.NewFromInt(1200)))
}

func TestBuild_LastDayContributionIsInvested(t *testing.T) {
	// 2022-01-01..2022-02-01: initial on 01-03, monthly on the final day.
	dates := weekdays("2022-01-03", "2022-02-01")
	plan, err := Build(Params{
		Initial:  decimal.NewFromInt(30_000_000),
		Monthly:  decimal.NewFromInt(1_000_000),
		Anchor:   date("2022-01-01"),
		End:      date("2022-02-01"),
		Dates:    dates,
		Signals:  fill(len(dates), core.ActionSell),
		Strategy: monthly.New(5, 20),
	})
	require.NoError(t, err)

	require.Len(t, plan.Contributions, 2)
	last := plan.Contributions[1]
	assert.Equal(t, date("2022-02-01"), last.Date)
	assert.True(t, last.Invested.Equal(decimal.NewFromInt(1_000_000)), "final-day deposit is bought on SELL")
	assert.True(t, last.Parked.IsZero())
	assert.Empty(t, plan.Releases)
	assert.True(t, plan.Invested().Equal(decimal.NewFromInt(31_000_000)))
}

func TestBuild_Deterministic(t *testing.T) {
	dates := weekdays("2022-01-03", "2022-06-30")
	signals := make([]core.Action, len(dates))
	for i := range signals {
		if i%7 < 3 {
			signals[i] = core.ActionSell
		} else {
			signals[i] = core.ActionBuy
		}
	}
	p := Params{
		Initial:  decimal.NewFromInt(1000),
		Monthly:  decimal.NewFromInt(100),
		Anchor:   date("2022-01-01"),
		End:      date("2022-06-30"),
		Dates:    dates,
		Signals:  signals,
		Strategy: monthly.New(2, 4),
	}

	a, err := Build(p)
	require.NoError(t, err)
	b, err := Build(p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuild_Errors(t *testing.T) {
	dates := weekdays("2022-01-03", "2022-01-07")

	_, err := Build(Params{Initial: decimal.NewFromInt(-1), End: date("2022-01-07"), Dates: dates, Signals: fill(5, core.ActionHold)})
	assert.ErrorIs(t, err, core.ErrInvalidParameters)

	_, err = Build(Params{Initial: decimal.NewFromInt(1), End: date("2022-01-07"), Dates: dates, Signals: fill(2, core.ActionHold)})
	assert.ErrorIs(t, err, core.ErrInvalidParameters)

	_, err = Build(Params{Initial: decimal.NewFromInt(1), End: date("2022-01-07")})
	assert.ErrorIs(t, err, core.ErrNoMarketData)
}

func TestMonthDay(t *testing.T) {
	tests := []struct {
		anchor string
		k      int
		want   string
	}{
		{"2022-01-31", 1, "2022-02-28"},
		{"2024-01-31", 1, "2024-02-29"},
		{"2022-01-31", 2, "2022-03-31"},
		{"2022-11-15", 2, "2023-01-15"},
	}
	for _, tt := range tests {
		assert.Equal(t, date(tt.want), monthDay(date(tt.anchor), tt.k), "%s +%d", tt.anchor, tt.k)
	}
}
