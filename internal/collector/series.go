package collector

import (
	"sort"
	"time"

	"github.com/newthinker/buddy/internal/core"
	"github.com/shopspring/decimal"
)

// Series is the ordered daily history of one ticker.
type Series struct {
	Symbol string
	Points []core.OHLCV
	// FirstAvailable is the listing date reported by the provider, or the
	// first point when the provider does not report one.
	FirstAvailable time.Time
}

// NewSeries sorts points by date and keeps the last bar for duplicate days.
func NewSeries(symbol string, points []core.OHLCV, firstAvailable time.Time) *Series {
	sorted := make([]core.OHLCV, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	unique := sorted[:0]
	for _, p := range sorted {
		if n := len(unique); n > 0 && unique[n-1].Date().Equal(p.Date()) {
			unique[n-1] = p
			continue
		}
		unique = append(unique, p)
	}

	if firstAvailable.IsZero() && len(unique) > 0 {
		firstAvailable = unique[0].Date()
	}
	return &Series{Symbol: symbol, Points: unique, FirstAvailable: core.Day(firstAvailable)}
}

// IndexFrom returns the position of the first point dated on or after t.
func (s *Series) IndexFrom(t time.Time) int {
	day := core.Day(t)
	return sort.Search(len(s.Points), func(i int) bool {
		return !s.Points[i].Date().Before(day)
	})
}

// Closes returns close prices as decimals.
func (s *Series) Closes() []decimal.Decimal {
	out := make([]decimal.Decimal, len(s.Points))
	for i, p := range s.Points {
		out[i] = decimal.NewFromFloat(p.Close)
	}
	return out
}

// Dates returns each point's calendar day.
func (s *Series) Dates() []time.Time {
	out := make([]time.Time, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Date()
	}
	return out
}
