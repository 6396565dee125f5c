package strategy

import (
	"context"

	"github.com/newthinker/buddy/internal/core"
	"github.com/shopspring/decimal"
)

// Generate returns one signal per close from index from onwards. The signal
// for period i is computed from closes[..i] only.
func Generate(ctx context.Context, s Strategy, closes []decimal.Decimal, from int) ([]core.Action, error) {
	if from < 0 {
		from = 0
	}
	window := s.Lookback()
	if window <= 0 {
		window = 1
	}

	signals := make([]core.Action, 0, max(0, len(closes)-from))
	for i := from; i < len(closes); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := max(0, i-window+1)
		signals = append(signals, s.Signal(closes[start:i+1]))
	}
	return signals, nil
}
