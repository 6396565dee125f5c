// Package indicator computes rolling price indicators over decimal closes.
package indicator

import "github.com/shopspring/decimal"

// LastSMA returns the simple moving average ending at the final price.
func LastSMA(prices []decimal.Decimal, period int) (decimal.Decimal, bool) {
	if period <= 0 || len(prices) < period {
		return decimal.Zero, false
	}
	sum := decimal.Zero
	for _, p := range prices[len(prices)-period:] {
		sum = sum.Add(p)
	}
	return sum.Div(decimal.NewFromInt(int64(period))), true
}
