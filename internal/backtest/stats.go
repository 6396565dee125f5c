package backtest

import (
	"math"
)

// CalculateStats computes performance statistics from per-day rows
func CalculateStats(rows []Row) Stats {
	if len(rows) == 0 {
		return Stats{}
	}

	stats := Stats{Periods: len(rows)}
	for _, r := range rows {
		switch {
		case r.Signal.IsBuy():
			stats.BuyDays++
		case r.Signal.IsSell():
			stats.SellDays++
		default:
			stats.HoldDays++
		}
	}

	returns := dailyReturns(rows)
	stats.MaxDrawdown = calculateMaxDrawdown(returns) * 100
	stats.SharpeRatio = calculateSharpeRatio(returns)
	return stats
}

// dailyReturns strips each day's deposit so contributions do not count as gains.
func dailyReturns(rows []Row) []float64 {
	returns := make([]float64, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		prev := rows[i-1].Value.InexactFloat64()
		if prev <= 0 {
			continue
		}
		cur := rows[i].Value.Sub(rows[i].Contribution).InexactFloat64()
		returns = append(returns, cur/prev-1)
	}
	return returns
}

// calculateMaxDrawdown finds the largest peak-to-trough decline
func calculateMaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	var maxDD float64
	peak := 1.0
	cumulative := 1.0

	for _, r := range returns {
		cumulative *= (1 + r)
		if cumulative > peak {
			peak = cumulative
		}
		if dd := (peak - cumulative) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD
}

// calculateSharpeRatio computes risk-adjusted return
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}

	// Annualize (assuming ~252 trading days)
	return mean * 252 / (stdDev * math.Sqrt(252))
}
