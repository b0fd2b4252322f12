package metrics

import (
	"math"
	"sort"

	"spot-risk-engine/internal/domain"
)

// Summarize calculates all metrics from a slice of trades.
// Trades are sorted by EntryIndex ASC, ExitIndex ASC before computing
// order-dependent metrics (MaxDrawdown, MaxConsecutiveLosses).
func Summarize(trades []domain.BacktestTrade) *domain.RunSummary {
	n := len(trades)
	summary := &domain.RunSummary{ExitReasons: make(map[domain.ExitReason]int)}
	if n == 0 {
		return summary
	}

	sorted := make([]domain.BacktestTrade, n)
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EntryIndex != sorted[j].EntryIndex {
			return sorted[i].EntryIndex < sorted[j].EntryIndex
		}
		return sorted[i].ExitIndex < sorted[j].ExitIndex
	})

	outcomes := make([]float64, n)
	bars := 0
	for i, t := range sorted {
		outcomes[i] = t.PnlPercent
		summary.TotalPnl += t.Pnl
		bars += t.BarsHeld()
		summary.ExitReasons[t.ExitReason]++
		if t.OutcomeClass() == domain.OutcomeClassWin {
			summary.Wins++
		} else {
			summary.Losses++
		}
	}

	sortedOutcomes := make([]float64, n)
	copy(sortedOutcomes, outcomes)
	sort.Float64s(sortedOutcomes)

	mean := Mean(outcomes)

	summary.TotalTrades = n
	summary.WinRate = WinRate(summary.Wins, n)
	summary.PnlMean = mean
	summary.PnlMedian = Percentile(sortedOutcomes, 0.50)
	summary.PnlP10 = Percentile(sortedOutcomes, 0.10)
	summary.PnlP25 = Percentile(sortedOutcomes, 0.25)
	summary.PnlP75 = Percentile(sortedOutcomes, 0.75)
	summary.PnlP90 = Percentile(sortedOutcomes, 0.90)
	summary.PnlMin = sortedOutcomes[0]
	summary.PnlMax = sortedOutcomes[n-1]
	summary.PnlStddev = Stddev(outcomes, mean)
	summary.MaxDrawdown = MaxDrawdown(outcomes)
	summary.MaxConsecutiveLosses = MaxConsecutiveLosses(sorted)
	summary.AvgBarsHeld = float64(bars) / float64(n)

	return summary
}

// WinRate calculates win rate as wins / total.
func WinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

// Mean calculates the arithmetic mean.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Stddev calculates sample standard deviation (n-1 denominator).
func Stddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Percentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	// Index for percentile (0-based, continuous)
	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// MaxDrawdown calculates worst peak-to-trough on cumulative outcomes.
// Outcomes must be in chronological order.
func MaxDrawdown(outcomes []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, o := range outcomes {
		cumulative += o
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// MaxEquityDrawdown returns the largest fractional decline from a running
// peak of an equity series (0.25 = 25%).
func MaxEquityDrawdown(equity []float64) float64 {
	peak := 0.0
	maxDD := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak > 0 {
			if dd := (peak - e) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// MaxConsecutiveLosses finds longest streak of pnl <= 0.
// Trades must be in chronological order.
func MaxConsecutiveLosses(trades []domain.BacktestTrade) int {
	maxStreak := 0
	currentStreak := 0

	for _, t := range trades {
		if t.Pnl <= 0 {
			currentStreak++
			if currentStreak > maxStreak {
				maxStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}
	return maxStreak
}
