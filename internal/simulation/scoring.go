package simulation

import (
	"math"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/metrics"
)

// Fold score components.
const (
	scorePnlClip      = 50.0
	scoreDrawdownClip = 50.0
	scoreDrawdownW    = 0.5
	scoreTradeBonus   = 0.1
	scoreTradeCap     = 20

	rankMeanWeight        = 0.8
	rankConsistencyWeight = 0.2
)

// DefaultBreakEvenBand is the |R| below which a trade counts as break-even.
const DefaultBreakEvenBand = 0.1

// FoldScore scores one fold run:
// clamp(pnl%, -50, 50) - 0.5*clamp(maxDD%, 0, 50) + 0.1*min(trades, 20).
func FoldScore(r *Result) float64 {
	pnl := clampf(r.PnlPercent, -scorePnlClip, scorePnlClip)
	dd := clampf(r.MaxDrawdownPct, 0, scoreDrawdownClip)
	trades := len(r.Trades)
	if trades > scoreTradeCap {
		trades = scoreTradeCap
	}
	return pnl - scoreDrawdownW*dd + scoreTradeBonus*float64(trades)
}

// Consistency is 1 - std/|mean| clamped to [0, 1]; 0 when the mean is 0.
func Consistency(scores []float64) float64 {
	mean := metrics.Mean(scores)
	if mean == 0 {
		return 0
	}
	std := metrics.Stddev(scores, mean)
	return clampf(1-std/math.Abs(mean), 0, 1)
}

// RankScore combines mean fold score and consistency.
func RankScore(mean, consistency float64) float64 {
	return rankMeanWeight*mean + rankConsistencyWeight*consistency
}

// RMultiple normalizes a trade's PnL, net of slippage on both legs, by the
// risk taken at entry. Zero risk yields 0.
func RMultiple(t domain.BacktestTrade, slippagePct float64) float64 {
	if t.RiskAmount <= 0 {
		return 0
	}
	slippage := slippagePct * t.Quantity * (t.EntryPrice + t.ExitPrice)
	return (t.Pnl - slippage) / t.RiskAmount
}

// RStats summarizes R-multiples.
type RStats struct {
	RMultiples    []float64
	Expectancy    float64 // mean R
	AvgWinR       float64 // mean of R >= band
	AvgLossR      float64 // mean of R <= -band
	Wins          int
	Losses        int
	BreakEven     int
	BreakEvenRate float64
}

// ComputeRStats derives R statistics from trades.
func ComputeRStats(trades []domain.BacktestTrade, slippagePct, band float64) RStats {
	st := RStats{RMultiples: make([]float64, len(trades))}
	var wins, losses []float64
	for i, t := range trades {
		r := RMultiple(t, slippagePct)
		st.RMultiples[i] = r
		switch {
		case math.Abs(r) < band:
			st.BreakEven++
		case r > 0:
			wins = append(wins, r)
		default:
			losses = append(losses, r)
		}
	}
	st.Wins = len(wins)
	st.Losses = len(losses)
	st.Expectancy = metrics.Mean(st.RMultiples)
	st.AvgWinR = metrics.Mean(wins)
	st.AvgLossR = metrics.Mean(losses)
	if len(trades) > 0 {
		st.BreakEvenRate = float64(st.BreakEven) / float64(len(trades))
	}
	return st
}

func clampf(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
