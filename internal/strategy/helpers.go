package strategy

import (
	"math"

	"spot-risk-engine/internal/domain"
)

// rollingMaxHigh returns, for each i, the highest high over [i-n, i-1].
// Positions without n prior bars are NaN.
func rollingMaxHigh(candles []domain.Candle, n int) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = maxHigh(candles, i-n, i)
	}
	return out
}

// rollingMinLow returns, for each i, the lowest low over [i-n, i-1].
func rollingMinLow(candles []domain.Candle, n int) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = minLow(candles, i-n, i)
	}
	return out
}

// maxHigh returns the highest high over candles[from:to], NaN if from < 0.
func maxHigh(candles []domain.Candle, from, to int) float64 {
	if from < 0 || to > len(candles) || from >= to {
		return math.NaN()
	}
	m := candles[from].High
	for _, c := range candles[from+1 : to] {
		if c.High > m {
			m = c.High
		}
	}
	return m
}

// minLow returns the lowest low over candles[from:to], NaN if from < 0.
func minLow(candles []domain.Candle, from, to int) float64 {
	if from < 0 || to > len(candles) || from >= to {
		return math.NaN()
	}
	m := candles[from].Low
	for _, c := range candles[from+1 : to] {
		if c.Low < m {
			m = c.Low
		}
	}
	return m
}

// sameHistory reports whether window ends on bar i of prepared.
func sameHistory(prepared, window []domain.Candle, i int) bool {
	if len(window) == 0 || i < 0 || i >= len(prepared) {
		return false
	}
	return prepared[i] == window[len(window)-1]
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
