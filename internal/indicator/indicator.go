// Package indicator computes windowed SMA/EMA/RSI/ATR series.
// Positions where an indicator is not yet defined hold NaN.
package indicator

import (
	"math"

	"spot-risk-engine/internal/domain"
)

// nanSlice returns a slice of n NaNs.
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA returns the simple moving average of values over period.
// The first defined value is at index period-1.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average seeded with the SMA of the
// first period values, k = 2/(period+1).
func EMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	k := 2.0 / float64(period+1)
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	prev := seed / float64(period)
	out[period-1] = prev

	for i := period; i < len(values); i++ {
		prev = (values[i]-prev)*k + prev
		out[i] = prev
	}
	return out
}

// RSI returns the Wilder relative strength index of closes.
// The seed averages the first period changes; the first value is at index period.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	n := float64(period)
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(n-1) + gain) / n
		avgLoss = (avgLoss*(n-1) + loss) / n
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

// rsiValue maps average gain/loss to 0..100. A flat market reads a neutral 50.
func rsiValue(avgGain, avgLoss float64) float64 {
	total := avgGain + avgLoss
	if total < 1e-14 {
		return 50
	}
	return 100 * avgGain / total
}

// TrueRange returns the per-bar true range. Index 0 has no previous close
// and uses high-low.
func TrueRange(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		if i == 0 {
			out[i] = c.High - c.Low
			continue
		}
		prevClose := candles[i-1].Close
		out[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	return out
}

// ATR returns the Wilder average true range. The seed at index period is the
// mean of TR[1..period]; later values use (prev*(n-1)+TR)/n.
func ATR(candles []domain.Candle, period int) []float64 {
	out := nanSlice(len(candles))
	if period <= 0 || len(candles) < period+1 {
		return out
	}

	tr := TrueRange(candles)
	seed := 0.0
	for i := 1; i <= period; i++ {
		seed += tr[i]
	}
	prev := seed / float64(period)
	out[period] = prev

	n := float64(period)
	for i := period + 1; i < len(candles); i++ {
		prev = (prev*(n-1) + tr[i]) / n
		out[i] = prev
	}
	return out
}

// ATRAt returns the ATR anchored at the last candle, NaN when the window is
// shorter than period+1.
func ATRAt(candles []domain.Candle, period int) float64 {
	if len(candles) < period+1 {
		return math.NaN()
	}
	series := ATR(candles, period)
	return series[len(series)-1]
}

// Last returns the last element of series, NaN when empty.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// Defined reports whether v is a usable indicator value.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
