// Package signal detects volatility events on a trailing candle window.
package signal

import (
	"math"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/indicator"
)

const (
	// ATRPeriod is the short ATR period.
	ATRPeriod = 14
	// AvgATRPeriod is the baseline ATR period.
	AvgATRPeriod = 30
	// VolumeLookback is the number of bars averaged for the volume baseline.
	VolumeLookback = 30
	// TrendLookback is the close-to-close distance used for direction.
	TrendLookback = 14
)

// Thresholds configures the candidate triggers.
type Thresholds struct {
	ATRMultiplier         float64 `json:"atrMultiplier"`
	PriceSurgePct         float64 `json:"priceSurgePct"`
	VolumeSpikeMultiplier float64 `json:"volumeSpikeMultiplier"`
}

// DefaultThresholds returns the default trigger thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ATRMultiplier:         0.5,
		PriceSurgePct:         0.015,
		VolumeSpikeMultiplier: 2.5,
	}
}

// Detector scores ATR, price and volume candidates and returns the strongest.
type Detector struct {
	thresholds Thresholds
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(t Thresholds) *Detector {
	return &Detector{thresholds: t}
}

// Thresholds returns the configured thresholds.
func (d *Detector) Thresholds() Thresholds {
	return d.thresholds
}

// Detect evaluates the last bar of window. Returns nil when nothing fires or
// the window is too short to compare two bars.
func (d *Detector) Detect(window []domain.Candle) *domain.VolatilitySignal {
	n := len(window)
	if n < 2 {
		return nil
	}
	last := window[n-1]
	prev := window[n-2]
	if !validPrice(last.Close) || !validPrice(prev.Close) {
		return nil
	}

	atr := indicator.ATRAt(window, ATRPeriod)
	atrPercent := 0.0
	if indicator.Defined(atr) {
		atrPercent = atr / last.Close * 100
	}
	trend := trendDirection(window)

	var best *domain.VolatilitySignal
	bestStrength := 0.0
	consider := func(sig *domain.VolatilitySignal) {
		if sig == nil {
			return
		}
		// strict: earlier candidates keep ties
		if s := sig.Strength(); best == nil || s > bestStrength {
			best, bestStrength = sig, s
		}
	}

	// ATR spike
	avgATR := indicator.ATRAt(window, AvgATRPeriod)
	if indicator.Defined(atr) && indicator.Defined(avgATR) && avgATR > 0 {
		threshold := avgATR * (1 + d.thresholds.ATRMultiplier)
		if atr > threshold {
			consider(&domain.VolatilitySignal{
				Type:       domain.SignalATRSpike,
				Value:      atr,
				Threshold:  threshold,
				Direction:  trend,
				Timestamp:  last.Timestamp,
				AtrPercent: atrPercent,
			})
		}
	}

	// price surge
	change := (last.Close - prev.Close) / prev.Close
	if d.thresholds.PriceSurgePct > 0 && math.Abs(change) > d.thresholds.PriceSurgePct {
		consider(&domain.VolatilitySignal{
			Type:       domain.SignalPriceSurge,
			Value:      math.Abs(change),
			Threshold:  d.thresholds.PriceSurgePct,
			Direction:  directionOf(change),
			Timestamp:  last.Timestamp,
			AtrPercent: atrPercent,
		})
	}

	// volume spike
	if avgVol := trailingVolume(window); avgVol > 0 && d.thresholds.VolumeSpikeMultiplier > 0 {
		ratio := last.Volume / avgVol
		if ratio > d.thresholds.VolumeSpikeMultiplier {
			consider(&domain.VolatilitySignal{
				Type:       domain.SignalVolumeSpike,
				Value:      ratio,
				Threshold:  d.thresholds.VolumeSpikeMultiplier,
				Direction:  trend,
				Timestamp:  last.Timestamp,
				AtrPercent: atrPercent,
			})
		}
	}

	return best
}

// trailingVolume averages up to VolumeLookback bars before the last bar.
func trailingVolume(window []domain.Candle) float64 {
	end := len(window) - 1
	start := end - VolumeLookback
	if start < 0 {
		start = 0
	}
	if end-start == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range window[start:end] {
		sum += c.Volume
	}
	return sum / float64(end-start)
}

// trendDirection compares the last close with the close TrendLookback bars
// earlier (or the first bar of a shorter window).
func trendDirection(window []domain.Candle) domain.Direction {
	last := len(window) - 1
	ref := last - TrendLookback
	if ref < 0 {
		ref = 0
	}
	return directionOf(window[last].Close - window[ref].Close)
}

func directionOf(delta float64) domain.Direction {
	switch {
	case delta > 0:
		return domain.DirectionUp
	case delta < 0:
		return domain.DirectionDown
	default:
		return domain.DirectionNeutral
	}
}

func validPrice(p float64) bool {
	return indicator.Defined(p) && p > 0
}
