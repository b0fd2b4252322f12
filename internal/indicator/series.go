package indicator

import "spot-risk-engine/internal/domain"

// Ribbon EMA periods.
const (
	RibbonFast = 8
	RibbonMid  = 21
	RibbonSlow = 55
)

// Series holds indicators precomputed once over a full candle history so
// per-bar consumers index into it instead of recomputing.
type Series struct {
	Candles  []domain.Candle
	Closes   []float64
	EMAFast  []float64
	EMAMid   []float64
	EMASlow  []float64
	RSI      []float64
	ATR      []float64
	VolumeMA []float64

	index map[int64]int // timestamp -> position
}

// NewSeries computes all series for candles with the given RSI/ATR period.
func NewSeries(candles []domain.Candle, period int) *Series {
	closes := domain.Closes(candles)
	s := &Series{
		Candles:  candles,
		Closes:   closes,
		EMAFast:  EMA(closes, RibbonFast),
		EMAMid:   EMA(closes, RibbonMid),
		EMASlow:  EMA(closes, RibbonSlow),
		RSI:      RSI(closes, period),
		ATR:      ATR(candles, period),
		VolumeMA: SMA(domain.Volumes(candles), 20),
		index:    make(map[int64]int, len(candles)),
	}
	for i, c := range candles {
		s.index[c.Timestamp] = i
	}
	return s
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.Candles)
}

// IndexOf returns the position of the bar with timestamp ts.
func (s *Series) IndexOf(ts int64) (int, bool) {
	i, ok := s.index[ts]
	return i, ok
}

// Covers reports whether window ends on a bar known to the series.
func (s *Series) Covers(window []domain.Candle) (int, bool) {
	if s == nil || len(window) == 0 {
		return 0, false
	}
	last := window[len(window)-1]
	i, ok := s.index[last.Timestamp]
	if !ok || s.Candles[i] != last {
		return 0, false
	}
	return i, true
}
