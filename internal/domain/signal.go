package domain

// SignalType identifies which volatility candidate fired.
type SignalType string

const (
	SignalATRSpike    SignalType = "ATR_SPIKE"
	SignalPriceSurge  SignalType = "PRICE_SURGE"
	SignalVolumeSpike SignalType = "VOLUME_SPIKE"
)

// Direction is the trend direction attached to a signal.
type Direction string

const (
	DirectionUp      Direction = "UP"
	DirectionDown    Direction = "DOWN"
	DirectionNeutral Direction = "NEUTRAL"
)

// VolatilitySignal is produced per bar by the signal detector. Not persisted.
type VolatilitySignal struct {
	Type       SignalType
	Value      float64 // observed value
	Threshold  float64 // threshold the value was compared against
	Direction  Direction
	Timestamp  int64   // timestamp of the bar that fired (ms)
	AtrPercent float64 // ATR(14) as percent of close
}

// Strength returns value/threshold, 0 when the threshold is not positive.
func (s *VolatilitySignal) Strength() float64 {
	if s == nil || s.Threshold <= 0 {
		return 0
	}
	return s.Value / s.Threshold
}
