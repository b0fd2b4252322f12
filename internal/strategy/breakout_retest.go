package strategy

import (
	"fmt"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/indicator"
)

// BreakoutRetest defaults
const (
	DefaultBreakoutLookback   = 20
	DefaultRetestBars         = 5
	DefaultRetestTolerancePct = 0.003
	DefaultRewardRatio        = 2.0
)

// BreakoutRetestStrategy buys a pullback to a freshly broken resistance.
//
// Entry: some close within the last RetestBars bars broke above the highest
// high of the BreakoutLookback bars before it, no close since has fallen back
// below that level, and the current bar's low comes within RetestTolerancePct
// of the level while its close holds above it.
// Stop sits just below the retest low; target is RewardRatio times the stop
// distance. Exit when a close breaks the low of the trailing half-lookback
// channel.
type BreakoutRetestStrategy struct {
	Lookback     int
	RetestBars   int
	TolerancePct float64
	RewardRatio  float64

	prepared []domain.Candle
	levels   []float64 // rolling max high over Lookback prior bars
	floors   []float64 // rolling min low over the exit channel
	index    map[int64]int
}

// NewBreakoutRetestStrategy creates a new BreakoutRetestStrategy.
func NewBreakoutRetestStrategy(lookback, retestBars int, tolerancePct, rewardRatio float64) *BreakoutRetestStrategy {
	return &BreakoutRetestStrategy{
		Lookback:     lookback,
		RetestBars:   retestBars,
		TolerancePct: tolerancePct,
		RewardRatio:  rewardRatio,
	}
}

// ID returns the strategy identifier including parameters.
func (s *BreakoutRetestStrategy) ID() string {
	return fmt.Sprintf("BREAKOUT_RETEST_lb%d_rt%d_tol%.2f_rr%.1f",
		s.Lookback,
		s.RetestBars,
		s.TolerancePct*100,
		s.RewardRatio)
}

// Prepare precomputes resistance levels and exit channels for candles.
func (s *BreakoutRetestStrategy) Prepare(candles []domain.Candle) {
	s.prepared = candles
	s.levels = rollingMaxHigh(candles, s.Lookback)
	s.floors = rollingMinLow(candles, s.exitChannel())
	s.index = make(map[int64]int, len(candles))
	for i, c := range candles {
		s.index[c.Timestamp] = i
	}
}

func (s *BreakoutRetestStrategy) exitChannel() int {
	if n := s.Lookback / 2; n >= 2 {
		return n
	}
	return 2
}

// resolve returns the candle history, the level series and the position of
// the window's last bar within it.
func (s *BreakoutRetestStrategy) resolve(window []domain.Candle) (candles []domain.Candle, levels []float64, floors []float64, i int) {
	if s.index != nil && len(window) > 0 {
		if idx, ok := s.index[window[len(window)-1].Timestamp]; ok && sameHistory(s.prepared, window, idx) {
			return s.prepared, s.levels, s.floors, idx
		}
	}
	return window, rollingMaxHigh(window, s.Lookback), rollingMinLow(window, s.exitChannel()), len(window) - 1
}

// Decide implements DecisionProvider.
func (s *BreakoutRetestStrategy) Decide(window []domain.Candle, sig *domain.VolatilitySignal, pos *domain.Position) domain.Decision {
	if pos != nil {
		return domain.Hold("position open")
	}
	if len(window) < s.Lookback+2 {
		return domain.Hold("insufficient history")
	}

	candles, levels, _, i := s.resolve(window)
	cur := candles[i]

	// most recent breakout bar strictly before the current bar
	breakout := -1
	for b := i - 1; b >= i-s.RetestBars && b >= 0; b-- {
		if indicator.Defined(levels[b]) && candles[b].Close > levels[b] {
			breakout = b
			break
		}
	}
	if breakout < 0 {
		return domain.Hold("no recent breakout")
	}
	level := levels[breakout]

	for j := breakout + 1; j < i; j++ {
		if candles[j].Close < level {
			return domain.Hold("breakout failed")
		}
	}

	band := level * s.TolerancePct
	if cur.Low > level+band || cur.Low < level-band {
		return domain.Hold("no retest of breakout level")
	}
	if cur.Close <= level {
		return domain.Hold("close did not hold above level")
	}

	stop := min(cur.Low, level) * (1 - s.TolerancePct)
	entry := cur.Close
	target := entry + s.RewardRatio*(entry-stop)

	confidence := 65.0
	if sig != nil && sig.Direction == domain.DirectionUp {
		confidence += 15
	}
	if avg := averageVolume(candles, breakout); avg > 0 && candles[breakout].Volume > avg {
		confidence += 10
	}

	return domain.Decision{
		ShouldTrade: true,
		Side:        domain.SideBuy,
		Confidence:  clamp(confidence, 0, 100),
		EntryPrice:  entry,
		StopLoss:    stop,
		TargetPrice: target,
		Reasoning:   fmt.Sprintf("retest of %.8f broken %d bars ago", level, i-breakout),
	}
}

// ShouldExit implements ExitProvider.
func (s *BreakoutRetestStrategy) ShouldExit(window []domain.Candle, pos *domain.Position) domain.ExitDecision {
	if pos == nil || len(window) == 0 {
		return domain.ExitDecision{}
	}
	candles, _, floors, i := s.resolve(window)
	floor := floors[i]
	if indicator.Defined(floor) && candles[i].Close < floor {
		return domain.ExitDecision{
			ShouldExit: true,
			Reasoning:  fmt.Sprintf("close %.8f broke channel low %.8f", candles[i].Close, floor),
		}
	}
	return domain.ExitDecision{}
}

// averageVolume averages volume over up to 20 bars before b.
func averageVolume(candles []domain.Candle, b int) float64 {
	from := b - 20
	if from < 0 {
		from = 0
	}
	if b-from == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles[from:b] {
		sum += c.Volume
	}
	return sum / float64(b-from)
}
