package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-risk-engine/internal/domain"
)

// breakoutHistory: 20 flat bars (high 101), a breakout to 102.5 on bar 20,
// a hold on bar 21 and a retest of 101 on bar 22, then a drift higher.
func breakoutHistory() []domain.Candle {
	var out []domain.Candle
	add := func(o, h, l, c, v float64) {
		out = append(out, domain.Candle{Timestamp: int64(len(out)) * 60_000, Open: o, High: h, Low: l, Close: c, Volume: v})
	}
	for i := 0; i < 20; i++ {
		add(100, 101, 99, 100, 1000)
	}
	add(100, 103, 100.5, 102.5, 2000)  // 20 breakout
	add(102.5, 102.5, 101.5, 102, 900) // 21 holds above 101
	add(102, 102.2, 101.1, 101.8, 800) // 22 retest
	for i := 0; i < 10; i++ {
		c := 102 + float64(i)*0.2
		add(c-0.1, c+0.3, c-0.3, c, 1000)
	}
	return out
}

func TestBreakoutRetest_EntersOnRetest(t *testing.T) {
	s := NewBreakoutRetestStrategy(20, 5, 0.003, 2.0)
	candles := breakoutHistory()

	d := s.Decide(candles[:23], nil, nil)

	require.True(t, d.ShouldTrade, d.Reasoning)
	assert.Equal(t, domain.SideBuy, d.Side)
	assert.Equal(t, 101.8, d.EntryPrice)
	assert.InDelta(t, 101*0.997, d.StopLoss, 1e-9)
	assert.InDelta(t, 101.8+2*(101.8-101*0.997), d.TargetPrice, 1e-9)
	// breakout volume above average
	assert.Equal(t, 75.0, d.Confidence)

	up := &domain.VolatilitySignal{Type: domain.SignalPriceSurge, Direction: domain.DirectionUp}
	assert.Equal(t, 90.0, s.Decide(candles[:23], up, nil).Confidence)
}

func TestBreakoutRetest_PreparedMatchesWindow(t *testing.T) {
	candles := breakoutHistory()

	cold := NewBreakoutRetestStrategy(20, 5, 0.003, 2.0)
	warm := NewBreakoutRetestStrategy(20, 5, 0.003, 2.0)
	warm.Prepare(candles)

	for i := 21; i < len(candles); i++ {
		assert.Equal(t, cold.Decide(candles[:i+1], nil, nil), warm.Decide(candles[:i+1], nil, nil), "bar %d", i)
	}
}

func TestBreakoutRetest_Holds(t *testing.T) {
	s := NewBreakoutRetestStrategy(20, 5, 0.003, 2.0)

	t.Run("position open", func(t *testing.T) {
		d := s.Decide(breakoutHistory()[:23], nil, &domain.Position{})
		assert.False(t, d.ShouldTrade)
	})

	t.Run("short window", func(t *testing.T) {
		d := s.Decide(breakoutHistory()[:10], nil, nil)
		assert.False(t, d.ShouldTrade)
	})

	t.Run("failed breakout", func(t *testing.T) {
		c := breakoutHistory()
		c[21].Close = 100.5
		d := s.Decide(c[:23], nil, nil)
		assert.False(t, d.ShouldTrade)
		assert.Equal(t, "breakout failed", d.Reasoning)
	})

	t.Run("no retest", func(t *testing.T) {
		c := breakoutHistory()
		c[22].Low = 101.6
		d := s.Decide(c[:23], nil, nil)
		assert.False(t, d.ShouldTrade)
	})

	t.Run("close below level", func(t *testing.T) {
		c := breakoutHistory()
		c[22].Close = 100.9
		d := s.Decide(c[:23], nil, nil)
		assert.False(t, d.ShouldTrade)
	})
}

func TestBreakoutRetest_ExitOnChannelBreak(t *testing.T) {
	s := NewBreakoutRetestStrategy(20, 5, 0.003, 2.0)
	candles := breakoutHistory()[:20]
	pos := &domain.Position{EntryPrice: 100}

	assert.False(t, s.ShouldExit(candles, pos).ShouldExit)
	assert.False(t, s.ShouldExit(candles, nil).ShouldExit)

	candles = append(candles, domain.Candle{Timestamp: 20 * 60_000, Open: 99, High: 99, Low: 97.5, Close: 98})
	exit := s.ShouldExit(candles, pos)
	assert.True(t, exit.ShouldExit)
	assert.Zero(t, exit.ExitPrice)
}
