// Package strategy holds the pluggable decision and exit providers invoked by
// the simulation engine and the live path.
package strategy

import (
	"spot-risk-engine/internal/domain"
)

// DecisionProvider proposes a trade for the last bar of window.
// sig is nil when no volatility signal fired; pos is nil when flat.
type DecisionProvider interface {
	Decide(window []domain.Candle, sig *domain.VolatilitySignal, pos *domain.Position) domain.Decision
}

// ExitProvider decides whether an open position should be closed at the
// last bar of window.
type ExitProvider interface {
	ShouldExit(window []domain.Candle, pos *domain.Position) domain.ExitDecision
}

// Preparer is implemented by providers that precompute indicator series
// over the full history once before a replay. Windows that end on a bar of
// the prepared history are answered from the precomputed series.
type Preparer interface {
	Prepare(candles []domain.Candle)
}

// Strategy is a named decision and exit provider pair.
type Strategy interface {
	DecisionProvider
	ExitProvider

	// ID returns strategy identifier (includes parameters).
	ID() string
}

// DecisionFunc adapts a function to DecisionProvider.
type DecisionFunc func(window []domain.Candle, sig *domain.VolatilitySignal, pos *domain.Position) domain.Decision

// Decide calls f.
func (f DecisionFunc) Decide(window []domain.Candle, sig *domain.VolatilitySignal, pos *domain.Position) domain.Decision {
	return f(window, sig, pos)
}

// ExitFunc adapts a function to ExitProvider.
type ExitFunc func(window []domain.Candle, pos *domain.Position) domain.ExitDecision

// ShouldExit calls f.
func (f ExitFunc) ShouldExit(window []domain.Candle, pos *domain.Position) domain.ExitDecision {
	return f(window, pos)
}

// NeverExit is an ExitProvider that always holds.
var NeverExit ExitProvider = ExitFunc(func([]domain.Candle, *domain.Position) domain.ExitDecision {
	return domain.ExitDecision{}
})
