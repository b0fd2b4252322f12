package domain

// Decision is what a decision provider proposes for the current bar.
// Zero EntryPrice/StopLoss/TargetPrice mean "not specified".
type Decision struct {
	ShouldTrade bool
	Side        Side
	Confidence  float64 // 0..100
	EntryPrice  float64
	StopLoss    float64
	TargetPrice float64
	Reasoning   string
}

// Hold is the no-trade decision.
func Hold(reason string) Decision {
	return Decision{Reasoning: reason}
}

// ExitDecision is what an exit provider proposes for an open position.
// Zero ExitPrice means "exit at the bar close".
type ExitDecision struct {
	ShouldExit bool
	ExitPrice  float64
	Reasoning  string
}
