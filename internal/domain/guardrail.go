package domain

// GuardrailState is the day-scoped ledger of the guardrail engine.
// Reset wholesale when the local calendar day changes.
type GuardrailState struct {
	DayKey           string // local date, 2006-01-02
	DailyRealizedR   float64
	DailyRealizedPct float64 // ratio
	TradesToday      int
	ConsecutiveSL    int
	CooldownUntil    int64 // ms, 0 when no cooldown
}

// ClosedTrade is what the guardrail learns when a trade closes.
type ClosedTrade struct {
	Symbol     string
	RMultiple  float64
	PnlPct     float64 // ratio
	ExitReason ExitReason
}
