package domain

// ExitReason tags why a simulated position was closed.
type ExitReason string

// Exit reason codes
const (
	ExitReasonStopLoss   ExitReason = "STOP_LOSS"
	ExitReasonTakeProfit ExitReason = "TAKE_PROFIT"
	ExitReasonSignal     ExitReason = "SIGNAL"
	ExitReasonEnd        ExitReason = "END"
)

// Outcome class constants
const (
	OutcomeClassWin  = "WIN"
	OutcomeClassLoss = "LOSS"
)

// BacktestTrade is one closed simulated trade. Append-only.
// Pnl and PnlPercent include entry and exit fees.
type BacktestTrade struct {
	TradeID string // deterministic hash, set when persisted
	RunID   string // owning run, set when persisted
	Symbol  string

	// Entry
	EntryIndex      int
	EntryTime       int64 // ms
	EntryPrice      float64
	InitialStopLoss float64
	TargetPrice     float64
	Quantity        float64
	RiskAmount      float64 // fee-inclusive risk to the initial stop

	// Exit
	ExitIndex  int
	ExitTime   int64 // ms
	ExitPrice  float64
	ExitReason ExitReason

	Side       Side
	EntryFee   float64
	ExitFee    float64
	Pnl        float64 // quote currency, net of both fees
	PnlPercent float64 // Pnl / entry notional * 100

	BreakEvenArmed bool
}

// OutcomeClass returns WIN for strictly positive PnL, LOSS otherwise.
func (t *BacktestTrade) OutcomeClass() string {
	if t.Pnl > 0 {
		return OutcomeClassWin
	}
	return OutcomeClassLoss
}

// BarsHeld returns the number of bars between entry and exit.
func (t *BacktestTrade) BarsHeld() int {
	return t.ExitIndex - t.EntryIndex
}
