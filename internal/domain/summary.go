package domain

// RunSummary is the outcome distribution of one run's closed trades.
// PnL distribution fields are over trade PnlPercent.
type RunSummary struct {
	RunID      string
	Symbol     string
	StrategyID string

	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64

	PnlMean   float64
	PnlMedian float64
	PnlP10    float64
	PnlP25    float64
	PnlP75    float64
	PnlP90    float64
	PnlMin    float64
	PnlMax    float64
	PnlStddev float64

	TotalPnl             float64
	MaxDrawdown          float64 // peak-to-trough of cumulative PnlPercent
	MaxConsecutiveLosses int
	AvgBarsHeld          float64
	ExitReasons          map[ExitReason]int
}
