package domain

// BacktestRun is the persisted header of one engine run.
type BacktestRun struct {
	RunID      string
	Symbol     string
	Interval   string
	StrategyID string
	Mode       string // "backtest" | "validation"
	StartIndex int
	EndIndex   int
	FirstBarMs int64
	LastBarMs  int64

	InitialCash    float64
	FinalEquity    float64
	Pnl            float64
	PnlPercent     float64
	MaxDrawdownPct float64
	TradeCount     int
	WinRate        float64

	// Validation output (zero for plain backtests)
	Expectancy   *float64
	BootstrapP5  *float64
	BootstrapP50 *float64
	BootstrapP95 *float64
	SafeForLive  bool
	CreatedAt    int64 // ms
}

// Run mode constants
const (
	RunModeBacktest   = "backtest"
	RunModeValidation = "validation"
)
