package reporting

import "time"

// Report represents a backtest or validation report.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Symbol      string // empty for multi-symbol reports
	Title       string

	// Data Summary
	DataSummary DataSummary

	// Runs (sorted by symbol, strategy_id, run_id)
	Runs []RunRow

	// Counters (sorted by key)
	ExitReasons []CountRow
	Rejections  []CountRow

	// Validation candidates, best first
	Candidates []CandidateRow
}

// DataSummary contains data description.
type DataSummary struct {
	RunCount    int
	TotalTrades int
	TotalBars   int
	FirstBarMs  int64 // Unix ms
	LastBarMs   int64 // Unix ms
}

// RunRow represents one row in the runs table.
type RunRow struct {
	RunID          string
	Symbol         string
	StrategyID     string
	Mode           string
	Trades         int
	WinRate        float64
	PnlPercent     float64
	MaxDrawdownPct float64

	// Trade PnlPercent distribution
	PnlMedian            float64
	PnlP10               float64
	PnlP90               float64
	AvgBarsHeld          float64
	MaxConsecutiveLosses int

	HasBootstrap bool
	BootstrapP5  float64
	BootstrapP95 float64
	SafeForLive  bool
}

// CountRow is one key/count pair.
type CountRow struct {
	Key   string
	Count int
}

// CandidateRow represents one validated grid candidate.
type CandidateRow struct {
	Rank        int
	CandidateID string
	Name        string
	StrategyID  string
	MeanScore   float64
	StdScore    float64
	Consistency float64
	RankScore   float64

	// Full-series run, only for top candidates
	FullRun        bool
	Trades         int
	PnlPercent     float64
	MaxDrawdownPct float64
	Expectancy     float64
	BootstrapP5    float64
	BootstrapP95   float64
	SafeForLive    bool
	Decision       string // GO / NO-GO, empty without a full run
}
