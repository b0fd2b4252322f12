package domain

// StrategyConfig represents strategy configuration parameters.
type StrategyConfig struct {
	StrategyType string // "BREAKOUT_RETEST" | "KNN_RIBBON_RSI"

	// BREAKOUT_RETEST parameters
	BreakoutLookback   *int     // bars forming the resistance level
	RetestBars         *int     // bars after the breakout allowed for a retest
	RetestTolerancePct *float64 // how close the low must come to the level
	RewardRatio        *float64 // target distance as multiple of stop distance

	// KNN_RIBBON_RSI parameters
	Neighbors     *int     // k
	TrainWindow   *int     // bars searched for neighbours
	LabelHorizon  *int     // forward bars used to label a neighbour
	MinVoteRatio  *float64 // share of bullish neighbours required
	RSIOverbought *float64 // entries blocked and exits forced above this
}

// Strategy type constants
const (
	StrategyTypeBreakoutRetest = "BREAKOUT_RETEST"
	StrategyTypeKNNRibbonRSI   = "KNN_RIBBON_RSI"
)
