package strategy

import (
	"errors"

	"spot-risk-engine/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType   = errors.New("unknown strategy type")
	ErrInvalidLookback       = errors.New("BREAKOUT_RETEST requires BreakoutLookback >= 2")
	ErrInvalidRetestBars     = errors.New("BREAKOUT_RETEST requires RetestBars >= 1")
	ErrInvalidTolerance      = errors.New("BREAKOUT_RETEST requires 0 < RetestTolerancePct < 1")
	ErrInvalidRewardRatio    = errors.New("BREAKOUT_RETEST requires RewardRatio > 0")
	ErrInvalidNeighbors      = errors.New("KNN_RIBBON_RSI requires Neighbors >= 1")
	ErrInvalidTrainWindow    = errors.New("KNN_RIBBON_RSI requires TrainWindow > LabelHorizon + Neighbors")
	ErrInvalidLabelHorizon   = errors.New("KNN_RIBBON_RSI requires LabelHorizon >= 1")
	ErrInvalidVoteRatio      = errors.New("KNN_RIBBON_RSI requires 0 < MinVoteRatio <= 1")
	ErrInvalidRSIOverbought  = errors.New("KNN_RIBBON_RSI requires 50 < RSIOverbought < 100")
	ErrMissingStrategyConfig = errors.New("strategy type is empty")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Unset parameters take the variant defaults; set ones are validated.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeBreakoutRetest:
		return fromBreakoutRetestConfig(cfg)
	case domain.StrategyTypeKNNRibbonRSI:
		return fromKNNRibbonRSIConfig(cfg)
	case "":
		return nil, ErrMissingStrategyConfig
	default:
		return nil, ErrUnknownStrategyType
	}
}

// fromBreakoutRetestConfig creates BreakoutRetestStrategy from config.
func fromBreakoutRetestConfig(cfg domain.StrategyConfig) (*BreakoutRetestStrategy, error) {
	lookback := intOr(cfg.BreakoutLookback, DefaultBreakoutLookback)
	retestBars := intOr(cfg.RetestBars, DefaultRetestBars)
	tolerance := floatOr(cfg.RetestTolerancePct, DefaultRetestTolerancePct)
	reward := floatOr(cfg.RewardRatio, DefaultRewardRatio)

	if lookback < 2 {
		return nil, ErrInvalidLookback
	}
	if retestBars < 1 {
		return nil, ErrInvalidRetestBars
	}
	if tolerance <= 0 || tolerance >= 1 {
		return nil, ErrInvalidTolerance
	}
	if reward <= 0 {
		return nil, ErrInvalidRewardRatio
	}

	return NewBreakoutRetestStrategy(lookback, retestBars, tolerance, reward), nil
}

// fromKNNRibbonRSIConfig creates KNNRibbonRSIStrategy from config.
func fromKNNRibbonRSIConfig(cfg domain.StrategyConfig) (*KNNRibbonRSIStrategy, error) {
	k := intOr(cfg.Neighbors, DefaultNeighbors)
	train := intOr(cfg.TrainWindow, DefaultTrainWindow)
	horizon := intOr(cfg.LabelHorizon, DefaultLabelHorizon)
	vote := floatOr(cfg.MinVoteRatio, DefaultMinVoteRatio)
	overbought := floatOr(cfg.RSIOverbought, DefaultRSIOverbought)

	if k < 1 {
		return nil, ErrInvalidNeighbors
	}
	if horizon < 1 {
		return nil, ErrInvalidLabelHorizon
	}
	if train <= horizon+k {
		return nil, ErrInvalidTrainWindow
	}
	if vote <= 0 || vote > 1 {
		return nil, ErrInvalidVoteRatio
	}
	if overbought <= 50 || overbought >= 100 {
		return nil, ErrInvalidRSIOverbought
	}

	return NewKNNRibbonRSIStrategy(k, train, horizon, vote, overbought), nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
