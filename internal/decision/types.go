package decision

import (
	"errors"
	"fmt"
	"math"
)

// Decision represents the final GO/NO-GO result.
type Decision string

const (
	DecisionGO   Decision = "GO"
	DecisionNOGO Decision = "NO-GO"
)

// Input validation errors
var (
	ErrNilInput        = errors.New("decision input is nil")
	ErrEmptyStrategyID = errors.New("strategy id is empty")
	ErrNegativeTrades  = errors.New("trade count is negative")
	ErrNonFinite       = errors.New("metric is not finite")
)

// DecisionInput contains the numeric evidence for one validated candidate.
type DecisionInput struct {
	Symbol     string
	StrategyID string
	Candidate  string

	// Full-series run
	Trades         int
	Expectancy     float64 // mean R-multiple
	MaxDrawdownPct float64 // percent units
	PnlPercent     float64

	// Bootstrap of mean R
	BootstrapComputed bool
	BootstrapP5       float64
	BootstrapP50      float64
	BootstrapP95      float64

	// Cross-fold stability
	MeanFoldScore float64
	Consistency   float64
}

// Validate checks the input is usable.
func (in *DecisionInput) Validate() error {
	if in == nil {
		return ErrNilInput
	}
	if in.StrategyID == "" {
		return ErrEmptyStrategyID
	}
	if in.Trades < 0 {
		return ErrNegativeTrades
	}
	for name, v := range map[string]float64{
		"expectancy":      in.Expectancy,
		"max drawdown":    in.MaxDrawdownPct,
		"bootstrap p5":    in.BootstrapP5,
		"bootstrap p95":   in.BootstrapP95,
		"mean fold score": in.MeanFoldScore,
		"consistency":     in.Consistency,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s", ErrNonFinite, name)
		}
	}
	return nil
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// DecisionResult contains the final decision with checklist.
type DecisionResult struct {
	Symbol     string
	StrategyID string
	Decision   Decision
	GOCriteria []CriterionResult
	NOGOChecks []CriterionResult // Pass=false means triggered
}
