package decision

import (
	"fmt"

	"spot-risk-engine/internal/simulation"
)

// Thresholds are the GO limits.
type Thresholds struct {
	MinTrades      int     `json:"minTrades"`
	MaxDrawdownPct float64 `json:"maxDrawdownPct"` // percent units
	MinConsistency float64 `json:"minConsistency"`
}

// DefaultThresholds returns the live-readiness defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTrades:      simulation.MinBootstrapTrades,
		MaxDrawdownPct: 20,
		MinConsistency: 0.3,
	}
}

// Evaluator evaluates decision criteria.
type Evaluator struct {
	th Thresholds
}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator(th Thresholds) *Evaluator {
	return &Evaluator{th: th}
}

// Evaluate produces DecisionResult from DecisionInput.
// GO if ALL criteria pass and NO NO-GO triggers.
// NO-GO if ANY criterion fails or ANY trigger fires.
func (e *Evaluator) Evaluate(input DecisionInput) (*DecisionResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	goCriteria := e.evaluateGOCriteria(input)
	nogoChecks := e.evaluateNOGOTriggers(input)

	decision := DecisionGO
	for _, c := range append(append([]CriterionResult{}, goCriteria...), nogoChecks...) {
		if !c.Pass {
			decision = DecisionNOGO
			break
		}
	}

	return &DecisionResult{
		Symbol:     input.Symbol,
		StrategyID: input.StrategyID,
		Decision:   decision,
		GOCriteria: goCriteria,
		NOGOChecks: nogoChecks,
	}, nil
}

func (e *Evaluator) evaluateGOCriteria(input DecisionInput) []CriterionResult {
	return []CriterionResult{
		{
			Name:      "Bootstrap lower bound",
			Threshold: "P5 of mean R > 0",
			Actual:    fmt.Sprintf("%.4f", input.BootstrapP5),
			Pass:      input.BootstrapComputed && input.BootstrapP5 > 0,
		},
		{
			Name:      "Expectancy",
			Threshold: "mean R > 0",
			Actual:    fmt.Sprintf("%.4f", input.Expectancy),
			Pass:      input.Expectancy > 0,
		},
		{
			Name:      "Sample size",
			Threshold: fmt.Sprintf(">= %d trades", e.th.MinTrades),
			Actual:    fmt.Sprintf("%d", input.Trades),
			Pass:      input.Trades >= e.th.MinTrades,
		},
		{
			Name:      "Max drawdown",
			Threshold: fmt.Sprintf("<= %.2f%%", e.th.MaxDrawdownPct),
			Actual:    fmt.Sprintf("%.2f%%", input.MaxDrawdownPct),
			Pass:      input.MaxDrawdownPct <= e.th.MaxDrawdownPct,
		},
		{
			Name:      "Fold consistency",
			Threshold: fmt.Sprintf(">= %.2f", e.th.MinConsistency),
			Actual:    fmt.Sprintf("%.4f", input.Consistency),
			Pass:      input.Consistency >= e.th.MinConsistency,
		},
	}
}

// evaluateNOGOTriggers evaluates hard stops. Pass=true means NOT triggered.
func (e *Evaluator) evaluateNOGOTriggers(input DecisionInput) []CriterionResult {
	return []CriterionResult{
		{
			Name:      "Bootstrap not computed",
			Threshold: fmt.Sprintf("< %d trades", simulation.MinBootstrapTrades),
			Actual:    fmt.Sprintf("computed=%t", input.BootstrapComputed),
			Pass:      input.BootstrapComputed,
		},
		{
			Name:      "Whole interval below zero",
			Threshold: "P95 of mean R <= 0",
			Actual:    fmt.Sprintf("%.4f", input.BootstrapP95),
			Pass:      !input.BootstrapComputed || input.BootstrapP95 > 0,
		},
		{
			Name:      "Losing across folds",
			Threshold: "mean fold score <= 0",
			Actual:    fmt.Sprintf("%.4f", input.MeanFoldScore),
			Pass:      input.MeanFoldScore > 0,
		},
	}
}
