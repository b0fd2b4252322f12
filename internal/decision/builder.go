package decision

import (
	"errors"
	"fmt"

	"spot-risk-engine/internal/simulation"
)

// ErrNoTopCandidates is returned when a validation report has no full runs.
var ErrNoTopCandidates = errors.New("validation report has no top candidates")

// ErrRankOutOfRange is returned when the requested rank is not in the report.
var ErrRankOutOfRange = errors.New("candidate rank out of range")

// Build creates DecisionInput for the top candidate at rank (0 = best).
func Build(report *simulation.ValidationReport, rank int) (*DecisionInput, error) {
	if report == nil || len(report.Top) == 0 {
		return nil, ErrNoTopCandidates
	}
	if rank < 0 || rank >= len(report.Top) {
		return nil, fmt.Errorf("%w: %d of %d", ErrRankOutOfRange, rank, len(report.Top))
	}

	input := fromRun(report.Symbol, report.Top[rank])
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return input, nil
}

// BuildAll creates DecisionInput for every top candidate, best first.
func BuildAll(report *simulation.ValidationReport) ([]*DecisionInput, error) {
	if report == nil || len(report.Top) == 0 {
		return nil, ErrNoTopCandidates
	}

	inputs := make([]*DecisionInput, 0, len(report.Top))
	for _, run := range report.Top {
		input := fromRun(report.Symbol, run)
		if err := input.Validate(); err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}
	return inputs, nil
}

func fromRun(symbol string, run simulation.FullRun) *DecisionInput {
	return &DecisionInput{
		Symbol:            symbol,
		StrategyID:        run.Score.StrategyID,
		Candidate:         run.Score.Candidate.Name,
		Trades:            len(run.Result.Trades),
		Expectancy:        run.RStats.Expectancy,
		MaxDrawdownPct:    run.Result.MaxDrawdownPct,
		PnlPercent:        run.Result.PnlPercent,
		BootstrapComputed: run.Bootstrap.Computed,
		BootstrapP5:       run.Bootstrap.P5,
		BootstrapP50:      run.Bootstrap.P50,
		BootstrapP95:      run.Bootstrap.P95,
		MeanFoldScore:     run.Score.MeanScore,
		Consistency:       run.Score.Consistency,
	}
}
