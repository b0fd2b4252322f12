package simulation

import (
	"errors"
	"fmt"
	"sort"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/metrics"
	"spot-risk-engine/internal/signal"
	"spot-risk-engine/internal/strategy"
)

// Validation errors
var (
	ErrInvalidFolds  = errors.New("validation requires at least 2 folds")
	ErrFoldTooShort  = errors.New("fold is not longer than the warm-up")
	ErrNoCandidates  = errors.New("parameter grid is empty")
	ErrCandidateFail = errors.New("candidate run failed")
)

// ValidationConfig configures k-fold validation.
type ValidationConfig struct {
	Folds              int     `json:"folds"`
	TopN               int     `json:"topN"`
	SlippagePct        float64 `json:"slippagePct"`
	BreakEvenBand      float64 `json:"breakEvenBand"`
	BootstrapResamples int     `json:"bootstrapResamples"`
	Seed               uint64  `json:"seed"`
}

// DefaultValidationConfig returns validation defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		Folds:              4,
		TopN:               3,
		SlippagePct:        0.0005,
		BreakEvenBand:      DefaultBreakEvenBand,
		BootstrapResamples: 2000,
		Seed:               42,
	}
}

// Candidate is one point of the parameter grid.
type Candidate struct {
	Name     string
	Strategy domain.StrategyConfig
	Signal   signal.Thresholds
}

// Grid returns the cartesian product of strategy configs and signal
// thresholds, named in grid order.
func Grid(strategies []domain.StrategyConfig, thresholds []signal.Thresholds) []Candidate {
	out := make([]Candidate, 0, len(strategies)*len(thresholds))
	for si, s := range strategies {
		for ti, th := range thresholds {
			out = append(out, Candidate{
				Name:     fmt.Sprintf("%s#s%d-t%d", s.StrategyType, si, ti),
				Strategy: s,
				Signal:   th,
			})
		}
	}
	return out
}

// Fold is a contiguous index range [Start, End).
type Fold struct {
	Index int
	Start int
	End   int
}

// Folds splits n bars into k contiguous folds; the last fold absorbs the
// remainder. Every fold must be longer than warmUp.
func Folds(n, k, warmUp int) ([]Fold, error) {
	if k < 2 {
		return nil, ErrInvalidFolds
	}
	size := n / k
	if size <= warmUp {
		return nil, fmt.Errorf("%w: %d bars per fold, warm-up %d", ErrFoldTooShort, size, warmUp)
	}
	folds := make([]Fold, k)
	for i := range folds {
		end := (i + 1) * size
		if i == k-1 {
			end = n
		}
		folds[i] = Fold{Index: i, Start: i * size, End: end}
	}
	return folds, nil
}

// CandidateScore is a candidate's cross-fold score.
type CandidateScore struct {
	Candidate   Candidate
	StrategyID  string
	FoldScores  []float64
	FoldResults []*Result
	MeanScore   float64
	StdScore    float64
	Consistency float64
	Rank        float64
}

// FullRun is a top candidate re-run on the full series.
type FullRun struct {
	Score     CandidateScore
	Result    *Result
	RStats    RStats
	Bootstrap BootstrapResult
}

// ValidationReport is the outcome of Validate.
type ValidationReport struct {
	Symbol     string
	Bars       int
	Folds      []Fold
	Candidates []CandidateScore // best first
	Top        []FullRun        // best first
}

// Best returns the top full run, nil when none.
func (r *ValidationReport) Best() *FullRun {
	if len(r.Top) == 0 {
		return nil
	}
	return &r.Top[0]
}

// StrategyFactory builds a fresh strategy per run.
type StrategyFactory func(domain.StrategyConfig) (strategy.Strategy, error)

// Validator runs k-fold validation over a parameter grid. Each run gets its
// own Engine and strategy instance.
type Validator struct {
	base    Config
	cfg     ValidationConfig
	factory StrategyFactory
}

// NewValidator creates a validator. base supplies everything but the
// candidate's signal thresholds. A nil factory means strategy.FromConfig.
func NewValidator(base Config, cfg ValidationConfig, factory StrategyFactory) *Validator {
	if factory == nil {
		factory = strategy.FromConfig
	}
	if cfg.BreakEvenBand <= 0 {
		cfg.BreakEvenBand = DefaultBreakEvenBand
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 1
	}
	return &Validator{base: base, cfg: cfg, factory: factory}
}

// Config returns the validation configuration.
func (v *Validator) Config() ValidationConfig {
	return v.cfg
}

// Validate scores every candidate on each fold, ranks them and re-runs the
// top N on the full series with R-multiple and bootstrap statistics.
func (v *Validator) Validate(candles []domain.Candle, candidates []Candidate) (*ValidationReport, error) {
	if len(candles) == 0 {
		return nil, ErrEmptySeries
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	folds, err := Folds(len(candles), v.cfg.Folds, v.base.WarmUp)
	if err != nil {
		return nil, err
	}

	scores := make([]CandidateScore, 0, len(candidates))
	for _, c := range candidates {
		cs := CandidateScore{Candidate: c}
		for _, f := range folds {
			res, id, err := v.run(candles, c, f.Start, f.End)
			if err != nil {
				return nil, fmt.Errorf("%w: %s fold %d: %w", ErrCandidateFail, c.Name, f.Index, err)
			}
			cs.StrategyID = id
			cs.FoldResults = append(cs.FoldResults, res)
			cs.FoldScores = append(cs.FoldScores, FoldScore(res))
		}
		cs.MeanScore = metrics.Mean(cs.FoldScores)
		cs.StdScore = metrics.Stddev(cs.FoldScores, cs.MeanScore)
		cs.Consistency = Consistency(cs.FoldScores)
		cs.Rank = RankScore(cs.MeanScore, cs.Consistency)
		scores = append(scores, cs)
	}

	// grid order breaks ties
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Rank > scores[j].Rank
	})

	topN := v.cfg.TopN
	if topN > len(scores) {
		topN = len(scores)
	}
	top := make([]FullRun, 0, topN)
	for _, cs := range scores[:topN] {
		res, _, err := v.run(candles, cs.Candidate, 0, len(candles))
		if err != nil {
			return nil, fmt.Errorf("%w: %s full run: %w", ErrCandidateFail, cs.Candidate.Name, err)
		}
		rstats := ComputeRStats(res.Trades, v.cfg.SlippagePct, v.cfg.BreakEvenBand)
		top = append(top, FullRun{
			Score:     cs,
			Result:    res,
			RStats:    rstats,
			Bootstrap: Bootstrap(rstats.RMultiples, v.cfg.BootstrapResamples, v.cfg.Seed),
		})
	}

	return &ValidationReport{
		Symbol:     v.base.Symbol,
		Bars:       len(candles),
		Folds:      folds,
		Candidates: scores,
		Top:        top,
	}, nil
}

// run replays one candidate over [start, end) with a fresh engine.
func (v *Validator) run(candles []domain.Candle, c Candidate, start, end int) (*Result, string, error) {
	strat, err := v.factory(c.Strategy)
	if err != nil {
		return nil, "", err
	}
	cfg := v.base
	cfg.Signal = c.Signal
	eng, err := NewEngine(cfg, Options{Decider: strat, Exiter: strat})
	if err != nil {
		return nil, "", err
	}
	res, err := eng.RunRange(candles, start, end)
	if err != nil {
		return nil, "", err
	}
	return res, strat.ID(), nil
}
