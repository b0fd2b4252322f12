package metrics

import (
	"context"
	"errors"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator computes run summaries from stored trades.
type Aggregator struct {
	runStore     storage.RunStore
	tradeStore   storage.TradeStore
	summaryStore storage.SummaryStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(runStore storage.RunStore, tradeStore storage.TradeStore, summaryStore storage.SummaryStore) *Aggregator {
	return &Aggregator{
		runStore:     runStore,
		tradeStore:   tradeStore,
		summaryStore: summaryStore,
	}
}

// ComputeRunSummary loads a run and its trades and computes the summary.
// Returns ErrNoTrades if the run closed no trades.
func (a *Aggregator) ComputeRunSummary(ctx context.Context, runID string) (*domain.RunSummary, error) {
	run, err := a.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	trades, err := a.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	values := make([]domain.BacktestTrade, len(trades))
	for i, t := range trades {
		values[i] = *t
	}

	summary := Summarize(values)
	summary.RunID = run.RunID
	summary.Symbol = run.Symbol
	summary.StrategyID = run.StrategyID
	return summary, nil
}

// ComputeAndStore computes and persists a run summary.
// Returns storage.ErrDuplicateKey if the summary already exists (append-only).
func (a *Aggregator) ComputeAndStore(ctx context.Context, runID string) (*domain.RunSummary, error) {
	summary, err := a.ComputeRunSummary(ctx, runID)
	if err != nil {
		return nil, err
	}

	if err := a.summaryStore.Insert(ctx, summary); err != nil {
		return nil, err
	}

	return summary, nil
}

// StrategyTotals pools every stored summary of a strategy.
type StrategyTotals struct {
	StrategyID  string
	Runs        int
	TotalTrades int
	Wins        int
	WinRate     float64
	TotalPnl    float64
	MeanPnlPct  float64 // trade-weighted mean of per-run PnlMean
}

// Totals pools stored summaries for a strategy. Returns ErrNoTrades when
// none exist.
func (a *Aggregator) Totals(ctx context.Context, strategyID string) (*StrategyTotals, error) {
	summaries, err := a.summaryStore.GetByStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}

	t := &StrategyTotals{StrategyID: strategyID}
	weighted := 0.0
	for _, s := range summaries {
		t.Runs++
		t.TotalTrades += s.TotalTrades
		t.Wins += s.Wins
		t.TotalPnl += s.TotalPnl
		weighted += s.PnlMean * float64(s.TotalTrades)
	}
	if t.TotalTrades == 0 {
		return nil, ErrNoTrades
	}
	t.WinRate = WinRate(t.Wins, t.TotalTrades)
	t.MeanPnlPct = weighted / float64(t.TotalTrades)
	return t, nil
}
