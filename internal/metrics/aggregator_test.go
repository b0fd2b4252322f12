package metrics

import (
	"context"
	"errors"
	"math"
	"testing"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
	"spot-risk-engine/internal/storage/memory"
)

// Helper to create a trade with specific outcome.
func makeTrade(id, runID string, entryIndex int, pnl, pnlPct float64, reason domain.ExitReason) *domain.BacktestTrade {
	return &domain.BacktestTrade{
		TradeID:    id,
		RunID:      runID,
		Symbol:     "BTCUSDT",
		EntryIndex: entryIndex,
		ExitIndex:  entryIndex + 4,
		Pnl:        pnl,
		PnlPercent: pnlPct,
		ExitReason: reason,
	}
}

func setupAggregator(t *testing.T) (*Aggregator, *memory.SummaryStore) {
	t.Helper()
	ctx := context.Background()

	runStore := memory.NewRunStore()
	tradeStore := memory.NewTradeStore()
	summaryStore := memory.NewSummaryStore()

	for _, r := range []*domain.BacktestRun{
		{RunID: "r1", Symbol: "BTCUSDT", StrategyID: "breakout_retest", CreatedAt: 1},
		{RunID: "r2", Symbol: "ETHUSDT", StrategyID: "breakout_retest", CreatedAt: 2},
		{RunID: "empty", Symbol: "BTCUSDT", StrategyID: "knn_ribbon", CreatedAt: 3},
	} {
		if err := runStore.Insert(ctx, r); err != nil {
			t.Fatalf("Insert run failed: %v", err)
		}
	}

	trades := []*domain.BacktestTrade{
		makeTrade("t3", "r1", 30, 15, 1.5, domain.ExitReasonTakeProfit),
		makeTrade("t1", "r1", 10, 10, 1.0, domain.ExitReasonTakeProfit),
		makeTrade("t2", "r1", 20, -5, -0.5, domain.ExitReasonStopLoss),
		makeTrade("t4", "r1", 40, -2, -0.2, domain.ExitReasonSignal),
		makeTrade("u1", "r2", 5, 8, 0.8, domain.ExitReasonEnd),
	}
	if err := tradeStore.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	return NewAggregator(runStore, tradeStore, summaryStore), summaryStore
}

func TestComputeRunSummary(t *testing.T) {
	agg, _ := setupAggregator(t)

	s, err := agg.ComputeRunSummary(context.Background(), "r1")
	if err != nil {
		t.Fatalf("ComputeRunSummary failed: %v", err)
	}

	if s.RunID != "r1" || s.Symbol != "BTCUSDT" || s.StrategyID != "breakout_retest" {
		t.Errorf("identity not copied from run: %+v", s)
	}
	if s.TotalTrades != 4 || s.Wins != 2 || s.Losses != 2 {
		t.Errorf("counts: got trades=%d wins=%d losses=%d", s.TotalTrades, s.Wins, s.Losses)
	}
	if s.WinRate != 0.5 {
		t.Errorf("WinRate: expected 0.5, got %f", s.WinRate)
	}
	if s.TotalPnl != 18 {
		t.Errorf("TotalPnl: expected 18, got %f", s.TotalPnl)
	}
	// Entry order: +1.0, -0.5, +1.5, -0.2
	if s.MaxConsecutiveLosses != 1 {
		t.Errorf("MaxConsecutiveLosses: expected 1, got %d", s.MaxConsecutiveLosses)
	}
	if math.Abs(s.MaxDrawdown-0.5) > 1e-9 {
		t.Errorf("MaxDrawdown: expected 0.5, got %f", s.MaxDrawdown)
	}
	if s.ExitReasons[domain.ExitReasonTakeProfit] != 2 || s.ExitReasons[domain.ExitReasonSignal] != 1 {
		t.Errorf("ExitReasons: %v", s.ExitReasons)
	}
}

func TestComputeRunSummary_Errors(t *testing.T) {
	agg, _ := setupAggregator(t)
	ctx := context.Background()

	if _, err := agg.ComputeRunSummary(ctx, "empty"); !errors.Is(err, ErrNoTrades) {
		t.Errorf("expected ErrNoTrades, got %v", err)
	}
	if _, err := agg.ComputeRunSummary(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestComputeAndStore_AppendOnly(t *testing.T) {
	agg, summaries := setupAggregator(t)
	ctx := context.Background()

	if _, err := agg.ComputeAndStore(ctx, "r1"); err != nil {
		t.Fatalf("ComputeAndStore failed: %v", err)
	}
	stored, err := summaries.GetByRunID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if stored.TotalTrades != 4 {
		t.Errorf("stored TotalTrades: expected 4, got %d", stored.TotalTrades)
	}

	if _, err := agg.ComputeAndStore(ctx, "r1"); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("second store: expected ErrDuplicateKey, got %v", err)
	}
}

func TestTotals(t *testing.T) {
	agg, _ := setupAggregator(t)
	ctx := context.Background()

	if _, err := agg.Totals(ctx, "breakout_retest"); !errors.Is(err, ErrNoTrades) {
		t.Fatalf("no summaries yet: expected ErrNoTrades, got %v", err)
	}

	for _, id := range []string{"r1", "r2"} {
		if _, err := agg.ComputeAndStore(ctx, id); err != nil {
			t.Fatalf("ComputeAndStore(%s) failed: %v", id, err)
		}
	}

	totals, err := agg.Totals(ctx, "breakout_retest")
	if err != nil {
		t.Fatalf("Totals failed: %v", err)
	}
	if totals.Runs != 2 || totals.TotalTrades != 5 || totals.Wins != 3 {
		t.Errorf("unexpected totals: %+v", totals)
	}
	if totals.WinRate != 0.6 {
		t.Errorf("WinRate: expected 0.6, got %f", totals.WinRate)
	}
	// (0.45*4 + 0.8*1) / 5
	if math.Abs(totals.MeanPnlPct-0.52) > 1e-9 {
		t.Errorf("MeanPnlPct: expected 0.52, got %f", totals.MeanPnlPct)
	}
}
