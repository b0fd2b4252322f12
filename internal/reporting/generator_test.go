package reporting

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/signal"
	"spot-risk-engine/internal/simulation"
	"spot-risk-engine/internal/storage"
	"spot-risk-engine/internal/storage/memory"
)

var fixedTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func ptrFloat(v float64) *float64 { return &v }

func setupTestData(t *testing.T) (*memory.RunStore, *memory.TradeStore, *memory.SummaryStore) {
	ctx := context.Background()

	runStore := memory.NewRunStore()
	tradeStore := memory.NewTradeStore()
	summaryStore := memory.NewSummaryStore()

	runs := []*domain.BacktestRun{
		{
			RunID: "run-b", Symbol: "BTCUSDT", Interval: "1h", StrategyID: "knn_ribbon", Mode: domain.RunModeValidation,
			StartIndex: 0, EndIndex: 500, FirstBarMs: 1_000_000, LastBarMs: 9_000_000,
			PnlPercent: 4.2, MaxDrawdownPct: 3.1, TradeCount: 2, CreatedAt: 2,
			BootstrapP5: ptrFloat(0.05), BootstrapP95: ptrFloat(0.9), SafeForLive: true,
		},
		{
			RunID: "run-a", Symbol: "BTCUSDT", Interval: "1h", StrategyID: "breakout_retest", Mode: domain.RunModeBacktest,
			StartIndex: 100, EndIndex: 400, FirstBarMs: 500_000, LastBarMs: 8_000_000,
			PnlPercent: -1.5, MaxDrawdownPct: 2.0, TradeCount: 3, CreatedAt: 1,
		},
	}
	for _, r := range runs {
		if err := runStore.Insert(ctx, r); err != nil {
			t.Fatalf("Insert run failed: %v", err)
		}
	}

	trades := []*domain.BacktestTrade{
		{TradeID: "a1", RunID: "run-a", Symbol: "BTCUSDT", EntryIndex: 110, ExitIndex: 115, Pnl: -10, PnlPercent: -1.0, ExitReason: domain.ExitReasonStopLoss},
		{TradeID: "a2", RunID: "run-a", Symbol: "BTCUSDT", EntryIndex: 200, ExitIndex: 210, Pnl: 5, PnlPercent: 0.5, ExitReason: domain.ExitReasonTakeProfit},
		{TradeID: "a3", RunID: "run-a", Symbol: "BTCUSDT", EntryIndex: 300, ExitIndex: 303, Pnl: -10, PnlPercent: -1.0, ExitReason: domain.ExitReasonStopLoss},
		{TradeID: "b1", RunID: "run-b", Symbol: "BTCUSDT", EntryIndex: 50, ExitIndex: 60, Pnl: 30, PnlPercent: 3.0, ExitReason: domain.ExitReasonTakeProfit},
		{TradeID: "b2", RunID: "run-b", Symbol: "BTCUSDT", EntryIndex: 70, ExitIndex: 75, Pnl: 12, PnlPercent: 1.2, ExitReason: domain.ExitReasonSignal},
	}
	if err := tradeStore.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk trades failed: %v", err)
	}

	// Only run-b has a stored summary; run-a is recomputed from trades.
	err := summaryStore.Insert(ctx, &domain.RunSummary{
		RunID: "run-b", Symbol: "BTCUSDT", StrategyID: "knn_ribbon",
		TotalTrades: 2, Wins: 2, WinRate: 1, PnlMedian: 2.1, PnlP10: 1.2, PnlP90: 3.0, AvgBarsHeld: 7.5,
		ExitReasons: map[domain.ExitReason]int{domain.ExitReasonTakeProfit: 1, domain.ExitReasonSignal: 1},
	})
	if err != nil {
		t.Fatalf("Insert summary failed: %v", err)
	}

	return runStore, tradeStore, summaryStore
}

func TestGenerator_ForSymbol(t *testing.T) {
	runs, trades, summaries := setupTestData(t)
	g := NewGenerator(runs, trades, summaries).WithClock(func() time.Time { return fixedTime })

	report, err := g.ForSymbol(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("ForSymbol failed: %v", err)
	}

	if !report.GeneratedAt.Equal(fixedTime) {
		t.Errorf("GeneratedAt: expected %v, got %v", fixedTime, report.GeneratedAt)
	}
	if report.DataSummary.RunCount != 2 {
		t.Errorf("RunCount: expected 2, got %d", report.DataSummary.RunCount)
	}
	if report.DataSummary.TotalTrades != 5 {
		t.Errorf("TotalTrades: expected 5, got %d", report.DataSummary.TotalTrades)
	}
	if report.DataSummary.TotalBars != 800 {
		t.Errorf("TotalBars: expected 800, got %d", report.DataSummary.TotalBars)
	}
	if report.DataSummary.FirstBarMs != 500_000 || report.DataSummary.LastBarMs != 9_000_000 {
		t.Errorf("bar range: got %d..%d", report.DataSummary.FirstBarMs, report.DataSummary.LastBarMs)
	}

	// Sorted by strategy_id
	if len(report.Runs) != 2 || report.Runs[0].RunID != "run-a" || report.Runs[1].RunID != "run-b" {
		t.Fatalf("unexpected run order: %+v", report.Runs)
	}

	a := report.Runs[0]
	if a.Trades != 3 || a.MaxConsecutiveLosses != 1 {
		t.Errorf("run-a summary recomputed wrong: %+v", a)
	}
	if a.HasBootstrap {
		t.Error("run-a has no bootstrap")
	}
	b := report.Runs[1]
	if b.PnlMedian != 2.1 || !b.HasBootstrap || b.BootstrapP5 != 0.05 || !b.SafeForLive {
		t.Errorf("run-b should use stored summary: %+v", b)
	}

	want := []CountRow{
		{Key: "SIGNAL", Count: 1},
		{Key: "STOP_LOSS", Count: 2},
		{Key: "TAKE_PROFIT", Count: 2},
	}
	if len(report.ExitReasons) != len(want) {
		t.Fatalf("ExitReasons: expected %v, got %v", want, report.ExitReasons)
	}
	for i := range want {
		if report.ExitReasons[i] != want[i] {
			t.Errorf("ExitReasons[%d]: expected %v, got %v", i, want[i], report.ExitReasons[i])
		}
	}
}

func TestGenerator_ForRun(t *testing.T) {
	runs, trades, _ := setupTestData(t)
	g := NewGenerator(runs, trades, nil).WithClock(func() time.Time { return fixedTime })

	report, err := g.ForRun(context.Background(), "run-b")
	if err != nil {
		t.Fatalf("ForRun failed: %v", err)
	}
	if len(report.Runs) != 1 || report.Runs[0].Trades != 2 {
		t.Fatalf("unexpected runs: %+v", report.Runs)
	}
	// Without a summary store the median comes from trade PnlPercent.
	if math.Abs(report.Runs[0].PnlMedian-2.1) > 1e-9 {
		t.Errorf("PnlMedian: expected 2.1, got %f", report.Runs[0].PnlMedian)
	}

	_, err = g.ForRun(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerator_ForSymbolNoRuns(t *testing.T) {
	runs, trades, summaries := setupTestData(t)
	g := NewGenerator(runs, trades, summaries)

	if _, err := g.ForSymbol(context.Background(), "ETHUSDT"); !errors.Is(err, ErrNoRuns) {
		t.Errorf("expected ErrNoRuns, got %v", err)
	}
}

func TestGenerator_FromResult(t *testing.T) {
	res := &simulation.Result{
		Symbol:         "SOLUSDT",
		StartIndex:     10,
		EndIndex:       110,
		FirstBarMs:     3_600_000,
		LastBarMs:      360_000_000,
		PnlPercent:     1.25,
		MaxDrawdownPct: 0.8,
		Trades: []domain.BacktestTrade{
			{EntryIndex: 20, ExitIndex: 25, Pnl: 8, PnlPercent: 0.8, ExitReason: domain.ExitReasonTakeProfit},
			{EntryIndex: 40, ExitIndex: 41, Pnl: -3, PnlPercent: -0.3, ExitReason: domain.ExitReasonStopLoss},
		},
		Rejections: map[string]int{"GUARD_COOLDOWN": 2, "RISK_TOO_LARGE": 1},
	}

	g := NewGenerator(nil, nil, nil).WithClock(func() time.Time { return fixedTime })
	report := g.FromResult("breakout_retest", res)

	if report.DataSummary.TotalBars != 100 || report.DataSummary.TotalTrades != 2 {
		t.Errorf("unexpected data summary: %+v", report.DataSummary)
	}
	if report.Runs[0].WinRate != 0.5 || report.Runs[0].StrategyID != "breakout_retest" {
		t.Errorf("unexpected row: %+v", report.Runs[0])
	}
	if len(report.Rejections) != 2 || report.Rejections[0].Key != "GUARD_COOLDOWN" {
		t.Errorf("unexpected rejections: %+v", report.Rejections)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Backtest SOLUSDT",
		"Generated: 2026-01-15T12:00:00Z",
		"| Bars | 100 |",
		"| STOP_LOSS | 1 |",
		"## Entry Rejections",
		"| RISK_TOO_LARGE | 1 |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func validationFixture() *simulation.ValidationReport {
	th := signal.DefaultThresholds()
	cand := func(name string, mean, rank float64) simulation.CandidateScore {
		return simulation.CandidateScore{
			Candidate:   simulation.Candidate{Name: name, Signal: th},
			StrategyID:  "breakout_retest",
			MeanScore:   mean,
			Consistency: 0.6,
			Rank:        rank,
		}
	}
	winners := make([]domain.BacktestTrade, 12)
	for i := range winners {
		winners[i] = domain.BacktestTrade{EntryIndex: i * 10, ExitIndex: i*10 + 3, Pnl: 5, PnlPercent: 0.5, ExitReason: domain.ExitReasonTakeProfit}
	}
	best := cand("breakout_retest#s0-t0", 2.0, 1.72)
	second := cand("breakout_retest#s1-t0", 1.0, 0.92)
	third := cand("breakout_retest#s2-t0", -1.0, -0.8)

	return &simulation.ValidationReport{
		Symbol:     "BTCUSDT",
		Bars:       600,
		Candidates: []simulation.CandidateScore{best, second, third},
		Top: []simulation.FullRun{
			{
				Score:     best,
				Result:    &simulation.Result{Symbol: "BTCUSDT", FirstBarMs: 1000, LastBarMs: 2000, PnlPercent: 6, MaxDrawdownPct: 2, Trades: winners, Rejections: map[string]int{"GUARD_COOLDOWN": 3}},
				RStats:    simulation.RStats{Expectancy: 0.4},
				Bootstrap: simulation.BootstrapResult{Computed: true, Trades: 12, P5: 0.1, P50: 0.4, P95: 0.7, SafeForLive: true},
			},
			{
				Score:     second,
				Result:    &simulation.Result{Symbol: "BTCUSDT", FirstBarMs: 1000, LastBarMs: 2000, PnlPercent: 1, MaxDrawdownPct: 4, Trades: winners[:3]},
				RStats:    simulation.RStats{Expectancy: 0.2},
				Bootstrap: simulation.BootstrapResult{Trades: 3},
			},
		},
	}
}

func TestGenerator_FromValidation(t *testing.T) {
	g := NewGenerator(nil, nil, nil).WithClock(func() time.Time { return fixedTime })
	report, err := g.FromValidation(validationFixture())
	if err != nil {
		t.Fatalf("FromValidation failed: %v", err)
	}

	if len(report.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(report.Candidates))
	}
	first, second, third := report.Candidates[0], report.Candidates[1], report.Candidates[2]
	if first.Rank != 1 || !first.FullRun || first.Decision != "GO" {
		t.Errorf("best candidate: %+v", first)
	}
	if second.Decision != "NO-GO" {
		t.Errorf("second candidate should be NO-GO with 3 trades, got %q", second.Decision)
	}
	if third.FullRun || third.Decision != "" {
		t.Errorf("third candidate has no full run: %+v", third)
	}
	if len(first.CandidateID) != 64 {
		t.Errorf("candidate id should be a sha256 hex, got %q", first.CandidateID)
	}
	if report.DataSummary.RunCount != 2 || report.DataSummary.TotalTrades != 15 || report.DataSummary.TotalBars != 600 {
		t.Errorf("unexpected data summary: %+v", report.DataSummary)
	}
	if len(report.Rejections) != 1 || report.Rejections[0].Count != 3 {
		t.Errorf("unexpected rejections: %+v", report.Rejections)
	}

	csv := RenderCandidatesCSV(report.Candidates)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(lines))
	}
	header := strings.Count(lines[0], ",")
	for i, line := range lines[1:] {
		if strings.Count(line, ",") != header {
			t.Errorf("row %d has %d separators, header has %d", i, strings.Count(line, ","), header)
		}
	}
	if !strings.HasSuffix(lines[1], ",true,GO") {
		t.Errorf("unexpected best row: %s", lines[1])
	}

	md := RenderMarkdown(report)
	if !strings.Contains(md, "## Candidates") || !strings.Contains(md, "| 3 | breakout_retest#s2-t0 |") {
		t.Errorf("markdown missing candidates table:\n%s", md)
	}
}

func TestRenderRunsCSV(t *testing.T) {
	runs, trades, summaries := setupTestData(t)
	report, err := NewGenerator(runs, trades, summaries).ForSymbol(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("ForSymbol failed: %v", err)
	}

	csv := RenderRunsCSV(report.Runs)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[1], "run-a,BTCUSDT,breakout_retest,backtest,3,") {
		t.Errorf("unexpected first row: %s", lines[1])
	}
	if !strings.HasSuffix(lines[1], ",,,false") {
		t.Errorf("run-a should have empty bootstrap columns: %s", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",0.050000,0.900000,true") {
		t.Errorf("unexpected run-b bootstrap columns: %s", lines[2])
	}
}

func TestRenderTradesCSV(t *testing.T) {
	csv := RenderTradesCSV([]domain.BacktestTrade{{
		TradeID: "t1", RunID: "r1", Symbol: "BTCUSDT", Side: domain.SideBuy,
		EntryIndex: 5, EntryTime: 1000, EntryPrice: 100, InitialStopLoss: 98, TargetPrice: 104,
		Quantity: 0.5, RiskAmount: 1.1, ExitIndex: 9, ExitTime: 2000, ExitPrice: 104,
		ExitReason: domain.ExitReasonTakeProfit, Pnl: 1.9, PnlPercent: 3.8,
	}})
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if strings.Count(lines[0], ",") != strings.Count(lines[1], ",") {
		t.Errorf("column mismatch:\n%s\n%s", lines[0], lines[1])
	}
	if !strings.HasPrefix(lines[1], "t1,r1,BTCUSDT,BUY,5,1000,") || !strings.Contains(lines[1], ",TAKE_PROFIT,") {
		t.Errorf("unexpected row: %s", lines[1])
	}
}
