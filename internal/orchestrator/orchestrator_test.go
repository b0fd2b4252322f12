package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"spot-risk-engine/internal/backtest"
	"spot-risk-engine/internal/config"
	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/metrics"
	"spot-risk-engine/internal/storage/memory"
)

var hourly = backtest.Request{Interval: "1h"}

type testStores struct {
	candles   *memory.CandleStore
	runs      *memory.RunStore
	trades    *memory.TradeStore
	summaries *memory.SummaryStore
}

func createTestStores() *testStores {
	return &testStores{
		candles:   memory.NewCandleStore(),
		runs:      memory.NewRunStore(),
		trades:    memory.NewTradeStore(),
		summaries: memory.NewSummaryStore(),
	}
}

func seedSymbol(t *testing.T, s *testStores, symbol string, n int, phase float64) {
	t.Helper()
	candles := make([]domain.Candle, n)
	for i := range candles {
		p := 50 * (1 + 0.0004*float64(i)) * (1 + 0.025*math.Sin(float64(i)/5+phase))
		candles[i] = domain.Candle{
			Timestamp: 1_700_000_000_000 + int64(i)*int64(time.Hour/time.Millisecond),
			Open:      p, High: p * 1.005, Low: p * 0.995, Close: p,
			Volume: 800 + float64(i%7)*60,
		}
	}
	if err := s.candles.InsertBulk(context.Background(), symbol, "1h", candles); err != nil {
		t.Fatalf("seed %s: %v", symbol, err)
	}
}

func newRunner(t *testing.T, s *testStores, cfg config.Config) *backtest.Runner {
	t.Helper()
	var seq atomic.Int64
	r, err := backtest.NewRunner(cfg, backtest.Options{
		Candles: s.candles,
		Runs:    s.runs,
		Trades:  s.trades,
		NewRunID: func() string {
			return fmt.Sprintf("run-%d", seq.Add(1))
		},
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func TestOrchestrator_Run_NoSymbols(t *testing.T) {
	stores := createTestStores()
	orch := New(Options{Runner: newRunner(t, stores, config.Default()), Candles: stores.candles})

	result, err := orch.Run(context.Background(), ModeBacktest, hourly, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(result.Symbols) != 0 || result.Succeeded != 0 || result.Failed != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
}

func TestOrchestrator_Run_UnknownMode(t *testing.T) {
	stores := createTestStores()
	orch := New(Options{Runner: newRunner(t, stores, config.Default())})

	if _, err := orch.Run(context.Background(), "replay", hourly, []string{"BTCUSDT"}); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}

func TestOrchestrator_Run_BacktestDiscoversSymbols(t *testing.T) {
	ctx := context.Background()
	stores := createTestStores()
	seedSymbol(t, stores, "SOLUSDT", 300, 0)
	seedSymbol(t, stores, "BTCUSDT", 300, 1)
	seedSymbol(t, stores, "ETHUSDT", 300, 2)

	orch := New(Options{
		Runner:      newRunner(t, stores, config.Default()),
		Candles:     stores.candles,
		Aggregator:  metrics.NewAggregator(stores.runs, stores.trades, stores.summaries),
		Concurrency: 2,
	})

	result, err := orch.Run(ctx, ModeBacktest, hourly, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Succeeded != 3 || result.Failed != 0 {
		t.Fatalf("expected 3 successes, got %+v", result)
	}
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	for i, r := range result.Symbols {
		if r.Symbol != want[i] {
			t.Errorf("symbol %d: expected %s, got %s", i, want[i], r.Symbol)
		}
		if r.Backtest == nil || r.Backtest.Result.Symbol != r.Symbol {
			t.Errorf("%s: result belongs to another engine", r.Symbol)
		}
		if _, err := stores.runs.GetByID(ctx, r.Backtest.Run.RunID); err != nil {
			t.Errorf("%s: run not persisted: %v", r.Symbol, err)
		}
		if len(r.Backtest.Result.Trades) > 0 {
			if _, err := stores.summaries.GetByRunID(ctx, r.Backtest.Run.RunID); err != nil {
				t.Errorf("%s: aggregator did not store summary: %v", r.Symbol, err)
			}
		}
	}
}

func TestOrchestrator_Run_FailureIsolated(t *testing.T) {
	stores := createTestStores()
	seedSymbol(t, stores, "BTCUSDT", 300, 0)

	orch := New(Options{Runner: newRunner(t, stores, config.Default())})
	result, err := orch.Run(context.Background(), ModeBacktest, hourly, []string{"BTCUSDT", "MISSING"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("expected 1/1, got %+v", result)
	}
	missing := result.Symbols[1]
	if missing.Symbol != "MISSING" || !errors.Is(missing.Err, backtest.ErrNoCandles) {
		t.Errorf("expected ErrNoCandles for MISSING, got %+v", missing)
	}
}

func TestOrchestrator_Run_Validation(t *testing.T) {
	stores := createTestStores()
	seedSymbol(t, stores, "BTCUSDT", 500, 0)
	seedSymbol(t, stores, "ETHUSDT", 500, 1.5)

	cfg := config.Default()
	cfg.Simulation.WarmUp = 20
	orch := New(Options{Runner: newRunner(t, stores, cfg), Candles: stores.candles})

	result, err := orch.Run(context.Background(), ModeValidation, hourly, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Succeeded != 2 {
		t.Fatalf("expected 2 successes, got %+v", result)
	}
	for _, r := range result.Symbols {
		if r.Validation == nil || r.Validation.Report.Symbol != r.Symbol {
			t.Errorf("%s: missing or foreign validation report", r.Symbol)
			continue
		}
		if r.Validation.Decision == nil {
			t.Errorf("%s: missing decision", r.Symbol)
		}
	}
}

func TestOrchestrator_Run_Cancelled(t *testing.T) {
	stores := createTestStores()
	seedSymbol(t, stores, "BTCUSDT", 300, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := New(Options{Runner: newRunner(t, stores, config.Default())})
	if _, err := orch.Run(ctx, ModeBacktest, hourly, []string{"BTCUSDT"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
