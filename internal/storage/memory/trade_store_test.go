package memory

import (
	"context"
	"errors"
	"testing"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
)

func TestTradeStore_InsertBulkAndGet(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trades := []*domain.BacktestTrade{
		{TradeID: "t2", RunID: "run1", Symbol: "BTCUSDT", EntryIndex: 20, Pnl: -5},
		{TradeID: "t1", RunID: "run1", Symbol: "BTCUSDT", EntryIndex: 10, Pnl: 12.5},
		{TradeID: "t3", RunID: "run2", Symbol: "BTCUSDT", EntryIndex: 5},
	}
	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Pnl != 12.5 {
		t.Errorf("Pnl mismatch: got %f, want %f", got.Pnl, 12.5)
	}

	run1, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(run1) != 2 {
		t.Fatalf("Expected 2 trades, got %d", len(run1))
	}
	if run1[0].TradeID != "t1" || run1[1].TradeID != "t2" {
		t.Errorf("Expected entry index order, got %s, %s", run1[0].TradeID, run1[1].TradeID)
	}
}

func TestTradeStore_ReturnsCopies(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trade := &domain.BacktestTrade{TradeID: "t1", RunID: "run1", Pnl: 1}
	if err := store.InsertBulk(ctx, []*domain.BacktestTrade{trade}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	trade.Pnl = 99

	got, _ := store.GetByID(ctx, "t1")
	got.Pnl = 42

	again, _ := store.GetByID(ctx, "t1")
	if again.Pnl != 1 {
		t.Errorf("Store was mutated through a reference: %f", again.Pnl)
	}
}

func TestTradeStore_DuplicateFailsWholeBatch(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.BacktestTrade{{TradeID: "t1", RunID: "run1"}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.BacktestTrade{
		{TradeID: "t2", RunID: "run1"},
		{TradeID: "t1", RunID: "run1"},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	if _, err := store.GetByID(ctx, "t2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected t2 to be rolled back, got %v", err)
	}
}

func TestTradeStore_InvalidInput(t *testing.T) {
	store := NewTradeStore()

	err := store.InsertBulk(context.Background(), []*domain.BacktestTrade{{TradeID: "t1"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
