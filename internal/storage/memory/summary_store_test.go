package memory

import (
	"context"
	"errors"
	"testing"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
)

func TestSummaryStore_InsertAndGet(t *testing.T) {
	store := NewSummaryStore()
	ctx := context.Background()

	sum := &domain.RunSummary{
		RunID:       "run1",
		StrategyID:  "s1",
		TotalTrades: 3,
		ExitReasons: map[domain.ExitReason]int{domain.ExitReasonStopLoss: 2, domain.ExitReasonEnd: 1},
	}
	if err := store.Insert(ctx, sum); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	sum.ExitReasons[domain.ExitReasonStopLoss] = 9

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if got.ExitReasons[domain.ExitReasonStopLoss] != 2 {
		t.Errorf("ExitReasons shared with caller: %v", got.ExitReasons)
	}

	if err := store.Insert(ctx, sum); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByRunID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSummaryStore_GetByStrategy(t *testing.T) {
	store := NewSummaryStore()
	ctx := context.Background()

	for _, s := range []*domain.RunSummary{
		{RunID: "r2", StrategyID: "s1"},
		{RunID: "r1", StrategyID: "s1"},
		{RunID: "r3", StrategyID: "s2"},
	} {
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByStrategy(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByStrategy failed: %v", err)
	}
	if len(got) != 2 || got[0].RunID != "r1" {
		t.Errorf("Unexpected summaries: %d", len(got))
	}
}
