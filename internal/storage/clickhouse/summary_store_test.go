package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
)

func testSummary(runID, strategyID string) *domain.RunSummary {
	return &domain.RunSummary{
		RunID:                runID,
		Symbol:               "BTCUSDT",
		StrategyID:           strategyID,
		TotalTrades:          4,
		Wins:                 1,
		Losses:               3,
		WinRate:              0.25,
		PnlMean:              -0.2,
		PnlMedian:            -0.5,
		PnlP10:               -1.1,
		PnlP25:               -1,
		PnlP75:               0.4,
		PnlP90:               2.3,
		PnlMin:               -1.2,
		PnlMax:               3.9,
		PnlStddev:            2.3,
		TotalPnl:             -8.4,
		MaxDrawdown:          3.1,
		MaxConsecutiveLosses: 3,
		AvgBarsHeld:          6.5,
		ExitReasons: map[domain.ExitReason]int{
			domain.ExitReasonStopLoss:   3,
			domain.ExitReasonTakeProfit: 1,
		},
	}
}

func TestSummaryStore_InsertAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSummaryStore(conn)
	ctx := context.Background()

	sum := testSummary("run-1", "s1")
	require.NoError(t, store.Insert(ctx, sum))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, sum, got)

	assert.ErrorIs(t, store.Insert(ctx, sum), storage.ErrDuplicateKey)

	_, err = store.GetByRunID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSummaryStore_GetByStrategy(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSummaryStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSummary("run-2", "s1")))
	require.NoError(t, store.Insert(ctx, testSummary("run-1", "s1")))
	require.NoError(t, store.Insert(ctx, testSummary("run-3", "s2")))

	got, err := store.GetByStrategy(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-1", got[0].RunID)
	assert.Equal(t, "run-2", got[1].RunID)
}
