package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
)

func hourly(start int64, closes ...float64) []domain.Candle {
	out := make([]domain.Candle, len(closes))
	for i, c := range closes {
		out[i] = domain.Candle{
			Timestamp: start + int64(i)*3_600_000,
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100 + float64(i),
		}
	}
	return out
}

func TestCandleStore_InsertAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	candles := hourly(1_700_000_000_000, 100, 101, 102, 103, 104)
	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", "1h", candles))
	require.NoError(t, store.InsertBulk(ctx, "ETHUSDT", "1h", hourly(1_700_000_000_000, 10)))

	all, err := store.GetAll(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.Equal(t, candles, all)

	ranged, err := store.GetByTimeRange(ctx, "BTCUSDT", "1h", candles[1].Timestamp, candles[3].Timestamp)
	require.NoError(t, err)
	require.Len(t, ranged, 3)
	assert.Equal(t, candles[1], ranged[0])
	assert.Equal(t, candles[3], ranged[2])

	symbols, err := store.Symbols(ctx, "1h")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, symbols)

	none, err := store.GetAll(ctx, "BTCUSDT", "15m")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCandleStore_Duplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewCandleStore(conn)
	ctx := context.Background()

	candles := hourly(1_700_000_000_000, 100, 101)
	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", "1h", candles))

	// overlaps a stored bar
	err := store.InsertBulk(ctx, "BTCUSDT", "1h", hourly(candles[1].Timestamp, 101, 102))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// intra-batch
	dup := hourly(1_800_000_000_000, 1)
	err = store.InsertBulk(ctx, "BTCUSDT", "1h", append(dup, dup[0]))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := store.GetAll(ctx, "BTCUSDT", "1h")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// same timestamps on another interval are fine
	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", "4h", candles))
}
