package clickhouse

import (
	"context"
	"fmt"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
)

// CandleStore implements storage.CandleStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicates are checked before insert.
type CandleStore struct {
	conn *Conn
}

// NewCandleStore creates a new CandleStore.
func NewCandleStore(conn *Conn) *CandleStore {
	return &CandleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CandleStore = (*CandleStore)(nil)

// InsertBulk adds candles for one series. Fails entire batch on duplicate timestamp.
func (s *CandleStore) InsertBulk(ctx context.Context, symbol, interval string, candles []domain.Candle) error {
	if symbol == "" || interval == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	// Check for intra-batch duplicates and find the batch span
	seen := make(map[int64]struct{}, len(candles))
	lo, hi := candles[0].Timestamp, candles[0].Timestamp
	for _, c := range candles {
		if c.Timestamp < 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[c.Timestamp]; exists {
			return storage.ErrDuplicateKey
		}
		seen[c.Timestamp] = struct{}{}
		lo = min(lo, c.Timestamp)
		hi = max(hi, c.Timestamp)
	}

	// Check for duplicates against stored rows in the span
	existing, err := s.timestamps(ctx, symbol, interval, lo, hi)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, ts := range existing {
		if _, clash := seen[ts]; clash {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO candles (
			symbol, interval, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range candles {
		err = batch.Append(
			symbol, interval, uint64(c.Timestamp),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves candles within [start, end] (inclusive), ordered by timestamp ASC.
func (s *CandleStore) GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]domain.Candle, error) {
	if start < 0 {
		start = 0
	}
	if end < start {
		return nil, nil
	}

	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, interval, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// GetAll retrieves every candle of a series, ordered by timestamp ASC.
func (s *CandleStore) GetAll(ctx context.Context, symbol, interval string) ([]domain.Candle, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// Symbols lists the symbols stored for an interval, sorted.
func (s *CandleStore) Symbols(ctx context.Context, interval string) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT symbol FROM candles WHERE interval = ? ORDER BY symbol ASC
	`, interval)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol row: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	return symbols, nil
}

// timestamps returns the stored timestamps of a series within [lo, hi].
func (s *CandleStore) timestamps(ctx context.Context, symbol, interval string, lo, hi int64) ([]int64, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT timestamp_ms FROM candles
		WHERE symbol = ? AND interval = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
	`, symbol, interval, uint64(lo), uint64(hi))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts uint64
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, int64(ts))
	}
	return out, rows.Err()
}

func scanCandles(rows chRows) ([]domain.Candle, error) {
	var candles []domain.Candle

	for rows.Next() {
		var c domain.Candle
		var timestampMs uint64

		if err := rows.Scan(&timestampMs, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle row: %w", err)
		}

		c.Timestamp = int64(timestampMs)
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candle rows: %w", err)
	}

	return candles, nil
}
