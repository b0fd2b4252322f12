package memory

import (
	"context"
	"sort"
	"sync"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
)

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[seriesKey]map[int64]domain.Candle // keyed by timestamp within a series
}

type seriesKey struct {
	symbol   string
	interval string
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[seriesKey]map[int64]domain.Candle),
	}
}

// InsertBulk adds candles for one series. Fails entire batch on duplicate timestamp.
func (s *CandleStore) InsertBulk(_ context.Context, symbol, interval string, candles []domain.Candle) error {
	if symbol == "" || interval == "" {
		return storage.ErrInvalidInput
	}
	if len(candles) == 0 {
		return nil
	}

	key := seriesKey{symbol, interval}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[key]

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[int64]struct{}, len(candles))
	for _, c := range candles {
		if _, exists := existing[c.Timestamp]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[c.Timestamp]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[c.Timestamp] = struct{}{}
	}

	// Second pass: insert all
	if existing == nil {
		existing = make(map[int64]domain.Candle, len(candles))
		s.data[key] = existing
	}
	for _, c := range candles {
		existing[c.Timestamp] = c
	}

	return nil
}

// GetByTimeRange retrieves candles within [start, end] (inclusive), ordered by timestamp ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, symbol, interval string, start, end int64) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for ts, c := range s.data[seriesKey{symbol, interval}] {
		if ts >= start && ts <= end {
			result = append(result, c)
		}
	}
	sortCandles(result)
	return result, nil
}

// GetAll retrieves every candle of a series, ordered by timestamp ASC.
func (s *CandleStore) GetAll(_ context.Context, symbol, interval string) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[seriesKey{symbol, interval}]
	result := make([]domain.Candle, 0, len(series))
	for _, c := range series {
		result = append(result, c)
	}
	sortCandles(result)
	return result, nil
}

// Symbols lists the symbols stored for an interval, sorted.
func (s *CandleStore) Symbols(_ context.Context, interval string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []string
	for k := range s.data {
		if k.interval == interval {
			result = append(result, k.symbol)
		}
	}
	sort.Strings(result)
	return result, nil
}

func sortCandles(candles []domain.Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})
}

var _ storage.CandleStore = (*CandleStore)(nil)
