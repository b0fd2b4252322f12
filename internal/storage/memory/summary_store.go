package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
)

// SummaryStore is an in-memory implementation of storage.SummaryStore.
type SummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSummary // keyed by run_id
}

// NewSummaryStore creates a new in-memory summary store.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{
		data: make(map[string]*domain.RunSummary),
	}
}

// Insert adds a summary. Returns ErrDuplicateKey if run_id exists.
func (s *SummaryStore) Insert(_ context.Context, sum *domain.RunSummary) error {
	if sum == nil || sum.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sum.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[sum.RunID] = copySummary(sum)
	return nil
}

// GetByRunID retrieves a run's summary. Returns ErrNotFound if not exists.
func (s *SummaryStore) GetByRunID(_ context.Context, runID string) (*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySummary(sum), nil
}

// GetByStrategy retrieves all summaries for a strategy ID, ordered by run_id.
func (s *SummaryStore) GetByStrategy(_ context.Context, strategyID string) ([]*domain.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunSummary
	for _, sum := range s.data {
		if sum.StrategyID == strategyID {
			result = append(result, copySummary(sum))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RunID < result[j].RunID
	})

	return result, nil
}

func copySummary(sum *domain.RunSummary) *domain.RunSummary {
	c := *sum
	c.ExitReasons = maps.Clone(sum.ExitReasons)
	return &c
}

var _ storage.SummaryStore = (*SummaryStore)(nil)
