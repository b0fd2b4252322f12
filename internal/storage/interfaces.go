package storage

import (
	"context"

	"spot-risk-engine/internal/domain"
)

// CandleStore provides access to candles storage.
type CandleStore interface {
	// InsertBulk adds candles for one symbol and interval. Fails entire batch
	// on duplicate (symbol, interval, timestamp).
	InsertBulk(ctx context.Context, symbol, interval string, candles []domain.Candle) error

	// GetByTimeRange retrieves candles within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, symbol, interval string, start, end int64) ([]domain.Candle, error)

	// GetAll retrieves every candle for a symbol and interval, ordered by timestamp ASC.
	GetAll(ctx context.Context, symbol, interval string) ([]domain.Candle, error)

	// Symbols lists the symbols stored for an interval, sorted.
	Symbols(ctx context.Context, interval string) ([]string, error)
}

// TradeStore provides access to backtest_trades storage.
type TradeStore interface {
	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate trade_id.
	InsertBulk(ctx context.Context, trades []*domain.BacktestTrade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.BacktestTrade, error)

	// GetByRunID retrieves all trades of a run, ordered by entry index ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.BacktestTrade, error)
}

// RunStore provides access to backtest_runs storage.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetBySymbol retrieves all runs for a symbol, ordered by created_at ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.BacktestRun, error)
}

// SummaryStore provides access to run_summaries storage.
type SummaryStore interface {
	// Insert adds a summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, s *domain.RunSummary) error

	// GetByRunID retrieves a run's summary. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// GetByStrategy retrieves all summaries for a strategy ID.
	GetByStrategy(ctx context.Context, strategyID string) ([]*domain.RunSummary, error)
}
