package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, run_id, symbol, side,
	entry_index, entry_time, entry_price, initial_stop_loss, target_price, quantity, risk_amount,
	exit_index, exit_time, exit_price, exit_reason,
	entry_fee, exit_fee, pnl, pnl_percent, break_even_armed`

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.BacktestTrade) error {
	if len(trades) == 0 {
		return nil
	}
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO backtest_trades (` + tradeColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18, $19, $20
		)`

	for _, t := range trades {
		_, err := tx.Exec(ctx, query,
			t.TradeID, t.RunID, t.Symbol, string(t.Side),
			t.EntryIndex, t.EntryTime, t.EntryPrice, t.InitialStopLoss, t.TargetPrice, t.Quantity, t.RiskAmount,
			t.ExitIndex, t.ExitTime, t.ExitPrice, string(t.ExitReason),
			t.EntryFee, t.ExitFee, t.Pnl, t.PnlPercent, t.BreakEvenArmed,
		)
		if err != nil {
			return storeError("insert backtest trade in bulk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.BacktestTrade, error) {
	query := `SELECT ` + tradeColumns + ` FROM backtest_trades WHERE trade_id = $1`

	t, err := scanTrade(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		return nil, storeError("get backtest trade by id", err)
	}
	return t, nil
}

// GetByRunID retrieves all trades of a run, ordered by entry index ASC.
func (s *TradeStore) GetByRunID(ctx context.Context, runID string) ([]*domain.BacktestTrade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM backtest_trades
		WHERE run_id = $1
		ORDER BY entry_index ASC, trade_id ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get backtest trades by run id: %w", err)
	}
	defer rows.Close()

	var trades []*domain.BacktestTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest trade row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest trade rows: %w", err)
	}

	return trades, nil
}

// scanTrade scans one row; pgx.Rows satisfies pgx.Row.
func scanTrade(row pgx.Row) (*domain.BacktestTrade, error) {
	var t domain.BacktestTrade
	var side, reason string

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.Symbol, &side,
		&t.EntryIndex, &t.EntryTime, &t.EntryPrice, &t.InitialStopLoss, &t.TargetPrice, &t.Quantity, &t.RiskAmount,
		&t.ExitIndex, &t.ExitTime, &t.ExitPrice, &reason,
		&t.EntryFee, &t.ExitFee, &t.Pnl, &t.PnlPercent, &t.BreakEvenArmed,
	)
	if err != nil {
		return nil, err
	}

	t.Side = domain.Side(side)
	t.ExitReason = domain.ExitReason(reason)
	return &t, nil
}
