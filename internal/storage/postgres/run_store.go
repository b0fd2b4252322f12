package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, symbol, interval, strategy_id, mode,
	start_index, end_index, first_bar_ms, last_bar_ms,
	initial_cash, final_equity, pnl, pnl_percent, max_drawdown_pct, trade_count, win_rate,
	expectancy, bootstrap_p5, bootstrap_p50, bootstrap_p95, safe_for_live, created_at`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	if r == nil || r.RunID == "" || r.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO backtest_runs (` + runColumns + `) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22
		)`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.Symbol, r.Interval, r.StrategyID, r.Mode,
		r.StartIndex, r.EndIndex, r.FirstBarMs, r.LastBarMs,
		r.InitialCash, r.FinalEquity, r.Pnl, r.PnlPercent, r.MaxDrawdownPct, r.TradeCount, r.WinRate,
		r.Expectancy, r.BootstrapP5, r.BootstrapP50, r.BootstrapP95, r.SafeForLive, r.CreatedAt,
	)
	if err != nil {
		return storeError("insert backtest run", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		return nil, storeError("get backtest run by id", err)
	}
	return r, nil
}

// GetBySymbol retrieves all runs for a symbol, ordered by created_at ASC.
func (s *RunStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + `
		FROM backtest_runs
		WHERE symbol = $1
		ORDER BY created_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get backtest runs by symbol: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	return runs, nil
}

func scanRun(row pgx.Row) (*domain.BacktestRun, error) {
	var r domain.BacktestRun

	err := row.Scan(
		&r.RunID, &r.Symbol, &r.Interval, &r.StrategyID, &r.Mode,
		&r.StartIndex, &r.EndIndex, &r.FirstBarMs, &r.LastBarMs,
		&r.InitialCash, &r.FinalEquity, &r.Pnl, &r.PnlPercent, &r.MaxDrawdownPct, &r.TradeCount, &r.WinRate,
		&r.Expectancy, &r.BootstrapP5, &r.BootstrapP50, &r.BootstrapP95, &r.SafeForLive, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
