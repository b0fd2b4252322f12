package clickhouse

import (
	"context"
	"fmt"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/storage"
)

// SummaryStore implements storage.SummaryStore using ClickHouse.
type SummaryStore struct {
	conn *Conn
}

// NewSummaryStore creates a new SummaryStore.
func NewSummaryStore(conn *Conn) *SummaryStore {
	return &SummaryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SummaryStore = (*SummaryStore)(nil)

const summaryColumns = `
	run_id, symbol, strategy_id,
	total_trades, wins, losses, win_rate,
	pnl_mean, pnl_median, pnl_p10, pnl_p25, pnl_p75, pnl_p90, pnl_min, pnl_max, pnl_stddev,
	total_pnl, max_drawdown, max_consecutive_losses, avg_bars_held, exit_reasons`

// Insert adds a summary. Returns ErrDuplicateKey if run_id exists.
func (s *SummaryStore) Insert(ctx context.Context, sum *domain.RunSummary) error {
	if sum == nil || sum.RunID == "" {
		return storage.ErrInvalidInput
	}

	// ReplacingMergeTree would replace; keep append-only semantics
	exists, err := s.exists(ctx, sum.RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	reasons := make(map[string]uint32, len(sum.ExitReasons))
	for r, n := range sum.ExitReasons {
		reasons[string(r)] = uint32(n)
	}

	query := `INSERT INTO run_summaries (` + summaryColumns + `) VALUES (
			?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?, ?, ?, ?, ?, ?, ?,
			?, ?, ?, ?, ?
		)`

	err = s.conn.Exec(ctx, query,
		sum.RunID, sum.Symbol, sum.StrategyID,
		uint32(sum.TotalTrades), uint32(sum.Wins), uint32(sum.Losses), sum.WinRate,
		sum.PnlMean, sum.PnlMedian, sum.PnlP10, sum.PnlP25, sum.PnlP75, sum.PnlP90, sum.PnlMin, sum.PnlMax, sum.PnlStddev,
		sum.TotalPnl, sum.MaxDrawdown, uint32(sum.MaxConsecutiveLosses), sum.AvgBarsHeld, reasons,
	)
	if err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// GetByRunID retrieves a run's summary. Returns ErrNotFound if not exists.
func (s *SummaryStore) GetByRunID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM run_summaries FINAL WHERE run_id = ?`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	sums, err := scanSummaries(rows)
	if err != nil {
		return nil, err
	}
	if len(sums) == 0 {
		return nil, storage.ErrNotFound
	}
	return sums[0], nil
}

// GetByStrategy retrieves all summaries for a strategy ID, ordered by run_id.
func (s *SummaryStore) GetByStrategy(ctx context.Context, strategyID string) ([]*domain.RunSummary, error) {
	query := `SELECT ` + summaryColumns + `
		FROM run_summaries FINAL
		WHERE strategy_id = ?
		ORDER BY run_id ASC`

	rows, err := s.conn.Query(ctx, query, strategyID)
	if err != nil {
		return nil, fmt.Errorf("query by strategy: %w", err)
	}
	defer rows.Close()

	return scanSummaries(rows)
}

func (s *SummaryStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM run_summaries WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanSummaries(rows chRows) ([]*domain.RunSummary, error) {
	var sums []*domain.RunSummary

	for rows.Next() {
		var sum domain.RunSummary
		var total, wins, losses, streak uint32
		var reasons map[string]uint32

		err := rows.Scan(
			&sum.RunID, &sum.Symbol, &sum.StrategyID,
			&total, &wins, &losses, &sum.WinRate,
			&sum.PnlMean, &sum.PnlMedian, &sum.PnlP10, &sum.PnlP25, &sum.PnlP75, &sum.PnlP90, &sum.PnlMin, &sum.PnlMax, &sum.PnlStddev,
			&sum.TotalPnl, &sum.MaxDrawdown, &streak, &sum.AvgBarsHeld, &reasons,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run summary row: %w", err)
		}

		sum.TotalTrades = int(total)
		sum.Wins = int(wins)
		sum.Losses = int(losses)
		sum.MaxConsecutiveLosses = int(streak)
		sum.ExitReasons = make(map[domain.ExitReason]int, len(reasons))
		for r, n := range reasons {
			sum.ExitReasons[domain.ExitReason(r)] = int(n)
		}
		sums = append(sums, &sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summary rows: %w", err)
	}

	return sums, nil
}
