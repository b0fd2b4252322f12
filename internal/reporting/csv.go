package reporting

import (
	"fmt"
	"strings"

	"spot-risk-engine/internal/domain"
)

// RenderRunsCSV renders run rows as CSV string.
func RenderRunsCSV(rows []RunRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,symbol,strategy_id,mode,trades,win_rate,pnl_pct,max_drawdown_pct,")
	sb.WriteString("pnl_median,pnl_p10,pnl_p90,avg_bars_held,max_consecutive_losses,")
	sb.WriteString("bootstrap_p5,bootstrap_p95,safe_for_live\n")

	// Rows
	for _, m := range rows {
		p5, p95 := "", ""
		if m.HasBootstrap {
			p5 = fmt.Sprintf("%.6f", m.BootstrapP5)
			p95 = fmt.Sprintf("%.6f", m.BootstrapP95)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%.4f,%d,%s,%s,%t\n",
			m.RunID,
			m.Symbol,
			m.StrategyID,
			m.Mode,
			m.Trades,
			m.WinRate,
			m.PnlPercent,
			m.MaxDrawdownPct,
			m.PnlMedian,
			m.PnlP10,
			m.PnlP90,
			m.AvgBarsHeld,
			m.MaxConsecutiveLosses,
			p5,
			p95,
			m.SafeForLive,
		))
	}

	return sb.String()
}

// RenderCandidatesCSV renders validation candidates as CSV string.
func RenderCandidatesCSV(rows []CandidateRow) string {
	var sb strings.Builder

	sb.WriteString("rank,candidate_id,name,strategy_id,mean_score,std_score,consistency,rank_score,")
	sb.WriteString("trades,pnl_pct,max_drawdown_pct,expectancy_r,bootstrap_p5,bootstrap_p95,safe_for_live,decision\n")

	for _, c := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%.6f,%.6f,%.6f,%.6f,",
			c.Rank, c.CandidateID, c.Name, c.StrategyID,
			c.MeanScore, c.StdScore, c.Consistency, c.RankScore))
		if !c.FullRun {
			sb.WriteString(",,,,,,,\n")
			continue
		}
		sb.WriteString(fmt.Sprintf("%d,%.6f,%.6f,%.6f,%.6f,%.6f,%t,%s\n",
			c.Trades, c.PnlPercent, c.MaxDrawdownPct, c.Expectancy,
			c.BootstrapP5, c.BootstrapP95, c.SafeForLive, c.Decision))
	}

	return sb.String()
}

// RenderTradesCSV renders closed trades as CSV string.
func RenderTradesCSV(trades []domain.BacktestTrade) string {
	var sb strings.Builder

	sb.WriteString("trade_id,run_id,symbol,side,entry_index,entry_time,entry_price,stop_loss,target,quantity,risk_amount,")
	sb.WriteString("exit_index,exit_time,exit_price,exit_reason,entry_fee,exit_fee,pnl,pnl_pct,break_even_armed\n")

	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%d,%.8f,%.8f,%.8f,%.8f,%.8f,%d,%d,%.8f,%s,%.8f,%.8f,%.8f,%.6f,%t\n",
			t.TradeID, t.RunID, t.Symbol, t.Side,
			t.EntryIndex, t.EntryTime, t.EntryPrice, t.InitialStopLoss, t.TargetPrice, t.Quantity, t.RiskAmount,
			t.ExitIndex, t.ExitTime, t.ExitPrice, t.ExitReason,
			t.EntryFee, t.ExitFee, t.Pnl, t.PnlPercent, t.BreakEvenArmed))
	}

	return sb.String()
}
