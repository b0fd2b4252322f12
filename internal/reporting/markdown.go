package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	title := r.Title
	if title == "" {
		title = "Backtest Report"
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Runs | %d |\n", r.DataSummary.RunCount))
	sb.WriteString(fmt.Sprintf("| Bars | %d |\n", r.DataSummary.TotalBars))
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", r.DataSummary.TotalTrades))
	sb.WriteString(fmt.Sprintf("| First Bar | %s |\n", formatMs(r.DataSummary.FirstBarMs)))
	sb.WriteString(fmt.Sprintf("| Last Bar | %s |\n", formatMs(r.DataSummary.LastBarMs)))
	sb.WriteString("\n")

	// Runs
	if len(r.Runs) > 0 {
		sb.WriteString("## Runs\n\n")
		sb.WriteString("| Run | Symbol | Strategy | Mode | Trades | WinRate | PnL% | MaxDD% | Median% | P10% | P90% | AvgBars | MaxLoss | P5 R | P95 R | Safe |\n")
		sb.WriteString("|-----|--------|----------|------|--------|---------|------|--------|---------|------|------|---------|---------|------|-------|------|\n")
		for _, m := range r.Runs {
			p5, p95 := "-", "-"
			if m.HasBootstrap {
				p5 = fmt.Sprintf("%.4f", m.BootstrapP5)
				p95 = fmt.Sprintf("%.4f", m.BootstrapP95)
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %.4f | %.2f | %.2f | %.2f | %.2f | %.2f | %.1f | %d | %s | %s | %s |\n",
				shortID(m.RunID), m.Symbol, m.StrategyID, m.Mode,
				m.Trades, m.WinRate, m.PnlPercent, m.MaxDrawdownPct,
				m.PnlMedian, m.PnlP10, m.PnlP90, m.AvgBarsHeld, m.MaxConsecutiveLosses,
				p5, p95, yesNo(m.SafeForLive)))
		}
		sb.WriteString("\n")
	}

	// Candidates
	if len(r.Candidates) > 0 {
		sb.WriteString("## Candidates\n\n")
		sb.WriteString("| # | Candidate | Strategy | Mean | Std | Consistency | Rank | Trades | PnL% | MaxDD% | E[R] | P5 R | P95 R | Decision |\n")
		sb.WriteString("|---|-----------|----------|------|-----|-------------|------|--------|------|--------|------|------|-------|----------|\n")
		for _, c := range r.Candidates {
			if !c.FullRun {
				sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.4f | %.4f | %.4f | %.4f | - | - | - | - | - | - | - |\n",
					c.Rank, c.Name, c.StrategyID, c.MeanScore, c.StdScore, c.Consistency, c.RankScore))
				continue
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.4f | %.4f | %.4f | %.4f | %d | %.2f | %.2f | %.4f | %.4f | %.4f | %s |\n",
				c.Rank, c.Name, c.StrategyID, c.MeanScore, c.StdScore, c.Consistency, c.RankScore,
				c.Trades, c.PnlPercent, c.MaxDrawdownPct, c.Expectancy, c.BootstrapP5, c.BootstrapP95, c.Decision))
		}
		sb.WriteString("\n")
	}

	// Exit Reasons
	sb.WriteString("## Exit Reasons\n\n")
	writeCounts(&sb, r.ExitReasons, "Reason", "No trades closed.\n")

	// Entry Rejections
	if len(r.Rejections) > 0 {
		sb.WriteString("## Entry Rejections\n\n")
		writeCounts(&sb, r.Rejections, "Code", "")
	}

	return sb.String()
}

func writeCounts(sb *strings.Builder, rows []CountRow, header, empty string) {
	if len(rows) == 0 {
		sb.WriteString(empty)
		sb.WriteString("\n")
		return
	}
	sb.WriteString(fmt.Sprintf("| %s | Count |\n", header))
	sb.WriteString("|--------|-------|\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %d |\n", row.Key, row.Count))
	}
	sb.WriteString("\n")
}

func formatMs(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func shortID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
