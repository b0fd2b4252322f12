package reporting

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"spot-risk-engine/internal/decision"
	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/idhash"
	"spot-risk-engine/internal/metrics"
	"spot-risk-engine/internal/simulation"
	"spot-risk-engine/internal/storage"
)

// ErrNoRuns is returned when a symbol has no stored runs.
var ErrNoRuns = errors.New("no runs stored")

// Generator produces reports from stored data or in-process results.
type Generator struct {
	runStore     storage.RunStore
	tradeStore   storage.TradeStore
	summaryStore storage.SummaryStore // optional
	evaluator    *decision.Evaluator
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. Stores may be nil when only
// FromResult and FromValidation are used; summaryStore is optional and
// summaries are recomputed from trades when absent.
func NewGenerator(
	runStore storage.RunStore,
	tradeStore storage.TradeStore,
	summaryStore storage.SummaryStore,
) *Generator {
	return &Generator{
		runStore:     runStore,
		tradeStore:   tradeStore,
		summaryStore: summaryStore,
		evaluator:    decision.NewEvaluator(decision.DefaultThresholds()),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithThresholds sets the GO/NO-GO thresholds used for candidate rows.
func (g *Generator) WithThresholds(th decision.Thresholds) *Generator {
	g.evaluator = decision.NewEvaluator(th)
	return g
}

// ForRun produces a report for one stored run.
func (g *Generator) ForRun(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return g.fromRuns(ctx, run.Symbol, "Run "+runID, []*domain.BacktestRun{run})
}

// ForSymbol produces a report over every stored run of a symbol.
func (g *Generator) ForSymbol(ctx context.Context, symbol string) (*Report, error) {
	runs, err := g.runStore.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load runs for %s: %w", symbol, err)
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRuns, symbol)
	}
	return g.fromRuns(ctx, symbol, "Runs "+symbol, runs)
}

func (g *Generator) fromRuns(ctx context.Context, symbol, title string, runs []*domain.BacktestRun) (*Report, error) {
	exits := make(map[string]int)
	rows := make([]RunRow, 0, len(runs))
	var data DataSummary

	for _, run := range runs {
		summary, err := g.loadSummary(ctx, run)
		if err != nil {
			return nil, err
		}
		row := runRow(run, summary)
		rows = append(rows, row)

		for reason, n := range summary.ExitReasons {
			exits[string(reason)] += n
		}
		data.TotalTrades += summary.TotalTrades
		data.TotalBars += run.EndIndex - run.StartIndex
		extendRange(&data, run.FirstBarMs, run.LastBarMs)
	}
	data.RunCount = len(rows)
	sortRunRows(rows)

	return &Report{
		GeneratedAt: g.now(),
		Symbol:      symbol,
		Title:       title,
		DataSummary: data,
		Runs:        rows,
		ExitReasons: countRows(exits),
	}, nil
}

// loadSummary reads the stored summary, recomputing from trades when missing.
func (g *Generator) loadSummary(ctx context.Context, run *domain.BacktestRun) (*domain.RunSummary, error) {
	if g.summaryStore != nil {
		s, err := g.summaryStore.GetByRunID(ctx, run.RunID)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load summary %s: %w", run.RunID, err)
		}
	}

	trades, err := g.tradeStore.GetByRunID(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("load trades %s: %w", run.RunID, err)
	}
	values := make([]domain.BacktestTrade, len(trades))
	for i, t := range trades {
		values[i] = *t
	}
	s := metrics.Summarize(values)
	s.RunID = run.RunID
	s.Symbol = run.Symbol
	s.StrategyID = run.StrategyID
	return s, nil
}

// FromResult produces a report for an in-process engine result.
func (g *Generator) FromResult(strategyID string, res *simulation.Result) *Report {
	summary := metrics.Summarize(res.Trades)
	row := RunRow{
		Symbol:               res.Symbol,
		StrategyID:           strategyID,
		Mode:                 domain.RunModeBacktest,
		Trades:               len(res.Trades),
		WinRate:              res.WinRate(),
		PnlPercent:           res.PnlPercent,
		MaxDrawdownPct:       res.MaxDrawdownPct,
		PnlMedian:            summary.PnlMedian,
		PnlP10:               summary.PnlP10,
		PnlP90:               summary.PnlP90,
		AvgBarsHeld:          summary.AvgBarsHeld,
		MaxConsecutiveLosses: summary.MaxConsecutiveLosses,
	}

	exits := make(map[string]int, len(summary.ExitReasons))
	for reason, n := range summary.ExitReasons {
		exits[string(reason)] = n
	}

	return &Report{
		GeneratedAt: g.now(),
		Symbol:      res.Symbol,
		Title:       "Backtest " + res.Symbol,
		DataSummary: DataSummary{
			RunCount:    1,
			TotalTrades: len(res.Trades),
			TotalBars:   res.EndIndex - res.StartIndex,
			FirstBarMs:  res.FirstBarMs,
			LastBarMs:   res.LastBarMs,
		},
		Runs:        []RunRow{row},
		ExitReasons: countRows(exits),
		Rejections:  countRows(res.Rejections),
	}
}

// FromValidation produces a report for a validation run. Every candidate gets
// a row; top candidates also carry their full-series run and GO/NO-GO result.
func (g *Generator) FromValidation(vr *simulation.ValidationReport) (*Report, error) {
	top := make(map[string]simulation.FullRun, len(vr.Top))
	for _, fr := range vr.Top {
		top[fr.Score.Candidate.Name] = fr
	}

	rows := make([]CandidateRow, 0, len(vr.Candidates))
	exits := make(map[string]int)
	rejections := make(map[string]int)
	var data DataSummary

	for i, cs := range vr.Candidates {
		row := CandidateRow{
			Rank:        i + 1,
			CandidateID: idhash.ComputeCandidateID(vr.Symbol, cs.StrategyID, cs.Candidate.Signal),
			Name:        cs.Candidate.Name,
			StrategyID:  cs.StrategyID,
			MeanScore:   cs.MeanScore,
			StdScore:    cs.StdScore,
			Consistency: cs.Consistency,
			RankScore:   cs.Rank,
		}

		if fr, ok := top[cs.Candidate.Name]; ok {
			input, err := decision.Build(&simulation.ValidationReport{Symbol: vr.Symbol, Top: []simulation.FullRun{fr}}, 0)
			if err != nil {
				return nil, fmt.Errorf("build decision for %s: %w", cs.Candidate.Name, err)
			}
			result, err := g.evaluator.Evaluate(*input)
			if err != nil {
				return nil, fmt.Errorf("evaluate %s: %w", cs.Candidate.Name, err)
			}

			row.FullRun = true
			row.Trades = len(fr.Result.Trades)
			row.PnlPercent = fr.Result.PnlPercent
			row.MaxDrawdownPct = fr.Result.MaxDrawdownPct
			row.Expectancy = fr.RStats.Expectancy
			row.BootstrapP5 = fr.Bootstrap.P5
			row.BootstrapP95 = fr.Bootstrap.P95
			row.SafeForLive = fr.Bootstrap.SafeForLive
			row.Decision = string(result.Decision)

			data.RunCount++
			data.TotalTrades += len(fr.Result.Trades)
			extendRange(&data, fr.Result.FirstBarMs, fr.Result.LastBarMs)
			for _, t := range fr.Result.Trades {
				exits[string(t.ExitReason)]++
			}
			for code, n := range fr.Result.Rejections {
				rejections[code] += n
			}
		}
		rows = append(rows, row)
	}
	data.TotalBars = vr.Bars

	return &Report{
		GeneratedAt: g.now(),
		Symbol:      vr.Symbol,
		Title:       "Validation " + vr.Symbol,
		DataSummary: data,
		ExitReasons: countRows(exits),
		Rejections:  countRows(rejections),
		Candidates:  rows,
	}, nil
}

func runRow(run *domain.BacktestRun, s *domain.RunSummary) RunRow {
	row := RunRow{
		RunID:                run.RunID,
		Symbol:               run.Symbol,
		StrategyID:           run.StrategyID,
		Mode:                 run.Mode,
		Trades:               s.TotalTrades,
		WinRate:              s.WinRate,
		PnlPercent:           run.PnlPercent,
		MaxDrawdownPct:       run.MaxDrawdownPct,
		PnlMedian:            s.PnlMedian,
		PnlP10:               s.PnlP10,
		PnlP90:               s.PnlP90,
		AvgBarsHeld:          s.AvgBarsHeld,
		MaxConsecutiveLosses: s.MaxConsecutiveLosses,
		SafeForLive:          run.SafeForLive,
	}
	if run.BootstrapP5 != nil && run.BootstrapP95 != nil {
		row.HasBootstrap = true
		row.BootstrapP5 = *run.BootstrapP5
		row.BootstrapP95 = *run.BootstrapP95
	}
	return row
}

func extendRange(d *DataSummary, first, last int64) {
	if d.FirstBarMs == 0 || (first != 0 && first < d.FirstBarMs) {
		d.FirstBarMs = first
	}
	if last > d.LastBarMs {
		d.LastBarMs = last
	}
}

// countRows flattens a counter map into rows sorted by key.
func countRows(m map[string]int) []CountRow {
	keys := slices.Sorted(maps.Keys(m))
	rows := make([]CountRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, CountRow{Key: k, Count: m[k]})
	}
	return rows
}

// sortRunRows sorts rows by (symbol, strategy_id, run_id).
func sortRunRows(rows []RunRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		if rows[i].StrategyID != rows[j].StrategyID {
			return rows[i].StrategyID < rows[j].StrategyID
		}
		return rows[i].RunID < rows[j].RunID
	})
}
