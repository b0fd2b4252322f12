// Package backtest loads candle history, runs the replay engine or the
// k-fold validator over it, and persists runs, trades and summaries.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"spot-risk-engine/internal/clock"
	"spot-risk-engine/internal/config"
	"spot-risk-engine/internal/decision"
	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/idhash"
	"spot-risk-engine/internal/metrics"
	"spot-risk-engine/internal/observability"
	"spot-risk-engine/internal/simulation"
	"spot-risk-engine/internal/storage"
	"spot-risk-engine/internal/strategy"
)

var (
	ErrNoCandleStore = errors.New("candle store is required")
	ErrNoCandles     = errors.New("no candles in range")
	ErrEmptySymbol   = errors.New("symbol is empty")
)

// Run status labels
const (
	statusOK    = "ok"
	statusError = "error"
)

// Options wires the runner's collaborators. Candles is required for the
// store-backed entry points; Runs, Trades and Summaries enable persistence.
type Options struct {
	Candles   storage.CandleStore
	Runs      storage.RunStore
	Trades    storage.TradeStore
	Summaries storage.SummaryStore

	// StoreLabel tags persistence timings, e.g. "postgres" or "memory".
	StoreLabel string

	Metrics  *observability.Metrics
	Logger   *log.Logger
	Clock    clock.Clock
	NewRunID func() string
}

// Runner executes backtests and validations for one configuration.
type Runner struct {
	cfg  config.Config
	opts Options
	log  *log.Logger
}

// NewRunner validates cfg and fills option defaults.
func NewRunner(cfg config.Config, opts Options) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if opts.StoreLabel == "" {
		opts.StoreLabel = "store"
	}
	return &Runner{cfg: cfg, opts: opts, log: opts.Logger}, nil
}

// Request selects a stored candle series.
type Request struct {
	Symbol   string
	Interval string // defaults to the configured interval
	From     int64  // inclusive Unix ms, 0 with To = 0 loads everything
	To       int64  // inclusive Unix ms
}

// Outcome is a finished backtest.
type Outcome struct {
	Run     *domain.BacktestRun
	Result  *simulation.Result
	Summary *domain.RunSummary
}

// ValidationOutcome is a finished validation. Run and Decision describe the
// best candidate and are nil when no candidate reached a full run.
type ValidationOutcome struct {
	Report   *simulation.ValidationReport
	Run      *domain.BacktestRun
	Decision *decision.DecisionResult
}

// Load reads a candle series from the candle store.
func (r *Runner) Load(ctx context.Context, req Request) ([]domain.Candle, error) {
	if r.opts.Candles == nil {
		return nil, ErrNoCandleStore
	}
	if req.Symbol == "" {
		return nil, ErrEmptySymbol
	}
	interval := r.interval(req.Interval)

	var (
		candles []domain.Candle
		err     error
	)
	start := time.Now()
	if req.From == 0 && req.To == 0 {
		candles, err = r.opts.Candles.GetAll(ctx, req.Symbol, interval)
	} else {
		candles, err = r.opts.Candles.GetByTimeRange(ctx, req.Symbol, interval, req.From, req.To)
	}
	r.recordDB("load_candles", start, err)
	if err != nil {
		return nil, fmt.Errorf("load candles %s %s: %w", req.Symbol, interval, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoCandles, req.Symbol, interval)
	}
	return candles, nil
}

// Backtest loads candles and runs a single backtest.
func (r *Runner) Backtest(ctx context.Context, req Request) (*Outcome, error) {
	candles, err := r.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.BacktestCandles(ctx, req.Symbol, r.interval(req.Interval), candles)
}

// BacktestCandles runs a single backtest over candles and persists it.
func (r *Runner) BacktestCandles(ctx context.Context, symbol, interval string, candles []domain.Candle) (*Outcome, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	if len(candles) == 0 {
		return nil, ErrNoCandles
	}
	started := time.Now()
	r.log.Printf("backtest %s %s: %d bars", symbol, interval, len(candles))

	eng, strategyID, err := r.newEngine(symbol, candles[0])
	if err != nil {
		r.recordRun(domain.RunModeBacktest, statusError, started)
		return nil, fmt.Errorf("build engine: %w", err)
	}
	res, err := eng.Run(candles)
	if err != nil {
		r.recordRun(domain.RunModeBacktest, statusError, started)
		return nil, fmt.Errorf("run %s: %w", symbol, err)
	}

	run := r.newRun(symbol, interval, strategyID, domain.RunModeBacktest, res)
	summary := summarize(run, res.Trades)

	if err := r.persist(ctx, run, res.Trades, summary); err != nil {
		r.recordRun(domain.RunModeBacktest, statusError, started)
		return nil, err
	}

	r.recordSimulation(res)
	r.recordRun(domain.RunModeBacktest, statusOK, started)
	r.log.Printf("backtest %s done: run=%s trades=%d pnl=%.2f%% maxdd=%.2f%% rejections=%v",
		symbol, run.RunID, len(res.Trades), res.PnlPercent, res.MaxDrawdownPct, res.Rejections)

	return &Outcome{Run: run, Result: res, Summary: summary}, nil
}

// Validate loads candles and runs k-fold validation over the configured grid.
func (r *Runner) Validate(ctx context.Context, req Request) (*ValidationOutcome, error) {
	candles, err := r.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.ValidateCandles(ctx, req.Symbol, r.interval(req.Interval), candles)
}

// ValidateCandles validates the configured grid over candles, persists the
// best candidate's full run and evaluates it for live readiness.
func (r *Runner) ValidateCandles(ctx context.Context, symbol, interval string, candles []domain.Candle) (*ValidationOutcome, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	started := time.Now()
	candidates := r.cfg.Candidates()
	r.log.Printf("validate %s %s: %d bars, %d candidates, %d folds",
		symbol, interval, len(candles), len(candidates), r.cfg.Validation.Folds)

	v := simulation.NewValidator(r.cfg.Engine(symbol), r.cfg.Validation.ValidationConfig, strategy.FromConfig)
	report, err := v.Validate(candles, candidates)
	if err != nil {
		r.recordRun(domain.RunModeValidation, statusError, started)
		return nil, fmt.Errorf("validate %s: %w", symbol, err)
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordCandidates(len(report.Candidates))
		for _, fr := range report.Top {
			r.opts.Metrics.RecordTopCandidate(fr.Bootstrap.SafeForLive)
		}
	}

	out := &ValidationOutcome{Report: report}
	best := report.Best()
	if best == nil {
		r.recordRun(domain.RunModeValidation, statusOK, started)
		return out, nil
	}

	run := r.newRun(symbol, interval, best.Score.StrategyID, domain.RunModeValidation, best.Result)
	expectancy := best.RStats.Expectancy
	run.Expectancy = &expectancy
	if best.Bootstrap.Computed {
		p5, p50, p95 := best.Bootstrap.P5, best.Bootstrap.P50, best.Bootstrap.P95
		run.BootstrapP5, run.BootstrapP50, run.BootstrapP95 = &p5, &p50, &p95
	}
	run.SafeForLive = best.Bootstrap.SafeForLive

	if err := r.persist(ctx, run, best.Result.Trades, summarize(run, best.Result.Trades)); err != nil {
		r.recordRun(domain.RunModeValidation, statusError, started)
		return nil, err
	}
	out.Run = run

	input, err := decision.Build(report, 0)
	if err != nil {
		return nil, err
	}
	result, err := decision.NewEvaluator(r.cfg.Validation.Decision).Evaluate(*input)
	if err != nil {
		return nil, err
	}
	out.Decision = result

	r.recordSimulation(best.Result)
	r.recordRun(domain.RunModeValidation, statusOK, started)
	r.log.Printf("validate %s done: best=%s rank=%.4f trades=%d p5=%.4f decision=%s",
		symbol, best.Score.Candidate.Name, best.Score.Rank, len(best.Result.Trades), best.Bootstrap.P5, result.Decision)

	return out, nil
}

func (r *Runner) interval(s string) string {
	if s == "" {
		return r.cfg.Simulation.Interval
	}
	return s
}

func (r *Runner) newRun(symbol, interval, strategyID, mode string, res *simulation.Result) *domain.BacktestRun {
	return &domain.BacktestRun{
		RunID:          r.opts.NewRunID(),
		Symbol:         symbol,
		Interval:       interval,
		StrategyID:     strategyID,
		Mode:           mode,
		StartIndex:     res.StartIndex,
		EndIndex:       res.EndIndex,
		FirstBarMs:     res.FirstBarMs,
		LastBarMs:      res.LastBarMs,
		InitialCash:    res.InitialCash,
		FinalEquity:    res.FinalEquity,
		Pnl:            res.Pnl,
		PnlPercent:     res.PnlPercent,
		MaxDrawdownPct: res.MaxDrawdownPct,
		TradeCount:     len(res.Trades),
		WinRate:        res.WinRate(),
		CreatedAt:      r.opts.Clock.Now().UnixMilli(),
	}
}

// stamp assigns run ownership and deterministic trade IDs in place.
func stamp(run *domain.BacktestRun, trades []domain.BacktestTrade) {
	for i := range trades {
		trades[i].RunID = run.RunID
		trades[i].TradeID = idhash.ComputeTradeID(run.RunID, run.Symbol, trades[i].EntryIndex)
	}
}

func summarize(run *domain.BacktestRun, trades []domain.BacktestTrade) *domain.RunSummary {
	s := metrics.Summarize(trades)
	s.RunID = run.RunID
	s.Symbol = run.Symbol
	s.StrategyID = run.StrategyID
	return s
}

// persist writes run, trades and summary in that order. Missing stores are
// skipped; trades always get their IDs.
func (r *Runner) persist(ctx context.Context, run *domain.BacktestRun, trades []domain.BacktestTrade, summary *domain.RunSummary) error {
	stamp(run, trades)

	if r.opts.Runs != nil {
		start := time.Now()
		err := r.opts.Runs.Insert(ctx, run)
		r.recordDB("insert_run", start, err)
		if err != nil {
			r.log.Printf("persist run %s failed: %v", run.RunID, err)
			return fmt.Errorf("persist run %s: %w", run.RunID, err)
		}
	}

	if r.opts.Trades != nil && len(trades) > 0 {
		ptrs := make([]*domain.BacktestTrade, len(trades))
		for i := range trades {
			ptrs[i] = &trades[i]
		}
		start := time.Now()
		err := r.opts.Trades.InsertBulk(ctx, ptrs)
		r.recordDB("insert_trades", start, err)
		if err != nil {
			r.log.Printf("persist %d trades of run %s failed: %v", len(trades), run.RunID, err)
			return fmt.Errorf("persist trades %s: %w", run.RunID, err)
		}
	}

	if r.opts.Summaries != nil && summary.TotalTrades > 0 {
		start := time.Now()
		err := r.opts.Summaries.Insert(ctx, summary)
		r.recordDB("insert_summary", start, err)
		if err != nil {
			r.log.Printf("persist summary %s failed: %v", run.RunID, err)
			return fmt.Errorf("persist summary %s: %w", run.RunID, err)
		}
	}
	return nil
}

func (r *Runner) recordRun(mode, status string, started time.Time) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordRun(mode, status, time.Since(started))
	}
}

func (r *Runner) recordSimulation(res *simulation.Result) {
	if r.opts.Metrics == nil {
		return
	}
	exits := make(map[string]int)
	for _, t := range res.Trades {
		exits[string(t.ExitReason)]++
	}
	r.opts.Metrics.RecordSimulation(res.Symbol, res.PnlPercent, res.Signals, exits, res.Rejections)
}

func (r *Runner) recordDB(op string, start time.Time, err error) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordDBQuery(r.opts.StoreLabel, op, time.Since(start), err)
	}
}
