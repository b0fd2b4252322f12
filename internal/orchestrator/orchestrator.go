// Package orchestrator runs backtests or validations for many symbols.
// Each symbol gets its own engine instances; symbols run concurrently.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"spot-risk-engine/internal/backtest"
	"spot-risk-engine/internal/decision"
	"spot-risk-engine/internal/metrics"
	"spot-risk-engine/internal/storage"
)

// Mode selects what runs per symbol.
type Mode string

// Modes
const (
	ModeBacktest   Mode = "backtest"
	ModeValidation Mode = "validation"
)

// ErrUnknownMode is returned for an unsupported Mode.
var ErrUnknownMode = errors.New("unknown orchestrator mode")

// Orchestrator fans a run out over symbols.
type Orchestrator struct {
	runner      *backtest.Runner
	candles     storage.CandleStore
	aggregator  *metrics.Aggregator
	concurrency int
	logger      *log.Logger
}

// Options for creating Orchestrator.
type Options struct {
	Runner *backtest.Runner // required

	// Candles lists symbols when Run gets none.
	Candles storage.CandleStore

	// Aggregator, when set, recomputes stored summaries after each run.
	Aggregator *metrics.Aggregator

	// Concurrency caps parallel symbols, 0 = unlimited.
	Concurrency int
	Logger      *log.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Orchestrator{
		runner:      opts.Runner,
		candles:     opts.Candles,
		aggregator:  opts.Aggregator,
		concurrency: opts.Concurrency,
		logger:      logger,
	}
}

// SymbolResult is one symbol's outcome. Exactly one of Backtest or
// Validation is set on success; Err is set on failure.
type SymbolResult struct {
	Symbol     string
	Backtest   *backtest.Outcome
	Validation *backtest.ValidationOutcome
	Err        error
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	Symbols   []SymbolResult // sorted by symbol
	Succeeded int
	Failed    int
	GO        []string // symbols whose best candidate passed the gate
}

// Run executes mode for every symbol over the interval and time range of
// window; window.Symbol is ignored. A failing symbol does not stop the
// others; its error is kept in its SymbolResult. Only context cancellation
// and symbol discovery failures abort the run.
func (o *Orchestrator) Run(ctx context.Context, mode Mode, window backtest.Request, symbols []string) (*RunResult, error) {
	if mode != ModeBacktest && mode != ModeValidation {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	if len(symbols) == 0 {
		if o.candles == nil {
			return &RunResult{}, nil
		}
		var err error
		symbols, err = o.candles.Symbols(ctx, window.Interval)
		if err != nil {
			return nil, fmt.Errorf("list symbols: %w", err)
		}
	}
	o.logger.Printf("%s over %d symbols", mode, len(symbols))

	results := make([]SymbolResult, len(symbols))
	var mu sync.Mutex // guards aggregator writes

	g, gctx := errgroup.WithContext(ctx)
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for i, symbol := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := SymbolResult{Symbol: symbol}
			req := window
			req.Symbol = symbol

			switch mode {
			case ModeBacktest:
				res.Backtest, res.Err = o.runner.Backtest(gctx, req)
			case ModeValidation:
				res.Validation, res.Err = o.runner.Validate(gctx, req)
			}
			if res.Err != nil {
				if errors.Is(res.Err, context.Canceled) {
					return res.Err
				}
				o.logger.Printf("%s %s failed: %v", mode, symbol, res.Err)
			} else if o.aggregator != nil {
				mu.Lock()
				o.refreshSummary(gctx, res)
				mu.Unlock()
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &RunResult{Symbols: results}
	sort.Slice(out.Symbols, func(i, j int) bool {
		return out.Symbols[i].Symbol < out.Symbols[j].Symbol
	})
	for _, r := range out.Symbols {
		if r.Err != nil {
			out.Failed++
			continue
		}
		out.Succeeded++
		if r.Validation != nil && r.Validation.Decision != nil && r.Validation.Decision.Decision == decision.DecisionGO {
			out.GO = append(out.GO, r.Symbol)
		}
	}

	o.logger.Printf("%s completed: %d succeeded, %d failed, %d GO", mode, out.Succeeded, out.Failed, len(out.GO))
	return out, nil
}

// refreshSummary stores the summary for runs the runner persisted without
// one. Duplicates and trade-less runs are expected and skipped.
func (o *Orchestrator) refreshSummary(ctx context.Context, res SymbolResult) {
	var runID string
	switch {
	case res.Backtest != nil:
		runID = res.Backtest.Run.RunID
	case res.Validation != nil && res.Validation.Run != nil:
		runID = res.Validation.Run.RunID
	default:
		return
	}
	_, err := o.aggregator.ComputeAndStore(ctx, runID)
	if err == nil || errors.Is(err, storage.ErrDuplicateKey) || errors.Is(err, metrics.ErrNoTrades) {
		return
	}
	o.logger.Printf("aggregate %s (%s) failed: %v", res.Symbol, runID, err)
}
