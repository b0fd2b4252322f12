// Package simulation replays candle history through the shared decision
// pipeline: signal detection, decision provider, risk budget planner and
// optional guardrail/risk gates. A single Engine is not safe for concurrent
// use; runs are deterministic for identical inputs.
package simulation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"spot-risk-engine/internal/clock"
	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/guardrail"
	"spot-risk-engine/internal/planner"
	"spot-risk-engine/internal/risk"
	"spot-risk-engine/internal/signal"
	"spot-risk-engine/internal/strategy"
)

// Engine errors
var (
	ErrEmptySeries        = errors.New("candle series is empty")
	ErrInvalidRange       = errors.New("index range out of bounds")
	ErrNoDecisionProvider = errors.New("decision provider is required")
	ErrInvalidCash        = errors.New("initial cash must be positive")
)

// Rejection keys recorded besides planner reject codes.
const (
	RejectRiskManager = "RISK_MANAGER"
	RejectShortSide   = "SHORT_UNSUPPORTED"
	rejectGuardPrefix = "GUARDRAIL_"
)

// Config is the per-run replay configuration.
type Config struct {
	Symbol      string
	InitialCash float64
	WarmUp      int // bars skipped before the first entry
	WindowSize  int // trailing bars handed to providers, 0 = all bars in range

	RequireSignal         bool    // only consult the decision provider on a fresh signal
	MinHoldBars           int     // bars before the exit provider is consulted
	BreakEvenTriggerR     float64 // arm break-even after this many R of favorable move, 0 = off
	ExitRequiresBreakEven bool    // consult the exit provider only once break-even armed

	Signal    signal.Thresholds
	Policy    domain.RiskPolicy
	Ratios    *planner.Ratios
	RiskScale float64

	// Timeframe is the candle interval, used by the guardrail staleness check.
	Timeframe time.Duration
}

// DefaultConfig returns replay defaults.
func DefaultConfig() Config {
	return Config{
		InitialCash:       10_000,
		WarmUp:            60,
		WindowSize:        200,
		MinHoldBars:       1,
		BreakEvenTriggerR: 1.0,
		Signal:            signal.DefaultThresholds(),
		Policy:            domain.DefaultRiskPolicy(),
		RiskScale:         1,
		Timeframe:         time.Hour,
	}
}

// Options wires the pluggable collaborators of an Engine.
type Options struct {
	Decider strategy.DecisionProvider // required
	Exiter  strategy.ExitProvider     // optional

	// Guardrail and Risk are optional gates. BarClock, when set, is moved to
	// each bar's timestamp so time-based gates follow replay time; both gates
	// should be constructed on it.
	Guardrail *guardrail.Engine
	Risk      *risk.Manager
	BarClock  *clock.Manual
}

// EquityPoint is a mark-to-market sample.
type EquityPoint struct {
	Index     int
	Timestamp int64
	Equity    float64
}

// Result is the outcome of one replay.
type Result struct {
	Symbol      string
	StartIndex  int
	EndIndex    int // exclusive
	FirstBarMs  int64
	LastBarMs   int64
	InitialCash float64
	FinalEquity float64
	Pnl         float64
	PnlPercent  float64 // percent units

	MaxDrawdown    float64 // ratio
	MaxDrawdownPct float64 // percent units

	Trades      []domain.BacktestTrade
	EquityCurve []EquityPoint
	Signals     int
	Rejections  map[string]int
}

// WinRate returns the share of trades with positive PnL.
func (r *Result) WinRate() float64 {
	if len(r.Trades) == 0 {
		return 0
	}
	wins := 0
	for i := range r.Trades {
		if r.Trades[i].Pnl > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(r.Trades))
}

// Engine replays candles. It holds no ledger between runs.
type Engine struct {
	cfg      Config
	detector *signal.Detector
	planner  *planner.Planner
	decider  strategy.DecisionProvider
	exiter   strategy.ExitProvider
	guard    *guardrail.Engine
	risk     *risk.Manager
	barClock *clock.Manual
}

// NewEngine creates an engine.
func NewEngine(cfg Config, opts Options) (*Engine, error) {
	if opts.Decider == nil {
		return nil, ErrNoDecisionProvider
	}
	if !(cfg.InitialCash > 0) || math.IsInf(cfg.InitialCash, 0) {
		return nil, ErrInvalidCash
	}
	exiter := opts.Exiter
	if exiter == nil {
		exiter = strategy.NeverExit
	}
	return &Engine{
		cfg:      cfg,
		detector: signal.NewDetector(cfg.Signal),
		planner:  planner.New(cfg.Policy),
		decider:  opts.Decider,
		exiter:   exiter,
		guard:    opts.Guardrail,
		risk:     opts.Risk,
		barClock: opts.BarClock,
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run replays the whole series.
func (e *Engine) Run(candles []domain.Candle) (*Result, error) {
	return e.RunRange(candles, 0, len(candles))
}

// ledger is the per-run mutable state.
type ledger struct {
	cash        float64
	pos         *domain.Position
	entryEquity float64
	peak        float64
	maxDD       float64
	res         *Result

	// realized PnL of the current UTC bar day, fed to the planner
	dayKey      string
	dayStartEq  float64
	dayRealized float64
}

// rollDay starts a new day ledger when ts falls on a new UTC day.
func (l *ledger) rollDay(ts int64, eq float64) {
	key := clock.DayKey(time.UnixMilli(ts), time.UTC)
	if key != l.dayKey {
		l.dayKey = key
		l.dayStartEq = eq
		l.dayRealized = 0
	}
}

// realizedPctToday is the day's realized PnL as a ratio of day-start equity.
func (l *ledger) realizedPctToday() float64 {
	if l.dayStartEq <= 0 {
		return 0
	}
	return l.dayRealized / l.dayStartEq
}

func (l *ledger) equity(price float64) float64 {
	if l.pos == nil {
		return l.cash
	}
	return l.cash + l.pos.Notional(price)
}

func (l *ledger) mark(eq float64) {
	if eq > l.peak {
		l.peak = eq
	}
	if l.peak > 0 {
		if dd := (l.peak - eq) / l.peak; dd > l.maxDD {
			l.maxDD = dd
		}
	}
}

// RunRange replays candles[start:end]. Providers only see bars inside the
// range, so each range needs its own warm-up.
func (e *Engine) RunRange(candles []domain.Candle, start, end int) (*Result, error) {
	if len(candles) == 0 {
		return nil, ErrEmptySeries
	}
	if start < 0 || end > len(candles) || start >= end {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrInvalidRange, start, end, len(candles))
	}

	e.prepare(candles[start:end])

	l := &ledger{
		cash: e.cfg.InitialCash,
		peak: e.cfg.InitialCash,
		res: &Result{
			Symbol:      e.cfg.Symbol,
			StartIndex:  start,
			EndIndex:    end,
			FirstBarMs:  candles[start].Timestamp,
			LastBarMs:   candles[end-1].Timestamp,
			InitialCash: e.cfg.InitialCash,
			EquityCurve: make([]EquityPoint, 0, end-start),
			Rejections:  make(map[string]int),
		},
	}

	for i := start; i < end; i++ {
		bar := candles[i]
		if !validBar(bar) {
			continue
		}
		if e.barClock != nil {
			e.barClock.Set(time.UnixMilli(bar.Timestamp))
		}

		// 1. mark to market
		eq := l.equity(bar.Close)
		l.mark(eq)
		l.rollDay(bar.Timestamp, eq)
		l.res.EquityCurve = append(l.res.EquityCurve, EquityPoint{Index: i, Timestamp: bar.Timestamp, Equity: eq})
		if e.risk != nil {
			e.risk.UpdateEquity(eq)
		}

		if i < start+e.cfg.WarmUp {
			continue
		}
		window := e.window(candles, start, i)

		// 2. manage the open position; a bar that closes one never re-enters
		if l.pos != nil {
			e.manage(l, window, i, bar)
			continue
		}

		// 3. look for an entry; never on the last bar
		if i < end-1 {
			e.tryEnter(l, window, i, bar)
		}
	}

	if l.pos != nil {
		last := lastValidBar(candles, start, end)
		e.close(l, last, candles[last].Timestamp, candles[last].Close, domain.ExitReasonEnd)
	}

	res := l.res
	res.FinalEquity = l.cash
	l.mark(l.cash)
	res.Pnl = res.FinalEquity - res.InitialCash
	res.PnlPercent = res.Pnl / res.InitialCash * 100
	res.MaxDrawdown = l.maxDD
	res.MaxDrawdownPct = l.maxDD * 100
	return res, nil
}

// prepare lets providers precompute over the replayed history once.
func (e *Engine) prepare(candles []domain.Candle) {
	dp, ok := e.decider.(strategy.Preparer)
	if ok {
		dp.Prepare(candles)
	}
	if ep, ok2 := e.exiter.(strategy.Preparer); ok2 && (!ok || ep != dp) {
		ep.Prepare(candles)
	}
}

// window returns the trailing provider window ending at bar i.
func (e *Engine) window(candles []domain.Candle, start, i int) []domain.Candle {
	from := start
	if e.cfg.WindowSize > 0 && i-e.cfg.WindowSize+1 > from {
		from = i - e.cfg.WindowSize + 1
	}
	return candles[from : i+1]
}

// manage evaluates exits in priority order, then arms break-even on the
// bar close so the raised stop applies from the next bar.
func (e *Engine) manage(l *ledger, window []domain.Candle, i int, bar domain.Candle) {
	pos := l.pos

	// hard stop first: pessimistic when both levels trade inside one bar
	if bar.Low <= pos.StopLoss {
		e.close(l, i, bar.Timestamp, math.Min(bar.Open, pos.StopLoss), domain.ExitReasonStopLoss)
		return
	}
	if pos.TargetPrice > 0 && bar.High >= pos.TargetPrice {
		e.close(l, i, bar.Timestamp, math.Max(bar.Open, pos.TargetPrice), domain.ExitReasonTakeProfit)
		return
	}

	held := i - pos.EntryIndex
	if held >= e.cfg.MinHoldBars && (!e.cfg.ExitRequiresBreakEven || pos.BreakEvenArmed) {
		if d := e.exiter.ShouldExit(window, pos); d.ShouldExit {
			price := bar.Close
			if inBar(bar, d.ExitPrice) {
				price = d.ExitPrice
			}
			e.close(l, i, bar.Timestamp, price, domain.ExitReasonSignal)
			return
		}
	}

	if e.risk != nil && e.risk.Halted() {
		e.close(l, i, bar.Timestamp, bar.Close, domain.ExitReasonSignal)
		return
	}

	if e.cfg.BreakEvenTriggerR > 0 {
		if perUnit := pos.InitialRiskPerUnit(); perUnit > 0 && bar.Close-pos.EntryPrice >= e.cfg.BreakEvenTriggerR*perUnit {
			pos.ArmBreakEven()
		}
	}
}

// tryEnter runs the entry pipeline for a flat ledger.
func (e *Engine) tryEnter(l *ledger, window []domain.Candle, i int, bar domain.Candle) {
	sig := e.detector.Detect(window)
	if sig != nil {
		l.res.Signals++
	}
	if e.cfg.RequireSignal && sig == nil {
		return
	}

	d := e.decider.Decide(window, sig, nil)
	if !d.ShouldTrade {
		return
	}

	if e.risk != nil {
		if a := e.risk.CanOpenPosition(d.Confidence); !a.Allowed {
			l.res.Rejections[RejectRiskManager]++
			return
		}
	}

	// a proposed entry the bar never traded at fills at the close
	if d.EntryPrice != 0 && !inBar(bar, d.EntryPrice) {
		d.EntryPrice = 0
	}

	plan := e.planner.Plan(planner.Request{
		Symbol:       e.cfg.Symbol,
		Decision:     d,
		CurrentPrice: bar.Close,
		Portfolio: domain.PortfolioState{
			TotalEquity:         l.cash,
			Cash:                l.cash,
			RealizedPnlPctToday: l.realizedPctToday(),
		},
		RiskScale:    e.cfg.RiskScale,
		Ratios:       e.cfg.Ratios,
	})
	if !plan.ShouldExecute {
		l.res.Rejections[string(plan.RejectCode)]++
		return
	}
	if plan.Side != domain.SideBuy {
		l.res.Rejections[RejectShortSide]++
		return
	}

	if e.guard != nil {
		v := e.guard.Check(guardrail.Context{
			Symbol:         e.cfg.Symbol,
			EntryPrice:     plan.EntryPrice,
			StopLoss:       plan.StopLoss,
			FeeRate:        e.cfg.Policy.FeeRate,
			LastCandleTime: time.UnixMilli(bar.Timestamp),
			Timeframe:      e.cfg.Timeframe,
		})
		if !v.Allowed {
			l.res.Rejections[rejectGuardPrefix+string(v.Code)]++
			return
		}
	}

	fee := e.cfg.Policy.FeeRate
	qty := plan.Quantity
	if cost := qty * plan.EntryPrice * (1 + fee); cost > l.cash {
		qty = l.cash / (plan.EntryPrice * (1 + fee))
	}
	notional := qty * plan.EntryPrice
	entryFee := notional * fee

	l.entryEquity = l.cash
	l.cash -= notional + entryFee
	l.pos = &domain.Position{
		Symbol:          e.cfg.Symbol,
		Side:            domain.SideBuy,
		EntryPrice:      plan.EntryPrice,
		Quantity:        qty,
		StopLoss:        plan.StopLoss,
		TargetPrice:     plan.TargetPrice,
		InitialStopLoss: plan.StopLoss,
		EntryIndex:      i,
		EntryTime:       bar.Timestamp,
		EntryFee:        entryFee,
		RiskAmount:      qty * plan.RiskSummary.PerUnitRisk,
	}
}

// close settles the open position at price. Closing while flat is a no-op.
func (e *Engine) close(l *ledger, i int, ts int64, price float64, reason domain.ExitReason) {
	pos := l.pos
	if pos == nil {
		return
	}

	exitFee, pnl, pnlPct := Settle(pos.EntryPrice, price, pos.Quantity, pos.EntryFee, e.cfg.Policy.FeeRate)
	l.cash += pos.Quantity*price - exitFee
	l.pos = nil
	l.dayRealized += pnl

	l.res.Trades = append(l.res.Trades, domain.BacktestTrade{
		Symbol:          pos.Symbol,
		EntryIndex:      pos.EntryIndex,
		EntryTime:       pos.EntryTime,
		EntryPrice:      pos.EntryPrice,
		InitialStopLoss: pos.InitialStopLoss,
		TargetPrice:     pos.TargetPrice,
		Quantity:        pos.Quantity,
		RiskAmount:      pos.RiskAmount,
		ExitIndex:       i,
		ExitTime:        ts,
		ExitPrice:       price,
		ExitReason:      reason,
		Side:            pos.Side,
		EntryFee:        pos.EntryFee,
		ExitFee:         exitFee,
		Pnl:             pnl,
		PnlPercent:      pnlPct,
		BreakEvenArmed:  pos.BreakEvenArmed,
	})

	if e.guard != nil {
		r := 0.0
		if pos.RiskAmount > 0 {
			r = pnl / pos.RiskAmount
		}
		pct := 0.0
		if l.entryEquity > 0 {
			pct = pnl / l.entryEquity
		}
		e.guard.OnTradeClosed(domain.ClosedTrade{Symbol: pos.Symbol, RMultiple: r, PnlPct: pct, ExitReason: reason})
	}
	if e.risk != nil {
		e.risk.RecordTrade(pnl)
	}
}

// Settle computes the exit fee and fee-inclusive PnL of a long round trip.
// pnlPercent is relative to the entry notional, in percent units.
func Settle(entry, exit, qty, entryFee, feeRate float64) (exitFee, pnl, pnlPercent float64) {
	exitFee = qty * exit * feeRate
	cost := qty*entry + entryFee
	pnl = qty*exit - exitFee - cost
	if notional := qty * entry; notional > 0 {
		pnlPercent = pnl / notional * 100
	}
	return exitFee, pnl, pnlPercent
}

func validBar(c domain.Candle) bool {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return true
}

// lastValidBar returns the index of the last usable bar in [start, end).
// Only called with an open position, so one exists.
func lastValidBar(candles []domain.Candle, start, end int) int {
	for i := end - 1; i > start; i-- {
		if validBar(candles[i]) {
			return i
		}
	}
	return start
}

// inBar reports whether price lies inside the bar's traded range.
func inBar(bar domain.Candle, price float64) bool {
	return price > 0 && price >= bar.Low && price <= bar.High
}
