// Package guardrail is a stateful, day-scoped pre-trade veto layer.
//
// An Engine is owned by its caller (one per account or symbol group). All
// methods are safe for concurrent use; Check and OnTradeClosed serialize on
// a single mutex so one ledger can be shared by several symbol workers.
package guardrail

import (
	"fmt"
	"math"
	"sync"
	"time"

	"spot-risk-engine/internal/clock"
	"spot-risk-engine/internal/domain"
)

// DenyCode names the failing check.
type DenyCode string

// Deny codes in evaluation order.
const (
	DenyCooldown      DenyCode = "COOLDOWN"
	DenyDailyRLoss    DenyCode = "DAILY_R_LOSS"
	DenyDailyPctLoss  DenyCode = "DAILY_PCT_LOSS"
	DenyMaxTrades     DenyCode = "MAX_TRADES"
	DenyStaleData     DenyCode = "STALE_DATA"
	DenyFeeToRisk     DenyCode = "FEE_TO_RISK"
	DenyStopTooTight  DenyCode = "STOP_TOO_TIGHT"
	DenySpreadTooWide DenyCode = "SPREAD_TOO_WIDE"
	DenyBookShallow   DenyCode = "BOOK_TOO_SHALLOW"
	DenyLowVolume     DenyCode = "LOW_VOLUME"
	DenyConsecutiveSL DenyCode = "CONSECUTIVE_SL"
)

// Config holds the guardrail thresholds. A zero value disables its check.
type Config struct {
	MaxDailyLossR    float64 `json:"maxDailyLossR"`   // deny once realized R <= -MaxDailyLossR
	MaxDailyLossPct  float64 `json:"maxDailyLossPct"` // ratio, deny once realized pct <= -MaxDailyLossPct
	MaxTradesPerDay  int     `json:"maxTradesPerDay"`
	MaxFeeToRisk     float64 `json:"maxFeeToRisk"` // round-trip fees / stop distance
	MinStopPct       float64 `json:"minStopPct"`
	MaxSpreadPct     float64 `json:"maxSpreadPct"`
	MinBookDepth     float64 `json:"minBookDepth"` // quote currency
	Min24hVolume     float64 `json:"min24hVolume"` // quote currency
	MaxConsecutiveSL int     `json:"maxConsecutiveSL"`
	CooldownMinutes  int     `json:"cooldownMinutes"`

	// Location defines the calendar day. nil means time.Local.
	Location *time.Location `json:"-"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MaxDailyLossR:    3,
		MaxDailyLossPct:  0.03,
		MaxTradesPerDay:  10,
		MaxFeeToRisk:     0.25,
		MinStopPct:       0.003,
		MaxSpreadPct:     0.002,
		MinBookDepth:     0,
		Min24hVolume:     0,
		MaxConsecutiveSL: 3,
		CooldownMinutes:  60,
	}
}

// ForBacktest returns a copy with the order-book and volume checks disabled.
// Candle replays carry no spread, depth or 24h volume.
func (c Config) ForBacktest() Config {
	c.MaxSpreadPct = 0
	c.MinBookDepth = 0
	c.Min24hVolume = 0
	return c
}

// Context is the market and order snapshot for one check. Optional market
// data is nil when unknown; an enabled check with missing data denies.
type Context struct {
	Symbol     string
	EntryPrice float64
	StopLoss   float64
	FeeRate    float64

	// LastCandleTime is the open time of the newest candle.
	LastCandleTime time.Time
	// Timeframe is the candle interval; zero disables the staleness check.
	Timeframe time.Duration

	SpreadPct *float64
	BookDepth *float64
	Volume24h *float64
}

// Verdict is the outcome of a check.
type Verdict struct {
	Allowed bool
	Code    DenyCode
	Reason  string
}

func allow() Verdict {
	return Verdict{Allowed: true}
}

func deny(code DenyCode, format string, args ...any) Verdict {
	return Verdict{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Engine is the guardrail ledger.
type Engine struct {
	mu    sync.Mutex
	cfg   Config
	clock clock.Clock
	state domain.GuardrailState
}

// New creates an engine. A nil clock means the system clock.
func New(cfg Config, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{cfg: cfg, clock: clk}
}

// Config returns the thresholds.
func (e *Engine) Config() Config {
	return e.cfg
}

// State returns a copy of the ledger after applying any pending day rollover.
func (e *Engine) State() domain.GuardrailState {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rollover(e.clock.Now())
	return e.state
}

// Reset clears the ledger.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = domain.GuardrailState{}
}

// Check evaluates all gates in priority order and returns the first failure.
func (e *Engine) Check(c Context) Verdict {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	e.rollover(now)
	cfg := e.cfg
	st := &e.state

	if st.CooldownUntil > 0 {
		if until := time.UnixMilli(st.CooldownUntil); now.Before(until) {
			return deny(DenyCooldown, "cooldown active until %s", until.UTC().Format(time.RFC3339))
		}
		st.CooldownUntil = 0
	}

	if cfg.MaxDailyLossR > 0 && st.DailyRealizedR <= -cfg.MaxDailyLossR {
		return deny(DenyDailyRLoss, "daily loss %.2fR reached cap %.2fR", st.DailyRealizedR, cfg.MaxDailyLossR)
	}
	if cfg.MaxDailyLossPct > 0 && st.DailyRealizedPct <= -cfg.MaxDailyLossPct {
		return deny(DenyDailyPctLoss, "daily loss %.2f%% reached cap %.2f%%", st.DailyRealizedPct*100, cfg.MaxDailyLossPct*100)
	}
	if cfg.MaxTradesPerDay > 0 && st.TradesToday >= cfg.MaxTradesPerDay {
		return deny(DenyMaxTrades, "%d trades today, cap %d", st.TradesToday, cfg.MaxTradesPerDay)
	}

	if c.Timeframe > 0 {
		if c.LastCandleTime.IsZero() {
			return deny(DenyStaleData, "no candle timestamp")
		}
		if age := now.Sub(c.LastCandleTime); age > 2*c.Timeframe {
			return deny(DenyStaleData, "last candle is %s old (limit %s)", age.Round(time.Second), 2*c.Timeframe)
		}
	}

	if cfg.MaxFeeToRisk > 0 || cfg.MinStopPct > 0 {
		if !validPrice(c.EntryPrice) || !validPrice(c.StopLoss) || c.StopLoss == c.EntryPrice {
			code := DenyFeeToRisk
			if cfg.MaxFeeToRisk <= 0 {
				code = DenyStopTooTight
			}
			return deny(code, "invalid entry %.8f / stop %.8f", c.EntryPrice, c.StopLoss)
		}
		distance := math.Abs(c.EntryPrice - c.StopLoss)
		if cfg.MaxFeeToRisk > 0 {
			if !finite(c.FeeRate) || c.FeeRate < 0 {
				return deny(DenyFeeToRisk, "fee rate invalid")
			}
			feeToRisk := (c.EntryPrice + c.StopLoss) * c.FeeRate / distance
			if feeToRisk > cfg.MaxFeeToRisk {
				return deny(DenyFeeToRisk, "fees are %.2fR of risk (max %.2fR)", feeToRisk, cfg.MaxFeeToRisk)
			}
		}
		if cfg.MinStopPct > 0 {
			if stopPct := distance / c.EntryPrice; stopPct < cfg.MinStopPct {
				return deny(DenyStopTooTight, "stop distance %.3f%% below %.3f%%", stopPct*100, cfg.MinStopPct*100)
			}
		}
	}

	if cfg.MaxSpreadPct > 0 {
		if c.SpreadPct == nil {
			return deny(DenySpreadTooWide, "spread unknown")
		}
		if !finite(*c.SpreadPct) || *c.SpreadPct < 0 {
			return deny(DenySpreadTooWide, "spread invalid")
		}
		if *c.SpreadPct > cfg.MaxSpreadPct {
			return deny(DenySpreadTooWide, "spread %.3f%% above %.3f%%", *c.SpreadPct*100, cfg.MaxSpreadPct*100)
		}
	}
	if cfg.MinBookDepth > 0 {
		if c.BookDepth == nil {
			return deny(DenyBookShallow, "order book depth unknown")
		}
		if !finite(*c.BookDepth) || *c.BookDepth < 0 {
			return deny(DenyBookShallow, "order book depth invalid")
		}
		if *c.BookDepth < cfg.MinBookDepth {
			return deny(DenyBookShallow, "book depth %.2f below %.2f", *c.BookDepth, cfg.MinBookDepth)
		}
	}
	if cfg.Min24hVolume > 0 {
		if c.Volume24h == nil {
			return deny(DenyLowVolume, "24h volume unknown")
		}
		if !finite(*c.Volume24h) || *c.Volume24h < 0 {
			return deny(DenyLowVolume, "24h volume invalid")
		}
		if *c.Volume24h < cfg.Min24hVolume {
			return deny(DenyLowVolume, "24h volume %.2f below %.2f", *c.Volume24h, cfg.Min24hVolume)
		}
	}

	if cfg.MaxConsecutiveSL > 0 && st.ConsecutiveSL >= cfg.MaxConsecutiveSL {
		streak := st.ConsecutiveSL
		until := now.Add(time.Duration(cfg.CooldownMinutes) * time.Minute)
		st.CooldownUntil = until.UnixMilli()
		st.ConsecutiveSL = 0
		return deny(DenyConsecutiveSL, "%d consecutive stop losses, cooling down until %s", streak, until.UTC().Format(time.RFC3339))
	}

	return allow()
}

// OnTradeClosed books a closed trade into the day ledger.
func (e *Engine) OnTradeClosed(t domain.ClosedTrade) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rollover(e.clock.Now())
	st := &e.state

	if finite(t.RMultiple) {
		st.DailyRealizedR += t.RMultiple
	}
	if finite(t.PnlPct) {
		st.DailyRealizedPct += t.PnlPct
	}
	st.TradesToday++

	switch t.ExitReason {
	case domain.ExitReasonStopLoss:
		st.ConsecutiveSL++
	case domain.ExitReasonTakeProfit:
		st.ConsecutiveSL = 0
	}
}

// rollover resets the ledger when the calendar day changed. Caller holds mu.
func (e *Engine) rollover(now time.Time) {
	key := clock.DayKey(now, e.cfg.Location)
	if e.state.DayKey != key {
		e.state = domain.GuardrailState{DayKey: key}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validPrice(v float64) bool {
	return finite(v) && v > 0
}
