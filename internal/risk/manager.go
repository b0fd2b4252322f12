// Package risk is the equity and drawdown layer: fixed-ratio stops, daily
// breach detection and a portfolio drawdown halt.
package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"spot-risk-engine/internal/clock"
	"spot-risk-engine/internal/domain"
)

// ActionType is the outcome of a position risk check.
type ActionType string

const (
	ActionHold  ActionType = "HOLD"
	ActionClose ActionType = "CLOSE"
)

// Action is returned by CheckPositionRisk.
type Action struct {
	Type       ActionType
	ExitReason domain.ExitReason // set when Type is CLOSE
	Reason     string
}

// Assessment is returned by CanOpenPosition.
type Assessment struct {
	Allowed bool
	Reason  string
}

// Config holds the manager's fixed ratios. Pct fields are ratios.
type Config struct {
	MaxDailyLossPct float64 `json:"maxDailyLossPct"`
	MaxTradesPerDay int     `json:"maxTradesPerDay"`
	MinConfidence   float64 `json:"minConfidence"`
	StopLossPct     float64 `json:"stopLossPct"`
	TakeProfitPct   float64 `json:"takeProfitPct"`
	MaxDrawdownPct  float64 `json:"maxDrawdownPct"`
	PositionSizePct float64 `json:"positionSizePct"`

	Location *time.Location `json:"-"`
}

// DefaultConfig returns the default ratios.
func DefaultConfig() Config {
	return Config{
		MaxDailyLossPct: 0.05,
		MaxTradesPerDay: 20,
		MinConfidence:   60,
		StopLossPct:     0.02,
		TakeProfitPct:   0.04,
		MaxDrawdownPct:  0.20,
		PositionSizePct: 0.10,
	}
}

// Manager tracks initial, peak and current equity. Safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	clock clock.Clock

	initialEquity  float64
	peakEquity     float64
	currentEquity  float64
	dayKey         string
	dayStartEquity float64
	dailyPnl       float64
	tradesToday    int
	halted         bool
}

// NewManager creates a manager starting at initialEquity.
func NewManager(cfg Config, initialEquity float64, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	return &Manager{
		cfg:            cfg,
		clock:          clk,
		initialEquity:  initialEquity,
		peakEquity:     initialEquity,
		currentEquity:  initialEquity,
		dayStartEquity: initialEquity,
	}
}

// Config returns the manager's ratios.
func (m *Manager) Config() Config {
	return m.cfg
}

// UpdateEquity marks equity, raises the peak and trips the drawdown halt.
func (m *Manager) UpdateEquity(equity float64) {
	if math.IsNaN(equity) || math.IsInf(equity, 0) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollover()
	m.currentEquity = equity
	if equity > m.peakEquity {
		m.peakEquity = equity
	}
	if m.cfg.MaxDrawdownPct > 0 && m.drawdown() >= m.cfg.MaxDrawdownPct {
		m.halted = true
	}
}

// RecordTrade books realized PnL of a closed trade.
func (m *Manager) RecordTrade(pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollover()
	if !math.IsNaN(pnl) && !math.IsInf(pnl, 0) {
		m.dailyPnl += pnl
	}
	m.tradesToday++
}

// CanOpenPosition denies on a tripped halt, a daily loss or trade-count
// breach, or confidence below the floor.
func (m *Manager) CanOpenPosition(confidence float64) Assessment {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollover()
	if m.halted {
		return Assessment{Reason: fmt.Sprintf("trading halted: drawdown %.2f%%", m.drawdown()*100)}
	}
	if m.cfg.MaxDailyLossPct > 0 && m.dayStartEquity > 0 {
		if lossPct := -m.dailyPnl / m.dayStartEquity; lossPct >= m.cfg.MaxDailyLossPct {
			return Assessment{Reason: fmt.Sprintf("daily loss %.2f%% reached %.2f%%", lossPct*100, m.cfg.MaxDailyLossPct*100)}
		}
	}
	if m.cfg.MaxTradesPerDay > 0 && m.tradesToday >= m.cfg.MaxTradesPerDay {
		return Assessment{Reason: fmt.Sprintf("%d trades today, cap %d", m.tradesToday, m.cfg.MaxTradesPerDay)}
	}
	if math.IsNaN(confidence) || confidence < m.cfg.MinConfidence {
		return Assessment{Reason: fmt.Sprintf("confidence %.1f below %.1f", confidence, m.cfg.MinConfidence)}
	}
	return Assessment{Allowed: true}
}

// CheckPositionRisk evaluates fixed-ratio stop/target against price and the
// portfolio drawdown trigger. A nil position or bad price holds.
func (m *Manager) CheckPositionRisk(pos *domain.Position, price float64) Action {
	if pos == nil {
		return Action{Type: ActionHold, Reason: "no position"}
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return Action{Type: ActionHold, Reason: "invalid price"}
	}

	stop, target := m.StopTarget(pos.EntryPrice)
	if m.cfg.StopLossPct > 0 && price <= stop {
		return Action{Type: ActionClose, ExitReason: domain.ExitReasonStopLoss, Reason: fmt.Sprintf("price %.8f at or below stop %.8f", price, stop)}
	}
	if m.cfg.TakeProfitPct > 0 && price >= target {
		return Action{Type: ActionClose, ExitReason: domain.ExitReasonTakeProfit, Reason: fmt.Sprintf("price %.8f at or above target %.8f", price, target)}
	}

	m.mu.Lock()
	dd := m.drawdown()
	m.mu.Unlock()
	if m.cfg.MaxDrawdownPct > 0 && dd >= m.cfg.MaxDrawdownPct {
		return Action{Type: ActionClose, ExitReason: domain.ExitReasonSignal, Reason: fmt.Sprintf("portfolio drawdown %.2f%%", dd*100)}
	}
	return Action{Type: ActionHold}
}

// PositionSize returns the fixed-ratio quantity for equity at price.
func (m *Manager) PositionSize(equity, price float64) float64 {
	if equity <= 0 || price <= 0 || math.IsNaN(equity) || math.IsNaN(price) {
		return 0
	}
	return equity * m.cfg.PositionSizePct / price
}

// StopTarget returns the symmetric fixed-ratio stop and target for entry.
func (m *Manager) StopTarget(entry float64) (stop, target float64) {
	return entry * (1 - m.cfg.StopLossPct), entry * (1 + m.cfg.TakeProfitPct)
}

// Drawdown returns the current drawdown from peak as a ratio.
func (m *Manager) Drawdown() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drawdown()
}

// Halted reports whether the drawdown halt has tripped.
func (m *Manager) Halted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halted
}

func (m *Manager) drawdown() float64 {
	if m.peakEquity <= 0 {
		return 0
	}
	return (m.peakEquity - m.currentEquity) / m.peakEquity
}

// rollover starts a new day on the clock's calendar date. Caller holds mu.
func (m *Manager) rollover() {
	key := clock.DayKey(m.clock.Now(), m.cfg.Location)
	if key == m.dayKey {
		return
	}
	m.dayKey = key
	m.dayStartEquity = m.currentEquity
	m.dailyPnl = 0
	m.tradesToday = 0
}
