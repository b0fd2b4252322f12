// Package planner turns a trade proposal and a portfolio snapshot into a
// fee-aware, exposure-capped order plan.
package planner

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"spot-risk-engine/internal/domain"
)

// Ratios overrides the fallback stop ratio and the 2x target ratio.
type Ratios struct {
	StopLossPct   float64
	TakeProfitPct float64
}

// Request is a single planning input.
type Request struct {
	Symbol       string
	Decision     domain.Decision
	CurrentPrice float64
	Portfolio    domain.PortfolioState
	RiskScale    float64 // <= 0 means 1
	Ratios       *Ratios // optional
}

// Planner sizes orders under a RiskPolicy. It holds no mutable state.
type Planner struct {
	policy domain.RiskPolicy
}

// New creates a planner for policy.
func New(policy domain.RiskPolicy) *Planner {
	return &Planner{policy: policy}
}

// Policy returns the planner's policy.
func (p *Planner) Policy() domain.RiskPolicy {
	return p.policy
}

// Plan returns an executable plan or a typed rejection. It never panics on
// bad numerics; they become rejections.
func (p *Planner) Plan(req Request) *domain.OrderPlan {
	pol := p.policy
	d := req.Decision

	if !d.ShouldTrade {
		return domain.Rejected(domain.RejectDeclined, nonEmpty(d.Reasoning, "proposal declined"))
	}

	side := d.Side
	if side == "" {
		side = domain.SideBuy
	}
	if !side.IsValid() {
		return domain.Rejected(domain.RejectDeclined, fmt.Sprintf("unsupported side %q", d.Side))
	}

	if !finite(d.Confidence) || d.Confidence <= 0 {
		return domain.Rejected(domain.RejectConfidenceTooLow, fmt.Sprintf("confidence %.2f <= 0", d.Confidence))
	}
	confidence := math.Min(d.Confidence, 100)

	entry := req.CurrentPrice
	if positive(d.EntryPrice) {
		entry = d.EntryPrice
	}
	if !positive(entry) {
		return domain.Rejected(domain.RejectInvalidPrice, "missing or invalid entry price")
	}

	equity := req.Portfolio.TotalEquity
	cash := req.Portfolio.Cash
	if !positive(equity) || !finite(cash) {
		return domain.Rejected(domain.RejectInvalidEquity, fmt.Sprintf("invalid equity %.2f / cash %.2f", equity, cash))
	}
	if pol.MaxDailyLossPct > 0 {
		dayPnl := req.Portfolio.RealizedPnlPctToday
		if !finite(dayPnl) || dayPnl <= -pol.MaxDailyLossPct {
			return domain.Rejected(domain.RejectDailyLoss, fmt.Sprintf("realized %.2f%% today, cap %.2f%%", dayPnl*100, pol.MaxDailyLossPct*100))
		}
	}

	scale := req.RiskScale
	if !positive(scale) {
		scale = 1
	}
	appliedRiskPct := pol.RiskPerTradePct * (confidence / 100) * scale
	// floor, not reject: small accounts still risk at least MinNotional
	riskAmount := math.Max(equity*appliedRiskPct, pol.MinNotional)
	if !positive(riskAmount) {
		return domain.Rejected(domain.RejectRiskTooSmall, fmt.Sprintf("risk amount %.4f <= 0", riskAmount))
	}
	if riskAmount > equity {
		return domain.Rejected(domain.RejectRiskTooLarge, fmt.Sprintf("risk amount %.2f exceeds equity %.2f", riskAmount, equity))
	}

	stopPct := pol.FallbackStopLossPct
	targetPct := pol.FallbackStopLossPct * 2
	if req.Ratios != nil {
		if positive(req.Ratios.StopLossPct) {
			stopPct = req.Ratios.StopLossPct
		}
		if positive(req.Ratios.TakeProfitPct) {
			targetPct = req.Ratios.TakeProfitPct
		}
	}

	stop := resolveStop(side, entry, d.StopLoss, stopPct)
	if !positive(stop) {
		return domain.Rejected(domain.RejectInvalidPrice, fmt.Sprintf("invalid stop loss %.8f", stop))
	}

	fee := pol.FeeRate
	perUnit := perUnitRisk(side, entry, stop, fee)
	if !positive(perUnit) {
		return domain.Rejected(domain.RejectRiskTooSmall, fmt.Sprintf("per-unit risk %.8f <= 0", perUnit))
	}

	qty := riskAmount / perUnit
	if !positive(qty) {
		return domain.Rejected(domain.RejectRiskTooSmall, "quantity is not positive")
	}

	exposure := req.Portfolio.Exposure()
	symbolExposure := req.Portfolio.SymbolExposure(req.Symbol)
	limit := math.Inf(1)
	if pol.MaxPositionPct > 0 {
		limit = math.Min(limit, pol.MaxPositionPct*equity-symbolExposure)
	}
	if pol.MaxTotalExposurePct > 0 {
		limit = math.Min(limit, pol.MaxTotalExposurePct*equity-exposure)
	}
	if pol.MaxNotional > 0 {
		limit = math.Min(limit, pol.MaxNotional)
	}
	// leave room for the entry fee
	limit = math.Min(limit, cash/(1+fee))
	if limit <= 0 {
		return domain.Rejected(domain.RejectExposureExhausted, fmt.Sprintf("no exposure headroom (exposure %.2f, cash %.2f)", exposure, cash))
	}

	notional := math.Min(qty*entry, limit)
	if notional < pol.MinNotional {
		return domain.Rejected(domain.RejectBelowMinNotional, fmt.Sprintf("notional %.2f below minimum %.2f", notional, pol.MinNotional))
	}

	qty = roundQuantity(notional/entry, pol.QuantityPrecision)
	notional = qty * entry
	if qty <= 0 || notional < pol.MinNotional {
		return domain.Rejected(domain.RejectBelowMinNotional, fmt.Sprintf("rounded notional %.2f below minimum %.2f", notional, pol.MinNotional))
	}

	target := resolveTarget(side, entry, d.TargetPrice, targetPct)
	if reward := rewardPerUnit(side, entry, target, fee); !positive(reward) {
		return domain.Rejected(domain.RejectNonPositiveReward, fmt.Sprintf("reward after fees %.8f <= 0 (target %.8f)", reward, target))
	}

	return &domain.OrderPlan{
		ShouldExecute: true,
		Side:          side,
		Quantity:      qty,
		EntryPrice:    entry,
		StopLoss:      stop,
		TargetPrice:   target,
		Notional:      notional,
		Reason:        fmt.Sprintf("risk %.2f (%.4f%% of equity) qty %s", riskAmount, appliedRiskPct*100, decimal.NewFromFloat(qty).String()),
		RiskSummary: &domain.RiskSummary{
			AppliedRiskPct:       appliedRiskPct,
			RiskAmount:           riskAmount,
			PerUnitRisk:          perUnit,
			PlannedRisk:          qty * perUnit,
			ExposureBefore:       exposure,
			ExposureAfter:        exposure + notional,
			SymbolExposureBefore: symbolExposure,
			SymbolExposureAfter:  symbolExposure + notional,
		},
	}
}

// resolveStop keeps an explicit stop only when it is on the protective side.
func resolveStop(side domain.Side, entry, proposed, pct float64) float64 {
	if side == domain.SideSell {
		if positive(proposed) && proposed > entry {
			return proposed
		}
		return entry * (1 + pct)
	}
	if positive(proposed) && proposed < entry {
		return proposed
	}
	return entry * (1 - pct)
}

// resolveTarget keeps an explicit target only when it is on the profit side.
func resolveTarget(side domain.Side, entry, proposed, pct float64) float64 {
	if side == domain.SideSell {
		if positive(proposed) && proposed < entry {
			return proposed
		}
		return entry * (1 - pct)
	}
	if positive(proposed) && proposed > entry {
		return proposed
	}
	return entry * (1 + pct)
}

// perUnitRisk is the loss per unit if the stop fills, both fee legs included.
func perUnitRisk(side domain.Side, entry, stop, fee float64) float64 {
	if side == domain.SideSell {
		return stop*(1+fee) - entry*(1-fee)
	}
	return entry*(1+fee) - stop*(1-fee)
}

// rewardPerUnit is the gain per unit if the target fills, both fee legs included.
func rewardPerUnit(side domain.Side, entry, target, fee float64) float64 {
	if side == domain.SideSell {
		return entry*(1-fee) - target*(1+fee)
	}
	return target*(1-fee) - entry*(1+fee)
}

// roundQuantity truncates q to precision decimals. Negative precision keeps q.
func roundQuantity(q float64, precision int) float64 {
	if precision < 0 {
		return q
	}
	return decimal.NewFromFloat(q).Truncate(int32(precision)).InexactFloat64()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positive(v float64) bool {
	return finite(v) && v > 0
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
