package domain

// RejectCode categorises a planner rejection.
type RejectCode string

const (
	RejectDeclined          RejectCode = "DECLINED"
	RejectInvalidPrice      RejectCode = "INVALID_PRICE"
	RejectConfidenceTooLow  RejectCode = "CONFIDENCE_TOO_LOW"
	RejectInvalidEquity     RejectCode = "INVALID_EQUITY"
	RejectRiskTooSmall      RejectCode = "RISK_TOO_SMALL"
	RejectRiskTooLarge      RejectCode = "RISK_TOO_LARGE"
	RejectExposureExhausted RejectCode = "EXPOSURE_EXHAUSTED"
	RejectBelowMinNotional  RejectCode = "BELOW_MIN_NOTIONAL"
	RejectNonPositiveReward RejectCode = "NON_POSITIVE_REWARD"
	RejectDailyLoss         RejectCode = "DAILY_LOSS"
)

// RiskSummary describes how a plan consumed the risk budget.
type RiskSummary struct {
	AppliedRiskPct       float64 // riskPerTradePct * confidence/100 * scale
	RiskAmount           float64 // budgeted currency risk (floored at min notional)
	PerUnitRisk          float64 // fee-inclusive loss per unit at the stop
	PlannedRisk          float64 // quantity * PerUnitRisk after clamping
	ExposureBefore       float64
	ExposureAfter        float64
	SymbolExposureBefore float64
	SymbolExposureAfter  float64
}

// OrderPlan is the planner's one-shot output. Never mutated after creation.
type OrderPlan struct {
	ShouldExecute bool
	Side          Side
	Quantity      float64
	EntryPrice    float64
	StopLoss      float64
	TargetPrice   float64
	Notional      float64
	Reason        string
	RejectCode    RejectCode // empty when ShouldExecute
	RiskSummary   *RiskSummary
}

// Rejected builds a rejection plan.
func Rejected(code RejectCode, reason string) *OrderPlan {
	return &OrderPlan{
		ShouldExecute: false,
		RejectCode:    code,
		Reason:        reason,
	}
}
