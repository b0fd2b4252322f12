package domain

// RiskPolicy is the per-symbol sizing policy. Pct fields are ratios (0.01 = 1%).
type RiskPolicy struct {
	RiskPerTradePct     float64 // share of equity risked at full confidence
	MaxPositionPct      float64 // per-symbol exposure cap as share of equity
	MaxTotalExposurePct float64 // total exposure cap as share of equity
	MaxDailyLossPct     float64 // daily realized loss cap
	MinNotional         float64 // minimum order value; also the risk-amount floor
	MaxNotional         float64 // maximum order value, 0 = unlimited
	FallbackStopLossPct float64 // stop distance when the proposal has none
	FeeRate             float64 // per-leg fee ratio
	QuantityPrecision   int     // decimals kept on quantity
}

// DefaultRiskPolicy returns conservative spot defaults.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		RiskPerTradePct:     0.01,
		MaxPositionPct:      0.20,
		MaxTotalExposurePct: 0.60,
		MaxDailyLossPct:     0.03,
		MinNotional:         5,
		MaxNotional:         0,
		FallbackStopLossPct: 0.02,
		FeeRate:             0.0005,
		QuantityPrecision:   6,
	}
}
