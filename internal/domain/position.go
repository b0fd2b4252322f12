package domain

// Side is an order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// IsValid checks if the side is a valid value.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// Position is an open holding. At most one per symbol.
// StopLoss may ratchet up to EntryPrice (break-even) but never loosens.
type Position struct {
	Symbol          string
	Side            Side // always SideBuy in this system
	EntryPrice      float64
	Quantity        float64
	StopLoss        float64
	TargetPrice     float64
	InitialStopLoss float64
	EntryIndex      int
	EntryTime       int64   // ms
	EntryFee        float64 // fee paid on entry (quote currency)
	RiskAmount      float64 // fee-inclusive currency at risk to the initial stop
	BreakEvenArmed  bool
}

// Notional returns the position value at price.
func (p *Position) Notional(price float64) float64 {
	if p == nil {
		return 0
	}
	return p.Quantity * price
}

// InitialRiskPerUnit returns entry minus the initial stop.
func (p *Position) InitialRiskPerUnit() float64 {
	return p.EntryPrice - p.InitialStopLoss
}

// ArmBreakEven ratchets the stop to entry. Returns true only on the
// transition; an armed position stays armed.
func (p *Position) ArmBreakEven() bool {
	if p.BreakEvenArmed {
		return false
	}
	p.BreakEvenArmed = true
	if p.StopLoss < p.EntryPrice {
		p.StopLoss = p.EntryPrice
	}
	return true
}
