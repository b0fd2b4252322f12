package domain

// OpenPosition is a holding as seen by the planner.
type OpenPosition struct {
	Symbol   string
	Quantity float64
	Notional float64 // marked-to-market value
}

// PortfolioState is rebuilt from current holdings each decision cycle.
type PortfolioState struct {
	TotalEquity         float64
	Cash                float64
	OpenPositions       []OpenPosition
	RealizedPnlPctToday float64 // ratio
}

// Exposure returns the total notional of open positions.
func (p *PortfolioState) Exposure() float64 {
	total := 0.0
	for _, op := range p.OpenPositions {
		total += op.Notional
	}
	return total
}

// SymbolExposure returns the notional held in symbol.
func (p *PortfolioState) SymbolExposure(symbol string) float64 {
	total := 0.0
	for _, op := range p.OpenPositions {
		if op.Symbol == symbol {
			total += op.Notional
		}
	}
	return total
}
