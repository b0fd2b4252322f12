package backtest

import (
	"time"

	"spot-risk-engine/internal/clock"
	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/guardrail"
	"spot-risk-engine/internal/risk"
	"spot-risk-engine/internal/simulation"
	"spot-risk-engine/internal/strategy"
)

// newEngine builds a single-run engine with its own strategy and gates. The
// gates share a bar clock that the engine moves through replay time.
func (r *Runner) newEngine(symbol string, first domain.Candle) (*simulation.Engine, string, error) {
	strat, err := strategy.FromConfig(r.cfg.Strategy())
	if err != nil {
		return nil, "", err
	}

	simCfg := r.cfg.Engine(symbol)
	opts := simulation.Options{Decider: strat, Exiter: strat}

	if r.cfg.Simulation.UseGuardrail || r.cfg.Simulation.UseRiskManager {
		barClock := clock.NewManual(time.UnixMilli(first.Timestamp).UTC())
		opts.BarClock = barClock

		if r.cfg.Simulation.UseGuardrail {
			g := r.cfg.Guardrail.ForBacktest()
			g.Location = time.UTC
			opts.Guardrail = guardrail.New(g, barClock)
		}
		if r.cfg.Simulation.UseRiskManager {
			m := r.cfg.RiskManager.Config
			m.Location = time.UTC
			opts.Risk = risk.NewManager(m, simCfg.InitialCash, barClock)
		}
	}

	eng, err := simulation.NewEngine(simCfg, opts)
	if err != nil {
		return nil, "", err
	}
	return eng, strat.ID(), nil
}
