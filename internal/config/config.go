package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"spot-risk-engine/internal/decision"
	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/guardrail"
	"spot-risk-engine/internal/planner"
	"spot-risk-engine/internal/risk"
	"spot-risk-engine/internal/signal"
	"spot-risk-engine/internal/simulation"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the engine configuration file.
type Config struct {
	Risk        RiskConfig        `json:"risk"`
	Guardrail   guardrail.Config  `json:"guardrail"`
	Signal      signal.Thresholds `json:"signal"`
	Simulation  SimulationConfig  `json:"simulation"`
	RiskManager RiskManagerConfig `json:"riskManager"`
	Validation  ValidationConfig  `json:"validation"`
}

// RiskConfig mirrors domain.RiskPolicy. Pct fields are ratios.
type RiskConfig struct {
	RiskPerTradePct     float64 `json:"riskPerTradePct"`
	MaxPositionPct      float64 `json:"maxPositionPct"`
	MaxTotalExposurePct float64 `json:"maxTotalExposurePct"`
	MaxDailyLossPct     float64 `json:"maxDailyLossPct"`
	MinNotional         float64 `json:"minNotional"`
	MaxNotional         float64 `json:"maxNotional"`
	FallbackStopLossPct float64 `json:"fallbackStopLossPct"`
	FeeRate             float64 `json:"feeRate"`
	QuantityPrecision   int     `json:"quantityPrecision"`
}

// SimulationConfig configures the replay engine.
type SimulationConfig struct {
	Interval              string         `json:"interval"` // 1m, 15m, 1h, 4h, 1d
	InitialCash           float64        `json:"initialCash"`
	WarmUp                int            `json:"warmUp"`
	WindowSize            int            `json:"windowSize"`
	RequireSignal         bool           `json:"requireSignal"`
	MinHoldBars           int            `json:"minHoldBars"`
	BreakEvenTriggerR     float64        `json:"breakEvenTriggerR"`
	ExitRequiresBreakEven bool           `json:"exitRequiresBreakEven"`
	RiskScale             float64        `json:"riskScale"`
	StopLossPct           float64        `json:"stopLossPct"`   // 0 = stop from the decision
	TakeProfitPct         float64        `json:"takeProfitPct"` // 0 = target from the decision
	Strategy              StrategyConfig `json:"strategy"`
	UseGuardrail          bool           `json:"useGuardrail"`
	UseRiskManager        bool           `json:"useRiskManager"`
}

// RiskManagerConfig toggles and configures the equity risk manager.
type RiskManagerConfig struct {
	risk.Config
}

// StrategyConfig mirrors domain.StrategyConfig. Unset parameters take the
// strategy defaults.
type StrategyConfig struct {
	Type               string   `json:"type"`
	BreakoutLookback   *int     `json:"breakoutLookback,omitempty"`
	RetestBars         *int     `json:"retestBars,omitempty"`
	RetestTolerancePct *float64 `json:"retestTolerancePct,omitempty"`
	RewardRatio        *float64 `json:"rewardRatio,omitempty"`
	Neighbors          *int     `json:"neighbors,omitempty"`
	TrainWindow        *int     `json:"trainWindow,omitempty"`
	LabelHorizon       *int     `json:"labelHorizon,omitempty"`
	MinVoteRatio       *float64 `json:"minVoteRatio,omitempty"`
	RSIOverbought      *float64 `json:"rsiOverbought,omitempty"`
}

// ValidationConfig configures k-fold validation and the GO/NO-GO gate.
type ValidationConfig struct {
	simulation.ValidationConfig
	Decision decision.Thresholds `json:"decision"`

	// Grid; empty strategies means the simulation strategy alone, empty
	// thresholds means the top-level signal thresholds alone.
	Strategies []StrategyConfig    `json:"strategies"`
	Thresholds []signal.Thresholds `json:"thresholds"`
}

// Default returns the documented defaults.
func Default() Config {
	p := domain.DefaultRiskPolicy()
	sim := simulation.DefaultConfig()
	return Config{
		Risk: RiskConfig{
			RiskPerTradePct:     p.RiskPerTradePct,
			MaxPositionPct:      p.MaxPositionPct,
			MaxTotalExposurePct: p.MaxTotalExposurePct,
			MaxDailyLossPct:     p.MaxDailyLossPct,
			MinNotional:         p.MinNotional,
			MaxNotional:         p.MaxNotional,
			FallbackStopLossPct: p.FallbackStopLossPct,
			FeeRate:             p.FeeRate,
			QuantityPrecision:   p.QuantityPrecision,
		},
		Guardrail: guardrail.DefaultConfig(),
		Signal:    signal.DefaultThresholds(),
		Simulation: SimulationConfig{
			Interval:          "1h",
			InitialCash:       sim.InitialCash,
			WarmUp:            sim.WarmUp,
			WindowSize:        sim.WindowSize,
			MinHoldBars:       sim.MinHoldBars,
			BreakEvenTriggerR: sim.BreakEvenTriggerR,
			RiskScale:         sim.RiskScale,
			Strategy:          StrategyConfig{Type: domain.StrategyTypeBreakoutRetest},
			UseGuardrail:      true,
			UseRiskManager:    true,
		},
		RiskManager: RiskManagerConfig{Config: risk.DefaultConfig()},
		Validation: ValidationConfig{
			ValidationConfig: simulation.DefaultValidationConfig(),
			Decision:         decision.DefaultThresholds(),
		},
	}
}

// Load reads a JSON file over the defaults and validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config json: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges. Every error wraps ErrInvalidConfig.
func (c Config) Validate() error {
	r := c.Risk
	switch {
	case r.RiskPerTradePct <= 0 || r.RiskPerTradePct > 0.1:
		return invalid("risk.riskPerTradePct must be in (0, 0.1]")
	case r.MaxPositionPct <= 0 || r.MaxPositionPct > 1:
		return invalid("risk.maxPositionPct must be in (0, 1]")
	case r.MaxTotalExposurePct < r.MaxPositionPct || r.MaxTotalExposurePct > 1:
		return invalid("risk.maxTotalExposurePct must be in [maxPositionPct, 1]")
	case r.MinNotional < 0:
		return invalid("risk.minNotional must not be negative")
	case r.MaxNotional != 0 && r.MaxNotional < r.MinNotional:
		return invalid("risk.maxNotional must be 0 or >= minNotional")
	case r.FallbackStopLossPct <= 0 || r.FallbackStopLossPct >= 1:
		return invalid("risk.fallbackStopLossPct must be in (0, 1)")
	case r.FeeRate < 0 || r.FeeRate >= 0.1:
		return invalid("risk.feeRate must be in [0, 0.1)")
	case r.QuantityPrecision < 0 || r.QuantityPrecision > 12:
		return invalid("risk.quantityPrecision must be in [0, 12]")
	}

	g := c.Guardrail
	if g.MaxTradesPerDay < 0 || g.MaxConsecutiveSL < 0 || g.CooldownMinutes < 0 {
		return invalid("guardrail counters must not be negative")
	}

	if err := validateThresholds("signal", c.Signal); err != nil {
		return err
	}

	s := c.Simulation
	if _, err := ParseInterval(s.Interval); err != nil {
		return invalid("simulation.interval: %v", err)
	}
	switch {
	case s.InitialCash <= 0:
		return invalid("simulation.initialCash must be positive")
	case s.WarmUp < 0 || s.WindowSize < 0 || s.MinHoldBars < 0:
		return invalid("simulation bar counts must not be negative")
	case s.RiskScale <= 0 || s.RiskScale > 1:
		return invalid("simulation.riskScale must be in (0, 1]")
	case s.StopLossPct < 0 || s.StopLossPct >= 1 || s.TakeProfitPct < 0:
		return invalid("simulation stop/target ratios out of range")
	case (s.StopLossPct == 0) != (s.TakeProfitPct == 0):
		return invalid("simulation.stopLossPct and takeProfitPct must be set together")
	case s.Strategy.Type == "":
		return invalid("simulation.strategy.type is required")
	}

	m := c.RiskManager
	if m.MaxDrawdownPct <= 0 || m.MaxDrawdownPct > 1 || m.MaxDailyLossPct <= 0 || m.MaxDailyLossPct > 1 {
		return invalid("riskManager loss ratios must be in (0, 1]")
	}

	v := c.Validation
	switch {
	case v.Folds < 2:
		return invalid("validation.folds must be >= 2")
	case v.TopN < 1:
		return invalid("validation.topN must be >= 1")
	case v.SlippagePct < 0 || v.BreakEvenBand < 0:
		return invalid("validation slippage and band must not be negative")
	case v.Decision.MinTrades < 1 || v.Decision.MaxDrawdownPct <= 0:
		return invalid("validation.decision thresholds must be positive")
	}
	for i, st := range v.Strategies {
		if st.Type == "" {
			return invalid("validation.strategies[%d].type is required", i)
		}
	}
	for i, th := range v.Thresholds {
		if err := validateThresholds(fmt.Sprintf("validation.thresholds[%d]", i), th); err != nil {
			return err
		}
	}
	return nil
}

func validateThresholds(name string, th signal.Thresholds) error {
	if th.ATRMultiplier < 0 || th.PriceSurgePct < 0 || th.VolumeSpikeMultiplier < 0 {
		return invalid("%s thresholds must not be negative", name)
	}
	if th.ATRMultiplier == 0 && th.PriceSurgePct == 0 && th.VolumeSpikeMultiplier == 0 {
		return invalid("%s needs at least one non-zero threshold", name)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Policy returns the sizing policy.
func (c Config) Policy() domain.RiskPolicy {
	r := c.Risk
	return domain.RiskPolicy{
		RiskPerTradePct:     r.RiskPerTradePct,
		MaxPositionPct:      r.MaxPositionPct,
		MaxTotalExposurePct: r.MaxTotalExposurePct,
		MaxDailyLossPct:     r.MaxDailyLossPct,
		MinNotional:         r.MinNotional,
		MaxNotional:         r.MaxNotional,
		FallbackStopLossPct: r.FallbackStopLossPct,
		FeeRate:             r.FeeRate,
		QuantityPrecision:   r.QuantityPrecision,
	}
}

// Engine returns the replay configuration for a symbol.
func (c Config) Engine(symbol string) simulation.Config {
	s := c.Simulation
	tf, _ := ParseInterval(s.Interval)
	cfg := simulation.Config{
		Symbol:                symbol,
		InitialCash:           s.InitialCash,
		WarmUp:                s.WarmUp,
		WindowSize:            s.WindowSize,
		RequireSignal:         s.RequireSignal,
		MinHoldBars:           s.MinHoldBars,
		BreakEvenTriggerR:     s.BreakEvenTriggerR,
		ExitRequiresBreakEven: s.ExitRequiresBreakEven,
		Signal:                c.Signal,
		Policy:                c.Policy(),
		RiskScale:             s.RiskScale,
		Timeframe:             tf,
	}
	if s.StopLossPct > 0 {
		cfg.Ratios = &planner.Ratios{StopLossPct: s.StopLossPct, TakeProfitPct: s.TakeProfitPct}
	}
	return cfg
}

// Strategy returns the configured single-run strategy.
func (c Config) Strategy() domain.StrategyConfig {
	return c.Simulation.Strategy.Domain()
}

// Candidates returns the validation grid.
func (c Config) Candidates() []simulation.Candidate {
	strategies := []domain.StrategyConfig{c.Strategy()}
	if len(c.Validation.Strategies) > 0 {
		strategies = strategies[:0]
		for _, s := range c.Validation.Strategies {
			strategies = append(strategies, s.Domain())
		}
	}
	thresholds := c.Validation.Thresholds
	if len(thresholds) == 0 {
		thresholds = []signal.Thresholds{c.Signal}
	}
	return simulation.Grid(strategies, thresholds)
}

// Domain converts to domain.StrategyConfig.
func (s StrategyConfig) Domain() domain.StrategyConfig {
	return domain.StrategyConfig{
		StrategyType:       strings.ToUpper(s.Type),
		BreakoutLookback:   s.BreakoutLookback,
		RetestBars:         s.RetestBars,
		RetestTolerancePct: s.RetestTolerancePct,
		RewardRatio:        s.RewardRatio,
		Neighbors:          s.Neighbors,
		TrainWindow:        s.TrainWindow,
		LabelHorizon:       s.LabelHorizon,
		MinVoteRatio:       s.MinVoteRatio,
		RSIOverbought:      s.RSIOverbought,
	}
}

// ParseInterval parses candle intervals such as 1m, 4h or 1d.
func ParseInterval(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("interval is empty")
	}
	if n, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("bad interval %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	if n, ok := strings.CutSuffix(s, "w"); ok {
		weeks, err := strconv.Atoi(n)
		if err != nil || weeks <= 0 {
			return 0, fmt.Errorf("bad interval %q", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("bad interval %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("bad interval %q", s)
	}
	return d, nil
}
