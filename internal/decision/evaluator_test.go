package decision

import (
	"errors"
	"strings"
	"testing"
)

func goInput() *DecisionInput {
	return &DecisionInput{
		Symbol:            "BTCUSDT",
		StrategyID:        "breakout_retest",
		Candidate:         "breakout_retest#s0-t0",
		Trades:            24,
		Expectancy:        0.35,
		MaxDrawdownPct:    8.5,
		PnlPercent:        12.0,
		BootstrapComputed: true,
		BootstrapP5:       0.05,
		BootstrapP50:      0.33,
		BootstrapP95:      0.61,
		MeanFoldScore:     0.8,
		Consistency:       0.75,
	}
}

func countFailed(cs []CriterionResult) int {
	n := 0
	for _, c := range cs {
		if !c.Pass {
			n++
		}
	}
	return n
}

func TestEvaluate_AllPass(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	result, err := e.Evaluate(*goInput())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Decision != DecisionGO {
		t.Errorf("expected GO, got %s", result.Decision)
	}
	if len(result.GOCriteria) != 5 {
		t.Errorf("expected 5 GO criteria, got %d", len(result.GOCriteria))
	}
	if len(result.NOGOChecks) != 3 {
		t.Errorf("expected 3 NO-GO triggers, got %d", len(result.NOGOChecks))
	}
	if countFailed(result.GOCriteria) != 0 || countFailed(result.NOGOChecks) != 0 {
		t.Errorf("expected nothing failed, got %+v", result)
	}
}

func TestEvaluate_SingleFailureIsNOGO(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DecisionInput)
		failed string
	}{
		{"p5 not positive", func(in *DecisionInput) { in.BootstrapP5 = 0 }, "Bootstrap lower bound"},
		{"negative expectancy", func(in *DecisionInput) { in.Expectancy = -0.1 }, "Expectancy"},
		{"too few trades", func(in *DecisionInput) { in.Trades = 9 }, "Sample size"},
		{"deep drawdown", func(in *DecisionInput) { in.MaxDrawdownPct = 20.01 }, "Max drawdown"},
		{"inconsistent folds", func(in *DecisionInput) { in.Consistency = 0.29 }, "Fold consistency"},
		{"losing folds", func(in *DecisionInput) { in.MeanFoldScore = 0 }, "Losing across folds"},
	}

	e := NewEvaluator(DefaultThresholds())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := goInput()
			tt.mutate(in)
			result, err := e.Evaluate(*in)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if result.Decision != DecisionNOGO {
				t.Fatalf("expected NO-GO, got %s", result.Decision)
			}
			found := false
			for _, c := range append(result.GOCriteria, result.NOGOChecks...) {
				if c.Name == tt.failed && !c.Pass {
					found = true
				}
			}
			if !found {
				t.Errorf("expected %q to fail", tt.failed)
			}
		})
	}
}

func TestEvaluate_BoundariesPass(t *testing.T) {
	in := goInput()
	in.Trades = 10
	in.MaxDrawdownPct = 20
	in.Consistency = 0.3

	result, err := NewEvaluator(DefaultThresholds()).Evaluate(*in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Decision != DecisionGO {
		t.Errorf("limits are inclusive, expected GO, got %+v", result.GOCriteria)
	}
}

func TestEvaluate_BootstrapNotComputed(t *testing.T) {
	in := goInput()
	in.Trades = 4
	in.BootstrapComputed = false
	in.BootstrapP5, in.BootstrapP50, in.BootstrapP95 = 0, 0, 0

	result, err := NewEvaluator(DefaultThresholds()).Evaluate(*in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Decision != DecisionNOGO {
		t.Fatalf("expected NO-GO, got %s", result.Decision)
	}
	if result.NOGOChecks[0].Pass {
		t.Error("expected bootstrap-not-computed trigger")
	}
	// An absent interval is reported once, not also as P95 <= 0.
	if !result.NOGOChecks[1].Pass {
		t.Error("P95 trigger should not fire without an interval")
	}
}

func TestEvaluate_WholeIntervalNegative(t *testing.T) {
	in := goInput()
	in.BootstrapP5, in.BootstrapP50, in.BootstrapP95 = -0.4, -0.2, -0.01

	result, err := NewEvaluator(DefaultThresholds()).Evaluate(*in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.NOGOChecks[1].Pass {
		t.Error("expected P95 trigger")
	}
	if result.Decision != DecisionNOGO {
		t.Errorf("expected NO-GO, got %s", result.Decision)
	}
}

func TestEvaluate_CustomThresholds(t *testing.T) {
	in := goInput()
	in.MaxDrawdownPct = 30

	result, err := NewEvaluator(Thresholds{MinTrades: 5, MaxDrawdownPct: 35, MinConsistency: 0.5}).Evaluate(*in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Decision != DecisionGO {
		t.Errorf("expected GO with relaxed drawdown, got %s", result.Decision)
	}
	if result.GOCriteria[2].Threshold != ">= 5 trades" {
		t.Errorf("threshold text: got %q", result.GOCriteria[2].Threshold)
	}
}

func TestEvaluate_InvalidInput(t *testing.T) {
	in := goInput()
	in.StrategyID = ""
	if _, err := NewEvaluator(DefaultThresholds()).Evaluate(*in); !errors.Is(err, ErrEmptyStrategyID) {
		t.Errorf("expected ErrEmptyStrategyID, got %v", err)
	}
}

func TestRenderMarkdown(t *testing.T) {
	in := goInput()
	in.Trades = 3
	result, err := NewEvaluator(DefaultThresholds()).Evaluate(*in)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	md := RenderMarkdown(result)
	for _, want := range []string{
		"## Decision: NO-GO",
		"Symbol: BTCUSDT | Strategy: breakout_retest",
		"| 3 | Sample size | >= 10 trades | 3 | FAIL |",
		"- GO criterion failed: Sample size (actual: 3)",
		"NO-GO Triggers: 0/3 triggered",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}
