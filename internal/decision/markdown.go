package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a readiness checklist for one candidate.
func RenderMarkdown(result *DecisionResult) string {
	var sb strings.Builder

	sb.WriteString("# Live Readiness Report\n\n")
	if result.Symbol != "" {
		fmt.Fprintf(&sb, "Symbol: %s | Strategy: %s\n\n", result.Symbol, result.StrategyID)
	}
	fmt.Fprintf(&sb, "## Decision: %s\n\n", result.Decision)

	sb.WriteString("## GO Criteria\n\n")
	passed := writeChecks(&sb, "Criterion", result.GOCriteria, "PASS", "FAIL")
	fmt.Fprintf(&sb, "GO Criteria: %d/%d passed\n\n", passed, len(result.GOCriteria))

	sb.WriteString("## NO-GO Triggers\n\n")
	quiet := writeChecks(&sb, "Trigger", result.NOGOChecks, "NOT TRIGGERED", "TRIGGERED")
	fmt.Fprintf(&sb, "NO-GO Triggers: %d/%d triggered\n\n", len(result.NOGOChecks)-quiet, len(result.NOGOChecks))

	sb.WriteString("## Summary\n\n")
	reasons := Reasons(result)
	if len(reasons) == 0 {
		sb.WriteString("Every GO criterion passed and no NO-GO trigger fired.\n")
		return sb.String()
	}
	sb.WriteString("Not ready for live trading:\n")
	for _, r := range reasons {
		fmt.Fprintf(&sb, "- %s\n", r)
	}
	return sb.String()
}

// Reasons lists failed criteria and fired triggers, GO criteria first.
func Reasons(result *DecisionResult) []string {
	var out []string
	for _, c := range result.GOCriteria {
		if !c.Pass {
			out = append(out, fmt.Sprintf("%s: %s (need %s)", c.Name, c.Actual, c.Threshold))
		}
	}
	for _, c := range result.NOGOChecks {
		if !c.Pass {
			out = append(out, fmt.Sprintf("%s: %s", c.Name, c.Actual))
		}
	}
	return out
}

// writeChecks writes one checklist table and returns how many rows passed.
func writeChecks(sb *strings.Builder, label string, checks []CriterionResult, ok, bad string) int {
	fmt.Fprintf(sb, "| # | %s | Threshold | Actual | Status |\n", label)
	sb.WriteString("|---|---|---|---|---|\n")
	passed := 0
	for i, c := range checks {
		status := bad
		if c.Pass {
			status = ok
			passed++
		}
		fmt.Fprintf(sb, "| %d | %s | %s | %s | %s |\n", i+1, c.Name, c.Threshold, c.Actual, status)
	}
	sb.WriteString("\n")
	return passed
}
