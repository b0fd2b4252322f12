package idhash

import (
	"testing"

	"spot-risk-engine/internal/signal"
)

func TestComputeCandidateID(t *testing.T) {
	th := signal.DefaultThresholds()

	a := ComputeCandidateID("BTCUSDT", "BREAKOUT_RETEST_lb20_rt5_tol0.00_rr2.0", th)
	b := ComputeCandidateID("BTCUSDT", "BREAKOUT_RETEST_lb20_rt5_tol0.00_rr2.0", th)
	if a != b {
		t.Fatalf("not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("length = %d, want 64", len(a))
	}

	th2 := th
	th2.PriceSurgePct = 0.02
	if ComputeCandidateID("BTCUSDT", "BREAKOUT_RETEST_lb20_rt5_tol0.00_rr2.0", th2) == a {
		t.Error("threshold change did not change the ID")
	}
	if ComputeCandidateID("ETHUSDT", "BREAKOUT_RETEST_lb20_rt5_tol0.00_rr2.0", th) == a {
		t.Error("symbol change did not change the ID")
	}
}
