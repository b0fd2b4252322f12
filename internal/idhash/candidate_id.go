package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"spot-risk-engine/internal/signal"
)

// ComputeCandidateID computes a deterministic ID for a validation grid point
// so reports from different runs can be joined.
// Formula: SHA256(symbol|strategy_id|atr_multiplier|price_surge_pct|volume_spike_multiplier)
// Floats use the shortest round-trip formatting.
func ComputeCandidateID(symbol, strategyID string, th signal.Thresholds) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s",
		symbol,
		strategyID,
		formatFloat(th.ATRMultiplier),
		formatFloat(th.PriceSurgePct),
		formatFloat(th.VolumeSpikeMultiplier),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
