package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|symbol|entry_index)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runID, symbol string, entryIndex int) string {
	data := fmt.Sprintf("%s|%s|%d", runID, symbol, entryIndex)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
