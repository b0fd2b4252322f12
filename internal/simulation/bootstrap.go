package simulation

import (
	"math/rand/v2"
	"sort"

	"spot-risk-engine/internal/metrics"
)

const (
	// MinBootstrapTrades is the sample size below which no interval is computed.
	MinBootstrapTrades = 10
	// MinBootstrapResamples is the floor on resample count.
	MinBootstrapResamples = 1000
)

// BootstrapResult is the resampled distribution of mean R.
// When Computed is false the percentiles are zero and SafeForLive is false.
type BootstrapResult struct {
	Computed    bool
	Trades      int
	Resamples   int
	P5          float64
	P50         float64
	P95         float64
	SafeForLive bool // P5 > 0
}

// Bootstrap resamples rs with replacement and reports percentiles of the
// resampled mean. The generator is seeded, so results are reproducible.
func Bootstrap(rs []float64, resamples int, seed uint64) BootstrapResult {
	n := len(rs)
	if n < MinBootstrapTrades {
		return BootstrapResult{Trades: n}
	}
	if resamples < MinBootstrapResamples {
		resamples = MinBootstrapResamples
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	means := make([]float64, resamples)
	for b := range means {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += rs[rng.IntN(n)]
		}
		means[b] = sum / float64(n)
	}
	sort.Float64s(means)

	res := BootstrapResult{
		Computed:  true,
		Trades:    n,
		Resamples: resamples,
		P5:        metrics.Percentile(means, 0.05),
		P50:       metrics.Percentile(means, 0.50),
		P95:       metrics.Percentile(means, 0.95),
	}
	res.SafeForLive = res.P5 > 0
	return res
}
