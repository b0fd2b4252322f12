package strategy

import (
	"fmt"
	"math"
	"sort"

	"spot-risk-engine/internal/domain"
	"spot-risk-engine/internal/indicator"
)

// KNNRibbonRSI defaults
const (
	DefaultNeighbors     = 7
	DefaultTrainWindow   = 300
	DefaultLabelHorizon  = 5
	DefaultMinVoteRatio  = 0.6
	DefaultRSIOverbought = 70.0

	knnRSIPeriod = 14
)

// feature is the per-bar vector compared between bars.
type feature [4]float64

// KNNRibbonRSIStrategy votes the k nearest historical bars in
// (RSI, ribbon spread, one-bar return) space.
//
// Entry: EMA 8 > 21 > 55, RSI below RSIOverbought and at least MinVoteRatio
// of the k nearest neighbours from the last TrainWindow bars were followed by
// a higher close LabelHorizon bars later. Neighbours are only drawn from bars
// whose label is already known at the current bar.
// Exit: RSI reaches RSIOverbought or EMA 8 crosses below EMA 21.
//
// Features and labels are computed once per history by Prepare; a window that
// is not part of the prepared history is computed on the fly.
type KNNRibbonRSIStrategy struct {
	K             int
	TrainWindow   int
	LabelHorizon  int
	MinVoteRatio  float64
	RSIOverbought float64

	prepared *knnState
}

type knnState struct {
	series   *indicator.Series
	features []feature
	valid    []bool
	labels   []int8 // 1 up, 0 not up, -1 unknown
}

// NewKNNRibbonRSIStrategy creates a new KNNRibbonRSIStrategy.
func NewKNNRibbonRSIStrategy(k, trainWindow, labelHorizon int, minVoteRatio, rsiOverbought float64) *KNNRibbonRSIStrategy {
	return &KNNRibbonRSIStrategy{
		K:             k,
		TrainWindow:   trainWindow,
		LabelHorizon:  labelHorizon,
		MinVoteRatio:  minVoteRatio,
		RSIOverbought: rsiOverbought,
	}
}

// ID returns the strategy identifier including parameters.
func (s *KNNRibbonRSIStrategy) ID() string {
	return fmt.Sprintf("KNN_RIBBON_RSI_k%d_w%d_h%d_v%.2f_ob%.0f",
		s.K,
		s.TrainWindow,
		s.LabelHorizon,
		s.MinVoteRatio,
		s.RSIOverbought)
}

// Prepare computes the feature matrix and labels for candles once.
func (s *KNNRibbonRSIStrategy) Prepare(candles []domain.Candle) {
	s.prepared = s.build(candles)
}

func (s *KNNRibbonRSIStrategy) build(candles []domain.Candle) *knnState {
	series := indicator.NewSeries(candles, knnRSIPeriod)
	n := len(candles)
	st := &knnState{
		series:   series,
		features: make([]feature, n),
		valid:    make([]bool, n),
		labels:   make([]int8, n),
	}

	for i := 0; i < n; i++ {
		st.labels[i] = -1
		if i+s.LabelHorizon < n {
			if series.Closes[i+s.LabelHorizon] > series.Closes[i] {
				st.labels[i] = 1
			} else {
				st.labels[i] = 0
			}
		}

		if i == 0 || series.Closes[i] <= 0 || series.Closes[i-1] <= 0 {
			continue
		}
		f := feature{
			series.RSI[i] / 100,
			(series.EMAFast[i] - series.EMAMid[i]) / series.Closes[i],
			(series.EMAMid[i] - series.EMASlow[i]) / series.Closes[i],
			series.Closes[i]/series.Closes[i-1] - 1,
		}
		ok := true
		for _, v := range f {
			if !indicator.Defined(v) {
				ok = false
				break
			}
		}
		st.features[i] = f
		st.valid[i] = ok
	}
	return st
}

// resolve maps window onto the prepared state or builds a throwaway one.
func (s *KNNRibbonRSIStrategy) resolve(window []domain.Candle) (*knnState, int) {
	if s.prepared != nil {
		if i, ok := s.prepared.series.Covers(window); ok {
			return s.prepared, i
		}
	}
	return s.build(window), len(window) - 1
}

// vote returns the bullish share among the k nearest labelled neighbours of
// bar i and the number of neighbours used.
func (s *KNNRibbonRSIStrategy) vote(st *knnState, i int) (float64, int) {
	type neighbour struct {
		dist float64
		idx  int
	}

	from := i - s.TrainWindow
	if from < 0 {
		from = 0
	}
	last := i - s.LabelHorizon // label of j needs close[j+H], known at i

	candidates := make([]neighbour, 0, s.TrainWindow)
	for j := from; j <= last; j++ {
		if !st.valid[j] || st.labels[j] < 0 {
			continue
		}
		d := 0.0
		for f := range st.features[j] {
			diff := st.features[j][f] - st.features[i][f]
			d += diff * diff
		}
		candidates = append(candidates, neighbour{dist: math.Sqrt(d), idx: j})
	}
	if len(candidates) < s.K {
		return 0, len(candidates)
	}

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].dist != candidates[b].dist {
			return candidates[a].dist < candidates[b].dist
		}
		return candidates[a].idx > candidates[b].idx // prefer recent
	})

	up := 0
	for _, c := range candidates[:s.K] {
		if st.labels[c.idx] == 1 {
			up++
		}
	}
	return float64(up) / float64(s.K), s.K
}

// Decide implements DecisionProvider.
func (s *KNNRibbonRSIStrategy) Decide(window []domain.Candle, sig *domain.VolatilitySignal, pos *domain.Position) domain.Decision {
	if pos != nil {
		return domain.Hold("position open")
	}
	if len(window) < indicator.RibbonSlow+1 {
		return domain.Hold("insufficient history")
	}

	st, i := s.resolve(window)
	if !st.valid[i] {
		return domain.Hold("indicators not ready")
	}
	ser := st.series
	if !(ser.EMAFast[i] > ser.EMAMid[i] && ser.EMAMid[i] > ser.EMASlow[i]) {
		return domain.Hold("ribbon not bullish")
	}
	if ser.RSI[i] >= s.RSIOverbought {
		return domain.Hold(fmt.Sprintf("RSI %.1f overbought", ser.RSI[i]))
	}

	share, used := s.vote(st, i)
	if used < s.K {
		return domain.Hold(fmt.Sprintf("only %d labelled neighbours", used))
	}
	if share < s.MinVoteRatio {
		return domain.Hold(fmt.Sprintf("neighbour vote %.2f below %.2f", share, s.MinVoteRatio))
	}

	confidence := 50 + 50*share
	if sig != nil && sig.Direction == domain.DirectionDown {
		confidence -= 10
	}

	return domain.Decision{
		ShouldTrade: true,
		Side:        domain.SideBuy,
		Confidence:  clamp(confidence, 0, 100),
		EntryPrice:  ser.Closes[i],
		Reasoning:   fmt.Sprintf("bullish ribbon, RSI %.1f, %d/%d neighbours up", ser.RSI[i], int(math.Round(share*float64(s.K))), s.K),
	}
}

// ShouldExit implements ExitProvider.
func (s *KNNRibbonRSIStrategy) ShouldExit(window []domain.Candle, pos *domain.Position) domain.ExitDecision {
	if pos == nil || len(window) == 0 {
		return domain.ExitDecision{}
	}
	st, i := s.resolve(window)
	ser := st.series

	if indicator.Defined(ser.RSI[i]) && ser.RSI[i] >= s.RSIOverbought {
		return domain.ExitDecision{ShouldExit: true, Reasoning: fmt.Sprintf("RSI %.1f overbought", ser.RSI[i])}
	}
	if indicator.Defined(ser.EMAFast[i]) && indicator.Defined(ser.EMAMid[i]) && ser.EMAFast[i] < ser.EMAMid[i] {
		return domain.ExitDecision{ShouldExit: true, Reasoning: "ribbon flipped bearish"}
	}
	return domain.ExitDecision{}
}
