package signal

import (
	"math"
	"strings"
)

// Normalize coerces a partially populated record into canonical shape:
// uppercased asset, canonical direction, non-nil collections with exactly
// the five take-profit keys, finite numerics only, stopLossOriginal
// captured from the current stop when absent, and a defaulted status.
// Normalizing an already-canonical signal is a no-op.
func Normalize(s *Signal) *Signal {
	s.Asset = strings.ToUpper(strings.TrimSpace(s.Asset))

	switch Direction(strings.ToUpper(string(s.Direction))) {
	case DirectionShort:
		s.Direction = DirectionShort
	default:
		s.Direction = DirectionLong
	}

	s.Entry = finiteOrNil(s.Entry)
	s.StopLoss = finiteOrNil(s.StopLoss)
	s.StopLossOriginal = finiteOrNil(s.StopLossOriginal)
	s.FinalR = finiteOrNil(s.FinalR)

	// The original stop is set once; later stop edits never touch it.
	if s.StopLossOriginal == nil && s.StopLoss != nil {
		v := *s.StopLoss
		s.StopLossOriginal = &v
	}

	s.TakeProfits = repairPriceMap(s.TakeProfits, false)
	s.Plan = repairPriceMap(s.Plan, true)

	hits := make(map[string]bool, len(TakeProfitKeys))
	for _, key := range TakeProfitKeys {
		hits[key] = s.TPHits[key]
	}
	s.TPHits = hits

	if s.Fills == nil {
		s.Fills = []Fill{}
	}
	if !s.TPHits[s.LatestTPHit] {
		s.LatestTPHit = ""
	}

	switch s.Status {
	case StatusRunning, StatusClosed, StatusStoppedBreakeven, StatusStoppedOut:
	default:
		s.Status = StatusRunning
	}
	if s.Status != StatusRunning {
		s.ValidForSummary = false
	}

	return s
}

// repairPriceMap drops unknown keys and non-finite values. When percent is
// set, values outside [0,100] are treated as absent.
func repairPriceMap(m map[string]float64, percent bool) map[string]float64 {
	out := make(map[string]float64, len(TakeProfitKeys))
	for _, key := range TakeProfitKeys {
		v, ok := m[key]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if percent && (v < 0 || v > 100) {
			continue
		}
		out[key] = v
	}
	return out
}

func finiteOrNil(f *float64) *float64 {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return nil
	}
	return f
}
