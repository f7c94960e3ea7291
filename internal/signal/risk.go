package signal

import "math"

// RiskMultiple is the reward at one take-profit level expressed as a
// multiple of the entry-to-original-stop distance.
type RiskMultiple struct {
	Key string  `json:"key"`
	R   float64 `json:"r"`
}

// riskAmount returns the per-unit risk implied by entry and the original
// stop. ok is false when either price is absent or the risk is not
// positive, which indicates a data-entry error upstream; callers omit the
// R figure in that case rather than erroring.
func riskAmount(s *Signal) (float64, bool) {
	if s.Entry == nil || s.StopLossOriginal == nil {
		return 0, false
	}
	risk := *s.Entry - *s.StopLossOriginal
	if s.Direction == DirectionShort {
		risk = *s.StopLossOriginal - *s.Entry
	}
	if risk <= 0 {
		return 0, false
	}
	return risk, true
}

// priceR returns the R-multiple of a single price against the signal's
// fixed risk.
func priceR(s *Signal, risk, price float64) float64 {
	if s.Direction == DirectionShort {
		return (*s.Entry - price) / risk
	}
	return (price - *s.Entry) / risk
}

// Multiples computes the R-multiple for every populated take-profit price,
// in TP1..TP5 order, rounded to two decimals. The result is empty when the
// signal's risk is undefined. Pure; used only for display.
func Multiples(s *Signal) []RiskMultiple {
	risk, ok := riskAmount(s)
	if !ok {
		return nil
	}
	var out []RiskMultiple
	for _, key := range TakeProfitKeys {
		price, ok := s.TakeProfits[key]
		if !ok {
			continue
		}
		out = append(out, RiskMultiple{Key: key, R: round2(priceR(s, risk, price))})
	}
	return out
}

// RealizedR returns the overall R outcome of a signal: the manual finalR
// override when set, otherwise the fill-weighted R of the ledger. ok is
// false when neither is computable.
func RealizedR(s *Signal) (float64, bool) {
	if s.FinalR != nil {
		return round2(*s.FinalR), true
	}
	risk, ok := riskAmount(s)
	if !ok || len(s.Fills) == 0 {
		return 0, false
	}
	var total float64
	for _, fill := range s.Fills {
		total += fill.Percent / 100 * priceR(s, risk, fill.Price)
	}
	return round2(total), true
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
