package signal

import (
	"fmt"
	"math"
)

// percentEpsilon absorbs float rounding when summing fill percentages, so
// three 33.33% fills plus the computed remainder still satisfy the 100%
// cap.
const percentEpsilon = 1e-6

// CumulativePercent sums the percentages of all recorded fills.
func CumulativePercent(s *Signal) float64 {
	var total float64
	for _, fill := range s.Fills {
		total += fill.Percent
	}
	return total
}

// RemainingPercent is the unfilled share of the position, floored at zero.
func RemainingPercent(s *Signal) float64 {
	remaining := 100 - CumulativePercent(s)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordFill appends a partial-close record to the ledger. It fails with
// ErrDuplicateSource when the source was already recorded, and with
// ErrInvalidPercent when the percentage is out of range or would push the
// cumulative total past 100. The ledger is only mutated on success.
func RecordFill(s *Signal, source string, percent, price float64) error {
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return fmt.Errorf("%w: %v", ErrInvalidPercent, percent)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return ErrInvalidPrice
	}
	for _, fill := range s.Fills {
		if fill.Source == source {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, source)
		}
	}
	if CumulativePercent(s)+percent > 100+percentEpsilon {
		return fmt.Errorf("%w: cumulative %.2f%% + %.2f%% exceeds 100%%",
			ErrInvalidPercent, CumulativePercent(s), percent)
	}
	s.Fills = append(s.Fills, Fill{Percent: percent, Price: price, Source: source})
	return nil
}
