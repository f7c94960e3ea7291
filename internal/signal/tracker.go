package signal

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Tracker drives a signal through its status state machine. All operations
// validate before mutating: when an error is returned the signal is
// untouched, so callers can persist only on success and never write a
// partially applied patch.
//
// Allowed transitions: RUNNING -> CLOSED | STOPPED_BREAKEVEN | STOPPED_OUT.
// Terminal states never transition.
type Tracker struct {
	logger zerolog.Logger
}

// NewTracker creates a new Tracker instance
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger: logger.With().Str("component", "SignalTracker").Logger(),
	}
}

// RecordTakeProfitHit marks a take-profit level as hit. Each key can be
// recorded once; re-hitting returns ErrAlreadyRecorded and leaves the
// signal unchanged. When both a plan percentage (or an explicit override)
// and the take-profit price are present, a fill is booked at that
// percentage and price; otherwise only the hit flag is recorded.
func (t *Tracker) RecordTakeProfitHit(s *Signal, key string, percentOverride *float64) error {
	if !isTakeProfitKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownTakeProfit, key)
	}
	if s.Status != StatusRunning {
		return fmt.Errorf("%w: take-profit hit on %s signal", ErrInvalidTransition, s.Status)
	}
	if s.TPHits[key] {
		return fmt.Errorf("%w: %s", ErrAlreadyRecorded, key)
	}

	percent, havePercent := s.Plan[key]
	if !havePercent && percentOverride != nil {
		percent, havePercent = *percentOverride, true
	}
	price, havePrice := s.TakeProfits[key]

	if havePercent && havePrice {
		if err := RecordFill(s, key, percent, price); err != nil {
			return err
		}
	} else {
		t.logger.Warn().
			Str("signal_id", s.ID).
			Str("key", key).
			Bool("have_percent", havePercent).
			Bool("have_price", havePrice).
			Msg("Take-profit hit recorded without a fill")
	}

	if s.TPHits == nil {
		s.TPHits = make(map[string]bool)
	}
	s.TPHits[key] = true
	s.LatestTPHit = key
	s.UpdatedAt = time.Now()

	t.logger.Info().
		Str("signal_id", s.ID).
		Str("key", key).
		Float64("cumulative_percent", CumulativePercent(s)).
		Msg("Take-profit hit recorded")
	return nil
}

// ApplyBreakevenCheck runs after any entry or stop edit. When a running
// signal's stop has been moved to exactly the entry price after at least
// one take-profit hit, the signal stays RUNNING but is dropped from the
// active summary: the stop at entry means it is no longer a fresh entry
// opportunity. Returns true when the flag was cleared by this call.
func (t *Tracker) ApplyBreakevenCheck(s *Signal) bool {
	if s.Status != StatusRunning || !s.ValidForSummary {
		return false
	}
	if s.Entry == nil || s.StopLoss == nil || *s.Entry != *s.StopLoss {
		return false
	}
	if !s.HasTakeProfitHit() {
		return false
	}
	s.ValidForSummary = false
	s.UpdatedAt = time.Now()
	t.logger.Info().
		Str("signal_id", s.ID).
		Float64("entry", *s.Entry).
		Msg("Stop moved to breakeven, signal dropped from active summary")
	return true
}

// Close fully closes a running signal. Either finalR is supplied, which
// skips the fill math entirely, or a close price is required; when no
// percentage is given the unfilled remainder is booked.
func (t *Tracker) Close(s *Signal, price, percent, finalR *float64) error {
	if err := t.terminate(s, StatusClosed, SourceFinalClose, price, percent, finalR); err != nil {
		return err
	}
	t.logger.Info().Str("signal_id", s.ID).Msg("Signal closed")
	return nil
}

// StopBreakeven stops a running signal at its entry price: the entire
// unfilled remainder is booked at entry with source STOP_BE, unless a
// finalR override is supplied.
func (t *Tracker) StopBreakeven(s *Signal, finalR *float64) error {
	if finalR == nil && s.Entry == nil {
		return fmt.Errorf("%w: no entry price for breakeven stop", ErrInvalidPrice)
	}
	if err := t.terminate(s, StatusStoppedBreakeven, SourceStopBreakeven, s.Entry, nil, finalR); err != nil {
		return err
	}
	t.logger.Info().Str("signal_id", s.ID).Msg("Signal stopped at breakeven")
	return nil
}

// StopOut stops a running signal at its original stop-loss price with
// source STOP_OUT, unless a finalR override is supplied. The price rule is
// direction-independent.
func (t *Tracker) StopOut(s *Signal, finalR *float64) error {
	if finalR == nil && s.StopLossOriginal == nil {
		return fmt.Errorf("%w: no original stop for stop-out", ErrInvalidPrice)
	}
	if err := t.terminate(s, StatusStoppedOut, SourceStopOut, s.StopLossOriginal, nil, finalR); err != nil {
		return err
	}
	t.logger.Info().Str("signal_id", s.ID).Msg("Signal stopped out")
	return nil
}

// terminate applies a terminal transition. The fill is booked before the
// status flips so a ledger rejection leaves the signal running and intact.
func (t *Tracker) terminate(s *Signal, status, source string, price, percent, finalR *float64) error {
	if s.Status != StatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, status)
	}

	if finalR != nil {
		r := *finalR
		s.FinalR = &r
	} else {
		if price == nil {
			return fmt.Errorf("%w: close price required", ErrInvalidPrice)
		}
		pct := RemainingPercent(s)
		if percent != nil {
			pct = *percent
		}
		if err := RecordFill(s, source, pct, *price); err != nil {
			return err
		}
	}

	s.Status = status
	s.ValidForSummary = false
	s.UpdatedAt = time.Now()
	return nil
}

func isTakeProfitKey(key string) bool {
	for _, k := range TakeProfitKeys {
		if k == key {
			return true
		}
	}
	return false
}
