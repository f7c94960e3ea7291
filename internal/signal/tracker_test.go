package signal

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func newTestTracker() *Tracker {
	return NewTracker(zerolog.Nop())
}

// ============================================================================
// TAKE-PROFIT HITS
// ============================================================================

// LONG, entry 100, stop 90, TP1=110, plan TP1=50%: recording the TP1 hit
// books a fill {50, 110, TP1}, cumulative 50, and R for TP1 is 1.00.
func TestTakeProfitHitBooksPlannedFill(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()

	if err := tracker.RecordTakeProfitHit(s, "TP1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Fill{Percent: 50, Price: 110, Source: "TP1"}
	if len(s.Fills) != 1 || s.Fills[0] != want {
		t.Errorf("expected fill %+v, got %+v", want, s.Fills)
	}
	if CumulativePercent(s) != 50 {
		t.Errorf("expected cumulative 50, got %v", CumulativePercent(s))
	}
	if !s.TPHits["TP1"] || s.LatestTPHit != "TP1" {
		t.Errorf("expected TP1 marked hit and latest, got hits=%v latest=%q", s.TPHits, s.LatestTPHit)
	}
	if r := Multiples(s); len(r) == 0 || r[0].R != 1.00 {
		t.Errorf("expected TP1 R=1.00, got %v", r)
	}
}

// A duplicate hit on the same key fails and leaves the ledger unchanged.
func TestTakeProfitHitIdempotent(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()

	if err := tracker.RecordTakeProfitHit(s, "TP1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := s.Clone()

	err := tracker.RecordTakeProfitHit(s, "TP1", nil)
	if !errors.Is(err, ErrAlreadyRecorded) {
		t.Fatalf("expected ErrAlreadyRecorded, got %v", err)
	}
	if !reflect.DeepEqual(before.Fills, s.Fills) || !reflect.DeepEqual(before.TPHits, s.TPHits) {
		t.Error("duplicate hit must not change persisted state")
	}
}

func TestTakeProfitHitWithOverridePercent(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()
	s.TakeProfits["TP2"] = 120 // no plan entry for TP2

	if err := tracker.RecordTakeProfitHit(s, "TP2", fptr(25)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Fills) != 1 || s.Fills[0].Percent != 25 || s.Fills[0].Price != 120 {
		t.Errorf("expected 25%% fill at 120, got %+v", s.Fills)
	}
}

// Without a plan percentage or override the hit is flagged but no fill is
// booked; the percentage is an input, not something the engine invents.
func TestTakeProfitHitWithoutPercent(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()
	s.TakeProfits["TP2"] = 120

	if err := tracker.RecordTakeProfitHit(s, "TP2", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Fills) != 0 {
		t.Errorf("expected no fill, got %+v", s.Fills)
	}
	if !s.TPHits["TP2"] {
		t.Error("expected TP2 marked hit")
	}
}

func TestTakeProfitHitInvalidInputs(t *testing.T) {
	tracker := newTestTracker()

	s := newRunningSignal()
	if err := tracker.RecordTakeProfitHit(s, "TP9", nil); !errors.Is(err, ErrUnknownTakeProfit) {
		t.Errorf("expected ErrUnknownTakeProfit, got %v", err)
	}

	closed := newRunningSignal()
	closed.Status = StatusClosed
	if err := tracker.RecordTakeProfitHit(closed, "TP1", nil); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

// ============================================================================
// BREAKEVEN DETECTION
// ============================================================================

// Entry 100, stop moved from 90 to 100 after one take-profit hit: the
// signal stays RUNNING but leaves the active summary.
func TestBreakevenDetection(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()
	if err := tracker.RecordTakeProfitHit(s, "TP1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.StopLoss = fptr(100)
	if !tracker.ApplyBreakevenCheck(s) {
		t.Fatal("expected breakeven check to trigger")
	}
	if s.ValidForSummary {
		t.Error("expected validForSummary=false")
	}
	if s.Status != StatusRunning {
		t.Errorf("status must remain RUNNING, got %s", s.Status)
	}
}

func TestBreakevenNotTriggered(t *testing.T) {
	tracker := newTestTracker()

	t.Run("no take-profit hit yet", func(t *testing.T) {
		s := newRunningSignal()
		s.StopLoss = fptr(100)
		if tracker.ApplyBreakevenCheck(s) {
			t.Error("breakeven requires at least one hit")
		}
		if !s.ValidForSummary {
			t.Error("signal must stay in the summary")
		}
	})

	t.Run("stop not at entry", func(t *testing.T) {
		s := newRunningSignal()
		if err := tracker.RecordTakeProfitHit(s, "TP1", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		s.StopLoss = fptr(95)
		if tracker.ApplyBreakevenCheck(s) {
			t.Error("stop at 95 is not breakeven")
		}
	})
}

// ============================================================================
// TERMINAL TRANSITIONS
// ============================================================================

// After a 50% TP1 fill, "stop at breakeven" books the remaining 50% at the
// entry price with source STOP_BE.
func TestStopBreakevenBooksRemainder(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()
	if err := tracker.RecordTakeProfitHit(s, "TP1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tracker.StopBreakeven(s, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Fill{Percent: 50, Price: 100, Source: SourceStopBreakeven}
	if len(s.Fills) != 2 || s.Fills[1] != want {
		t.Errorf("expected fill %+v, got %+v", want, s.Fills)
	}
	if s.Status != StatusStoppedBreakeven {
		t.Errorf("expected STOPPED_BREAKEVEN, got %s", s.Status)
	}
	if s.ValidForSummary {
		t.Error("expected validForSummary=false")
	}
}

func TestStopOutUsesOriginalStop(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()
	s.StopLoss = fptr(95) // live stop moved; original stays 90

	if err := tracker.StopOut(s, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Fill{Percent: 100, Price: 90, Source: SourceStopOut}
	if len(s.Fills) != 1 || s.Fills[0] != want {
		t.Errorf("expected fill %+v, got %+v", want, s.Fills)
	}
	if s.Status != StatusStoppedOut {
		t.Errorf("expected STOPPED_OUT, got %s", s.Status)
	}
}

func TestCloseDefaultsToRemainder(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()
	if err := tracker.RecordTakeProfitHit(s, "TP1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tracker.Close(s, fptr(115), nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Fill{Percent: 50, Price: 115, Source: SourceFinalClose}
	if len(s.Fills) != 2 || s.Fills[1] != want {
		t.Errorf("expected fill %+v, got %+v", want, s.Fills)
	}
	if s.Status != StatusClosed {
		t.Errorf("expected CLOSED, got %s", s.Status)
	}
}

func TestCloseWithFinalROverrideSkipsFills(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()

	if err := tracker.Close(s, nil, nil, fptr(1.8)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Fills) != 0 {
		t.Errorf("override close must not book fills, got %+v", s.Fills)
	}
	if r, ok := RealizedR(s); !ok || r != 1.80 {
		t.Errorf("expected realized R 1.80, got %v ok=%v", r, ok)
	}
}

func TestCloseWithoutPriceFails(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()

	err := tracker.Close(s, nil, nil, nil)
	if !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if s.Status != StatusRunning || len(s.Fills) != 0 {
		t.Error("failed close must not mutate the signal")
	}
}

// Once a terminal status is reached no further operation changes it.
func TestTerminalStatesAreFinal(t *testing.T) {
	tracker := newTestTracker()

	terminalOps := map[string]func(*Signal) error{
		"close":          func(s *Signal) error { return tracker.Close(s, fptr(100), nil, nil) },
		"stop breakeven": func(s *Signal) error { return tracker.StopBreakeven(s, nil) },
		"stop out":       func(s *Signal) error { return tracker.StopOut(s, nil) },
	}

	for _, status := range []string{StatusClosed, StatusStoppedBreakeven, StatusStoppedOut} {
		for name, op := range terminalOps {
			t.Run(status+"/"+name, func(t *testing.T) {
				s := newRunningSignal()
				s.Status = status
				s.ValidForSummary = false

				if err := op(s); !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				if s.Status != status {
					t.Errorf("status changed from %s to %s", status, s.Status)
				}
			})
		}
	}
}

// An explicit close percentage past the unfilled remainder is rejected by
// the ledger, and the signal stays running.
func TestCloseExplicitPercentOverCapRejected(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()
	if err := tracker.RecordTakeProfitHit(s, "TP1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := tracker.Close(s, fptr(115), fptr(60), nil)
	if !errors.Is(err, ErrInvalidPercent) {
		t.Fatalf("expected ErrInvalidPercent, got %v", err)
	}
	if s.Status != StatusRunning {
		t.Errorf("failed close must leave the signal running, got %s", s.Status)
	}
}
