package signal

import (
	"strings"
	"testing"
	"time"
)

// ============================================================================
// RENDER TEMPLATES
// ============================================================================

func TestRenderSignalFields(t *testing.T) {
	s := newRunningSignal()
	out := RenderSignal(s)

	for _, want := range []string{"BTC | LONG", "Entry:** 100", "SL:** 90", "TP1:** 110", "[1.00R]", "Running"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected render to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderSignalHitMarkerAndBE(t *testing.T) {
	tracker := newTestTracker()
	s := newRunningSignal()
	if err := tracker.RecordTakeProfitHit(s, "TP1", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.StopLoss = fptr(100)
	tracker.ApplyBreakevenCheck(s)

	out := RenderSignal(s)
	if !strings.Contains(out, "✅") {
		t.Error("expected hit marker for TP1")
	}
	if !strings.Contains(out, "moved to BE") {
		t.Error("expected breakeven marker on the stop line")
	}
	if !strings.Contains(out, "50% closed") {
		t.Errorf("expected cumulative percentage, got:\n%s", out)
	}
}

func TestRenderSignalOmitsRWhenRiskUndefined(t *testing.T) {
	s := Normalize(&Signal{
		Asset:       "BTC",
		Direction:   DirectionLong,
		Entry:       fptr(100),
		StopLoss:    fptr(110), // inverted: risk <= 0
		TakeProfits: map[string]float64{"TP1": 120},
	})
	if out := RenderSignal(s); strings.Contains(out, "R]") {
		t.Errorf("R chips must be omitted when risk is undefined, got:\n%s", out)
	}
}

func TestRenderSummaryNumbering(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first := summarySignal("a", base)
	first.Entry = fptr(50)
	second := summarySignal("b", base.Add(time.Minute))

	out := RenderSummary(SelectActive([]*Signal{second, first}, nil))
	firstIdx := strings.Index(out, "1. ")
	secondIdx := strings.Index(out, "2. ")
	if firstIdx < 0 || secondIdx < 0 || secondIdx < firstIdx {
		t.Errorf("expected numbered list in order, got:\n%s", out)
	}
	if !strings.Contains(out, "Entry: 50") {
		t.Errorf("expected entry field, got:\n%s", out)
	}
}

func TestRenderSummaryPlaceholder(t *testing.T) {
	out := RenderSummary(nil)
	if !strings.Contains(out, SummaryPlaceholder) {
		t.Errorf("expected placeholder, got:\n%s", out)
	}
}
