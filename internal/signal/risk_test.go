package signal

import "testing"

// ============================================================================
// RISK CALCULATOR
// ============================================================================

func TestMultiplesLong(t *testing.T) {
	s := newRunningSignal() // LONG entry 100, stop 90, TP1 110
	s.TakeProfits["TP2"] = 125

	multiples := Multiples(s)
	if len(multiples) != 2 {
		t.Fatalf("expected 2 multiples, got %d", len(multiples))
	}
	if multiples[0].Key != "TP1" || multiples[0].R != 1.00 {
		t.Errorf("expected TP1 R=1.00, got %s R=%v", multiples[0].Key, multiples[0].R)
	}
	if multiples[1].Key != "TP2" || multiples[1].R != 2.50 {
		t.Errorf("expected TP2 R=2.50, got %s R=%v", multiples[1].Key, multiples[1].R)
	}
}

func TestMultiplesShort(t *testing.T) {
	s := Normalize(&Signal{
		Asset:       "ETH",
		Direction:   DirectionShort,
		Entry:       fptr(2000),
		StopLoss:    fptr(2100),
		TakeProfits: map[string]float64{"TP1": 1850},
	})

	multiples := Multiples(s)
	if len(multiples) != 1 {
		t.Fatalf("expected 1 multiple, got %d", len(multiples))
	}
	if multiples[0].R != 1.50 {
		t.Errorf("expected R=1.50, got %v", multiples[0].R)
	}
}

// R is omitted, not zero and not an error, whenever computed risk <= 0.
func TestMultiplesOmittedWhenRiskUndefined(t *testing.T) {
	tests := []struct {
		name   string
		signal *Signal
	}{
		{
			name: "stop above entry on a long",
			signal: Normalize(&Signal{
				Direction:   DirectionLong,
				Entry:       fptr(100),
				StopLoss:    fptr(110),
				TakeProfits: map[string]float64{"TP1": 120},
			}),
		},
		{
			name: "stop equals entry",
			signal: Normalize(&Signal{
				Direction:   DirectionShort,
				Entry:       fptr(100),
				StopLoss:    fptr(100),
				TakeProfits: map[string]float64{"TP1": 90},
			}),
		},
		{
			name: "missing entry",
			signal: Normalize(&Signal{
				Direction:   DirectionLong,
				StopLoss:    fptr(90),
				TakeProfits: map[string]float64{"TP1": 120},
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Multiples(tt.signal); got != nil {
				t.Errorf("expected no multiples, got %v", got)
			}
		})
	}
}

func TestMultiplesRounding(t *testing.T) {
	s := Normalize(&Signal{
		Direction:   DirectionLong,
		Entry:       fptr(100),
		StopLoss:    fptr(97),
		TakeProfits: map[string]float64{"TP1": 110},
	})
	// (110-100)/3 = 3.333... -> 3.33
	if got := Multiples(s)[0].R; got != 3.33 {
		t.Errorf("expected R=3.33, got %v", got)
	}
}

func TestRealizedRFromFills(t *testing.T) {
	s := newRunningSignal()
	if err := RecordFill(s, "TP1", 50, 110); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RecordFill(s, SourceStopBreakeven, 50, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 50% at 1R plus 50% at 0R.
	r, ok := RealizedR(s)
	if !ok || r != 0.50 {
		t.Errorf("expected realized R 0.50, got %v ok=%v", r, ok)
	}
}

func TestRealizedROverride(t *testing.T) {
	s := newRunningSignal()
	s.FinalR = fptr(2.345)

	r, ok := RealizedR(s)
	if !ok || r != 2.35 {
		t.Errorf("expected override R 2.35, got %v ok=%v", r, ok)
	}
}

func TestRealizedRUnavailable(t *testing.T) {
	s := newRunningSignal()
	if _, ok := RealizedR(s); ok {
		t.Error("expected no realized R without fills or override")
	}
}
