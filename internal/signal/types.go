// Package signal implements the trade signal lifecycle: normalization of
// persisted records, risk-multiple math, the partial-fill ledger, the status
// state machine, summary selection and mention resolution.
package signal

import (
	"errors"
	"time"
)

// Direction of a signal
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Signal status constants
const (
	StatusRunning          = "RUNNING"           // Signal is live
	StatusClosed           = "CLOSED"            // Closed by the operator
	StatusStoppedBreakeven = "STOPPED_BREAKEVEN" // Stopped at entry price
	StatusStoppedOut       = "STOPPED_OUT"       // Stopped at the original stop
)

// Fill source constants for terminal transitions. Any other source is a
// take-profit key (TP1..TP5).
const (
	SourceFinalClose    = "FINAL_CLOSE"
	SourceStopBreakeven = "STOP_BE"
	SourceStopOut       = "STOP_OUT"
)

// TakeProfitKeys lists the configurable take-profit slots in display order.
var TakeProfitKeys = []string{"TP1", "TP2", "TP3", "TP4", "TP5"}

// Sentinel errors reported to callers. State is never mutated when one of
// these is returned.
var (
	ErrInvalidPercent    = errors.New("percentage out of range")
	ErrInvalidPrice      = errors.New("price is missing or not a finite number")
	ErrDuplicateSource   = errors.New("fill source already recorded")
	ErrAlreadyRecorded   = errors.New("take-profit already recorded")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownTakeProfit = errors.New("unknown take-profit key")
	ErrSignalNotFound    = errors.New("signal not found")
)

// Fill is a recorded partial (or full) close of a signal.
type Fill struct {
	Percent float64 `json:"percent"` // 0..100, share of the position closed
	Price   float64 `json:"price"`
	Source  string  `json:"source"` // TP key, FINAL_CLOSE, STOP_BE or STOP_OUT
}

// Signal is the persisted trade signal entity.
type Signal struct {
	ID        string    `json:"id"`
	Asset     string    `json:"asset"`
	Direction Direction `json:"direction"`

	Entry    *float64 `json:"entry,omitempty"`
	StopLoss *float64 `json:"stop_loss,omitempty"`
	// StopLossOriginal is captured once and is the fixed risk denominator
	// even after the live stop is moved to breakeven.
	StopLossOriginal *float64 `json:"stop_loss_original,omitempty"`

	TakeProfits map[string]float64 `json:"take_profits"`
	Plan        map[string]float64 `json:"plan"` // TP key -> planned close percent

	Fills       []Fill          `json:"fills"`
	TPHits      map[string]bool `json:"tp_hits"`
	LatestTPHit string          `json:"latest_tp_hit,omitempty"`

	Status          string `json:"status"`
	ValidForSummary bool   `json:"valid_for_summary"`

	Reason        string   `json:"reason,omitempty"`
	ExtraMentions string   `json:"extra_mentions,omitempty"`
	FinalR        *float64 `json:"final_r,omitempty"` // manual override, skips fill math

	AuthorID   string `json:"author_id,omitempty"`
	ChannelID  string `json:"channel_id,omitempty"`
	MessageID  string `json:"message_id,omitempty"`
	MessageURL string `json:"message_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the signal reached a terminal status.
func (s *Signal) IsTerminal() bool {
	switch s.Status {
	case StatusClosed, StatusStoppedBreakeven, StatusStoppedOut:
		return true
	}
	return false
}

// HasTakeProfitHit reports whether at least one take-profit was recorded.
func (s *Signal) HasTakeProfitHit() bool {
	for _, hit := range s.TPHits {
		if hit {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the signal. Lifecycle operations are applied
// to a copy so a failed operation never leaves the stored record half
// patched.
func (s *Signal) Clone() *Signal {
	c := *s
	c.Entry = copyFloat(s.Entry)
	c.StopLoss = copyFloat(s.StopLoss)
	c.StopLossOriginal = copyFloat(s.StopLossOriginal)
	c.FinalR = copyFloat(s.FinalR)
	if s.TakeProfits != nil {
		c.TakeProfits = make(map[string]float64, len(s.TakeProfits))
		for k, v := range s.TakeProfits {
			c.TakeProfits[k] = v
		}
	}
	if s.Plan != nil {
		c.Plan = make(map[string]float64, len(s.Plan))
		for k, v := range s.Plan {
			c.Plan[k] = v
		}
	}
	if s.TPHits != nil {
		c.TPHits = make(map[string]bool, len(s.TPHits))
		for k, v := range s.TPHits {
			c.TPHits[k] = v
		}
	}
	if s.Fills != nil {
		c.Fills = make([]Fill, len(s.Fills))
		copy(c.Fills, s.Fills)
	}
	return &c
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
