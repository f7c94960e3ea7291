package discord

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"trade-signal-bot/internal/signal"
)

// ValidationError describes operator input that failed the boundary check.
// Its message is shown to the operator verbatim, so keep it readable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// parsePrice parses an optional price field. Empty input means "not set";
// anything present must be a finite number.
func parsePrice(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a valid price", raw)}
	}
	return &f, nil
}

// parsePercent parses an optional percentage in [0, 100].
func parsePercent(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(raw, "%")
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f > 100 {
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a percentage between 0 and 100", raw)}
	}
	return &f, nil
}

// parseR parses an optional signed R multiple.
func parseR(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSuffix(strings.TrimSuffix(raw, "R"), "r")
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a valid R multiple", raw)}
	}
	return &f, nil
}

// parsePriceList parses a comma-separated list of take-profit prices onto
// TP1..TP5 in order. A blank slot skips that level: "110,,130" sets TP1
// and TP3 only.
func parsePriceList(field, raw string) (map[string]float64, error) {
	out := make(map[string]float64)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) > len(signal.TakeProfitKeys) {
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("at most %d levels allowed", len(signal.TakeProfitKeys))}
	}
	for i, part := range parts {
		price, err := parsePrice(field, part)
		if err != nil {
			return nil, err
		}
		if price != nil {
			out[signal.TakeProfitKeys[i]] = *price
		}
	}
	return out, nil
}

// parsePercentList parses a comma-separated list of plan percentages onto
// TP1..TP5 in order, each in [0, 100].
func parsePercentList(field, raw string) (map[string]float64, error) {
	out := make(map[string]float64)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) > len(signal.TakeProfitKeys) {
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("at most %d levels allowed", len(signal.TakeProfitKeys))}
	}
	total := 0.0
	for i, part := range parts {
		percent, err := parsePercent(field, part)
		if err != nil {
			return nil, err
		}
		if percent != nil {
			out[signal.TakeProfitKeys[i]] = *percent
			total += *percent
		}
	}
	if total > 100 {
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("percentages add up to %.0f, must not exceed 100", total)}
	}
	return out, nil
}

// parseDirection accepts "long"/"short" in any case, defaulting long.
func parseDirection(raw string) signal.Direction {
	if strings.EqualFold(strings.TrimSpace(raw), string(signal.DirectionShort)) {
		return signal.DirectionShort
	}
	return signal.DirectionLong
}
