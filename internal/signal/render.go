package signal

import (
	"fmt"
	"strconv"
	"strings"
)

// SummaryPlaceholder is rendered when no signal qualifies for the summary.
const SummaryPlaceholder = "_No active trades_"

// statusIndicator maps a status to its display marker.
func statusIndicator(s *Signal) string {
	switch s.Status {
	case StatusClosed:
		return "✅ Closed"
	case StatusStoppedBreakeven:
		return "⚖️ Stopped at breakeven"
	case StatusStoppedOut:
		return "❌ Stopped out"
	default:
		if !s.ValidForSummary {
			return "🔒 Running (stop at entry)"
		}
		return "🟢 Running"
	}
}

func directionMarker(d Direction) string {
	if d == DirectionShort {
		return "🔴"
	}
	return "🟢"
}

// formatPrice trims trailing zeros so 110.500000 renders as 110.5.
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RenderSignal builds the per-signal view: asset, direction, entry, stop,
// populated take-profits with hit markers and R chips, reason and status.
func RenderSignal(s *Signal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**%s | %s %s**\n", s.Asset, s.Direction, directionMarker(s.Direction))
	if s.Entry != nil {
		fmt.Fprintf(&b, "**Entry:** %s\n", formatPrice(*s.Entry))
	}
	if s.StopLoss != nil {
		line := fmt.Sprintf("**SL:** %s", formatPrice(*s.StopLoss))
		if s.Entry != nil && *s.StopLoss == *s.Entry && s.StopLossOriginal != nil && *s.StopLossOriginal != *s.Entry {
			line += " (moved to BE)"
		}
		b.WriteString(line + "\n")
	}

	multiples := make(map[string]float64, len(TakeProfitKeys))
	for _, m := range Multiples(s) {
		multiples[m.Key] = m.R
	}
	for _, key := range TakeProfitKeys {
		price, ok := s.TakeProfits[key]
		if !ok {
			continue
		}
		line := fmt.Sprintf("**%s:** %s", key, formatPrice(price))
		if r, ok := multiples[key]; ok {
			line += fmt.Sprintf(" [%.2fR]", r)
		}
		if s.TPHits[key] {
			line += " ✅"
		}
		b.WriteString(line + "\n")
	}

	if s.Reason != "" {
		fmt.Fprintf(&b, "\n**Reasoning**\n%s\n", s.Reason)
	}

	fmt.Fprintf(&b, "\n%s", statusIndicator(s))
	if cum := CumulativePercent(s); cum > 0 {
		fmt.Fprintf(&b, " · %.0f%% closed", cum)
	}
	if r, ok := RealizedR(s); ok && s.IsTerminal() {
		fmt.Fprintf(&b, " · %.2fR", r)
	}
	return b.String()
}

// RenderSummary builds the active-trades summary view from an already
// selected and ordered set. An empty set renders the fixed placeholder,
// never an empty list.
func RenderSummary(active []*Signal) string {
	var b strings.Builder
	b.WriteString("**Current Trades Summary**\n")

	if len(active) == 0 {
		b.WriteString(SummaryPlaceholder)
		return b.String()
	}

	for i, s := range active {
		parts := []string{fmt.Sprintf("**%s %s**", s.Asset, directionMarker(s.Direction))}
		if s.Entry != nil {
			parts = append(parts, "Entry: "+formatPrice(*s.Entry))
		}
		if s.StopLoss != nil {
			parts = append(parts, "SL: "+formatPrice(*s.StopLoss))
		}
		for _, key := range TakeProfitKeys {
			if price, ok := s.TakeProfits[key]; ok {
				parts = append(parts, fmt.Sprintf("%s: %s", key, formatPrice(price)))
			}
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(parts, " · "))
	}
	return strings.TrimRight(b.String(), "\n")
}
