package signal

import "sort"

// ExistsFunc reports whether the chat message backing a signal still
// exists. It is supplied by the messaging boundary; the selector never
// talks to the chat platform itself.
type ExistsFunc func(*Signal) bool

// SelectActive returns the signals that belong in the active-trades
// summary: RUNNING, still valid for the summary, and whose backing message
// exists. The result is in creation order (stable across refreshes).
func SelectActive(signals []*Signal, exists ExistsFunc) []*Signal {
	ordered := make([]*Signal, len(signals))
	copy(ordered, signals)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	var active []*Signal
	for _, s := range ordered {
		if s.Status != StatusRunning || !s.ValidForSummary {
			continue
		}
		if exists != nil && !exists(s) {
			continue
		}
		active = append(active, s)
	}
	return active
}
