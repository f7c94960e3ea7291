package signal

import (
	"testing"
	"time"
)

// ============================================================================
// SUMMARY SELECTOR
// ============================================================================

func summarySignal(id string, createdAt time.Time) *Signal {
	return Normalize(&Signal{
		ID:              id,
		Asset:           "BTC",
		Direction:       DirectionLong,
		Status:          StatusRunning,
		ValidForSummary: true,
		CreatedAt:       createdAt,
	})
}

func TestSelectActiveFiltersAndOrders(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := summarySignal("a", base)
	second := summarySignal("b", base.Add(time.Minute))
	closed := summarySignal("c", base.Add(2*time.Minute))
	closed.Status = StatusClosed
	closed.ValidForSummary = false
	atBreakeven := summarySignal("d", base.Add(3*time.Minute))
	atBreakeven.ValidForSummary = false

	// Deliberately out of creation order.
	signals := []*Signal{second, closed, atBreakeven, first}

	active := SelectActive(signals, func(*Signal) bool { return true })
	if len(active) != 2 {
		t.Fatalf("expected 2 active signals, got %d", len(active))
	}
	if active[0].ID != "a" || active[1].ID != "b" {
		t.Errorf("expected creation order [a b], got [%s %s]", active[0].ID, active[1].ID)
	}
}

// A RUNNING, summary-valid signal whose backing message is gone is excluded.
func TestSelectActiveExcludesMissingMessages(t *testing.T) {
	base := time.Now()
	kept := summarySignal("kept", base)
	orphaned := summarySignal("orphaned", base.Add(time.Second))

	active := SelectActive([]*Signal{kept, orphaned}, func(s *Signal) bool {
		return s.ID != "orphaned"
	})
	if len(active) != 1 || active[0].ID != "kept" {
		t.Errorf("expected only the kept signal, got %v", active)
	}
}

func TestSelectActiveEmpty(t *testing.T) {
	if got := SelectActive(nil, nil); len(got) != 0 {
		t.Errorf("expected empty selection, got %v", got)
	}
}

// ============================================================================
// MENTION RESOLVER
// ============================================================================

func TestResolveMentionRoles(t *testing.T) {
	roles := ResolveMentionRoles(
		"111111111111111111",
		"also ping 222222222222222222 and <@&333333333333333333>",
	)
	want := []string{"111111111111111111", "222222222222222222", "333333333333333333"}
	if len(roles) != len(want) {
		t.Fatalf("expected %d roles, got %v", len(want), roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("role %d: expected %s, got %s", i, want[i], roles[i])
		}
	}
}

func TestResolveMentionRolesDedupes(t *testing.T) {
	roles := ResolveMentionRoles("111111111111111111", "111111111111111111 222222 222222")
	want := []string{"111111111111111111", "222222"}
	if len(roles) != 2 || roles[0] != want[0] || roles[1] != want[1] {
		t.Errorf("expected %v, got %v", want, roles)
	}
}

func TestResolveMentionRolesIgnoresShortRuns(t *testing.T) {
	roles := ResolveMentionRoles("", "tp at 12345 looks good")
	if len(roles) != 0 {
		t.Errorf("expected no roles from 5-digit runs, got %v", roles)
	}
}

func TestResolveMentionRolesNoDefault(t *testing.T) {
	roles := ResolveMentionRoles("", "ping 444444444444444444")
	if len(roles) != 1 || roles[0] != "444444444444444444" {
		t.Errorf("expected single extracted role, got %v", roles)
	}
}
