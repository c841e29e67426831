package membership

import (
	"time"

	"gymgate/pkg/clock"
)

// Engine holds the pure date arithmetic of the membership lifecycle. It
// never touches storage; callers persist whatever it changes. All inputs
// are date-precision instants in the engine's timezone.
type Engine struct {
	loc *time.Location
}

func NewEngine(c clock.Clock) *Engine {
	return &Engine{loc: c.Location()}
}

// Finalize settles a membership against the calendar:
//
//   - fills EndDate = StartDate + durationDays when unset
//   - EndDate on or before today => expired, inactive
//   - otherwise a pending membership becomes active
//
// A cancelled membership is terminal and is never touched. Running
// Finalize twice with the same today is a no-op the second time; the
// returned bool reports whether anything changed.
func (e *Engine) Finalize(m *Membership, durationDays int, today time.Time) bool {
	if m.Status == Cancelled {
		return false
	}

	today = clock.Midnight(today, e.loc)
	changed := false

	if m.EndDate == nil || m.EndDate.IsZero() {
		end := clock.Midnight(m.StartDate, e.loc).AddDate(0, 0, durationDays)
		m.EndDate = &end
		changed = true
	}

	if !m.EndDate.After(today) {
		if m.Status != Expired || m.IsActive {
			m.Status = Expired
			m.IsActive = false
			changed = true
		}
		return changed
	}

	if m.Status == Pending {
		m.Status = Active
		m.IsActive = true
		changed = true
	}

	return changed
}

// IsValid reports whether the membership admits on today's date. The end
// date is exclusive: a membership ending today no longer admits.
func (e *Engine) IsValid(m *Membership, today time.Time) bool {
	if !m.IsActive || m.EndDate == nil {
		return false
	}
	return m.EndDate.After(clock.Midnight(today, e.loc))
}

// DaysRemaining counts whole calendar days until EndDate, floored at zero.
func (e *Engine) DaysRemaining(m *Membership, today time.Time) int {
	if m.EndDate == nil {
		return 0
	}
	days := clock.DaysBetween(today, *m.EndDate, e.loc)
	if days < 0 {
		return 0
	}
	return days
}
