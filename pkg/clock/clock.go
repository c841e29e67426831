package clock

import (
	"time"

	"go.uber.org/fx"

	"gymgate/pkg/config"
)

// Clock is the single source of "now" and of the organization's timezone.
// Every day-boundary computation in the engine goes through it so that a
// scan at 23:30 in Santiago never lands on the wrong calendar day just
// because storage keeps UTC instants.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

var Module = fx.Module("clock", fx.Provide(NewOrgClock))

type orgClock struct {
	loc *time.Location
}

func NewOrgClock(cfg *config.Config) (Clock, error) {
	loc, err := time.LoadLocation(cfg.OrgTimezone())
	if err != nil {
		return nil, err
	}
	return &orgClock{loc: loc}, nil
}

func (c *orgClock) Now() time.Time           { return time.Now().In(c.loc) }
func (c *orgClock) Location() *time.Location { return c.loc }

// Fixed is a frozen clock for tests.
type Fixed struct {
	Time time.Time
	Loc  *time.Location
}

func (f Fixed) Now() time.Time { return f.Time.In(f.Location()) }

func (f Fixed) Location() *time.Location {
	if f.Loc != nil {
		return f.Loc
	}
	return time.UTC
}

// Midnight truncates t to 00:00:00 in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Today returns the current calendar date in the clock's timezone.
func Today(c Clock) time.Time {
	return Midnight(c.Now(), c.Location())
}

// DayBounds returns the half-open interval [00:00, next 00:00) containing t
// in the organization's timezone. AddDate handles DST transitions, so the
// upper bound is the real next midnight even on 23h/25h days.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	start := Midnight(t, loc)
	return start, start.AddDate(0, 0, 1)
}

// DayKey renders the calendar day of t in loc, e.g. "2024-03-31".
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// DaysBetween returns the whole calendar days from a to b in loc,
// negative when b precedes a. The dates are re-anchored in UTC before
// subtracting so DST-shortened days still count as one day.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	a = a.In(loc)
	b = b.In(loc)
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au).Hours() / 24)
}
