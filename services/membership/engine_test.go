package membership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gymgate/pkg/clock"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestEngine() *Engine {
	return NewEngine(clock.Fixed{Loc: time.UTC})
}

func TestFinalizeFillsEndDateAndActivates(t *testing.T) {
	e := newTestEngine()

	m := &Membership{
		StartDate: date(2024, 3, 1),
		Status:    Pending,
	}

	changed := e.Finalize(m, 30, date(2024, 3, 1))
	require.True(t, changed)
	require.Equal(t, date(2024, 3, 31), *m.EndDate)
	require.Equal(t, Active, m.Status)
	require.True(t, m.IsActive)
}

func TestFinalizeExpiresOnEndDate(t *testing.T) {
	e := newTestEngine()

	// The end date itself no longer admits: expiring is not off by one.
	end := date(2024, 3, 31)
	m := &Membership{
		StartDate: date(2024, 3, 1),
		EndDate:   &end,
		Status:    Active,
		IsActive:  true,
	}

	changed := e.Finalize(m, 30, date(2024, 3, 31))
	require.True(t, changed)
	require.Equal(t, Expired, m.Status)
	require.False(t, m.IsActive)
}

func TestFinalizeKeepsFutureActiveUntouched(t *testing.T) {
	e := newTestEngine()

	end := date(2024, 3, 31)
	m := &Membership{
		StartDate: date(2024, 3, 1),
		EndDate:   &end,
		Status:    Active,
		IsActive:  true,
	}

	require.False(t, e.Finalize(m, 30, date(2024, 3, 30)))
	require.Equal(t, Active, m.Status)
	require.True(t, m.IsActive)
}

func TestFinalizeNeverTouchesCancelled(t *testing.T) {
	e := newTestEngine()

	end := date(2024, 1, 1)
	m := &Membership{
		StartDate: date(2023, 12, 1),
		EndDate:   &end,
		Status:    Cancelled,
		IsActive:  false,
	}

	require.False(t, e.Finalize(m, 30, date(2024, 6, 1)))
	require.Equal(t, Cancelled, m.Status)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	e := newTestEngine()
	today := date(2024, 5, 1)

	m := &Membership{
		StartDate: date(2024, 3, 1),
		Status:    Pending,
	}

	require.True(t, e.Finalize(m, 30, today))
	snapshot := *m

	require.False(t, e.Finalize(m, 30, today))
	require.Equal(t, snapshot.Status, m.Status)
	require.Equal(t, snapshot.IsActive, m.IsActive)
	require.Equal(t, *snapshot.EndDate, *m.EndDate)
}

func TestIsValidEndDateIsExclusive(t *testing.T) {
	e := newTestEngine()

	end := date(2024, 3, 31)
	m := &Membership{EndDate: &end, IsActive: true}

	require.True(t, e.IsValid(m, date(2024, 3, 30)))
	require.False(t, e.IsValid(m, date(2024, 3, 31)))
	require.False(t, e.IsValid(m, date(2024, 4, 1)))
}

func TestIsValidRequiresActiveFlag(t *testing.T) {
	e := newTestEngine()

	end := date(2024, 12, 31)
	require.False(t, e.IsValid(&Membership{EndDate: &end, IsActive: false}, date(2024, 1, 1)))
	require.False(t, e.IsValid(&Membership{IsActive: true}, date(2024, 1, 1)))
}

func TestDaysRemaining(t *testing.T) {
	e := newTestEngine()

	end := date(2024, 3, 31)
	m := &Membership{EndDate: &end, IsActive: true}

	require.Equal(t, 30, e.DaysRemaining(m, date(2024, 3, 1)))
	require.Equal(t, 1, e.DaysRemaining(m, date(2024, 3, 30)))
	require.Equal(t, 0, e.DaysRemaining(m, date(2024, 3, 31)))
	require.Equal(t, 0, e.DaysRemaining(m, date(2024, 6, 1)))
}
