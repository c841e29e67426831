package membership

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"gymgate/pkg/clock"
	"gymgate/pkg/errutil"
	"gymgate/pkg/taskname"
	"gymgate/services/member"
	"gymgate/services/plan"
	"gymgate/services/testutil"
)

func newTestServiceAt(t *testing.T, today time.Time) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &member.Member{}, &plan.Plan{}, &Membership{})
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	return NewService(ServiceParams{
		DB:    db,
		Node:  node,
		Clock: clock.Fixed{Time: today, Loc: time.UTC},
	})
}

func seedMember(t *testing.T, svc *Service, id string) *member.Member {
	t.Helper()

	m := &member.Member{
		ID:         id,
		MemberCode: "M-" + id,
		NationalID: "nid-" + id,
		Email:      id + "@example.com",
		FirstName:  "Test",
		LastName:   "Member",
		Role:       member.RoleMember,
		QRToken:    "qr-" + id,
	}
	require.NoError(t, svc.db.Create(m).Error)
	return m
}

func seedPlan(t *testing.T, svc *Service, id string, durationDays int, price int64) *plan.Plan {
	t.Helper()

	p := &plan.Plan{
		ID:           id,
		Name:         "Plan " + id,
		Slug:         "plan-" + id,
		Type:         plan.Full,
		Price:        price,
		DurationDays: durationDays,
		IsActive:     true,
	}
	require.NoError(t, svc.db.Create(p).Error)
	return p
}

func memberFlag(t *testing.T, svc *Service, memberID string) bool {
	t.Helper()

	var m member.Member
	require.NoError(t, svc.db.First(&m, "id = ?", memberID).Error)
	return m.IsActiveMember
}

func TestResolveRenewalFreshGrant(t *testing.T) {
	today := date(2024, 4, 5)
	svc := newTestServiceAt(t, today)
	ctx := context.Background()

	seedMember(t, svc, "m1")
	seedPlan(t, svc, "p1", 30, 45000)

	m, err := svc.ResolveRenewal(ctx, &RenewMembershipRequest{
		MemberID:      "m1",
		PlanID:        "p1",
		PaymentMethod: Cash,
	})
	require.NoError(t, err)
	require.Equal(t, date(2024, 4, 5), m.StartDate)
	require.Equal(t, date(2024, 5, 5), *m.EndDate)
	require.Equal(t, Active, m.Status)
	require.True(t, m.IsActive)
	require.Equal(t, int64(45000), m.AmountPaid)
	require.True(t, memberFlag(t, svc, "m1"))
}

func TestResolveRenewalSamePlanExtends(t *testing.T) {
	today := date(2024, 6, 1)
	svc := newTestServiceAt(t, today)
	ctx := context.Background()

	seedMember(t, svc, "m1")
	seedPlan(t, svc, "p1", 30, 45000)

	end := date(2024, 6, 10)
	current := &Membership{
		ID:        "cur",
		MemberID:  "m1",
		PlanID:    "p1",
		StartDate: date(2024, 5, 11),
		EndDate:   &end,
		Status:    Active,
		IsActive:  true,
	}
	require.NoError(t, svc.db.Create(current).Error)

	m, err := svc.ResolveRenewal(ctx, &RenewMembershipRequest{
		MemberID:      "m1",
		PlanID:        "p1",
		PaymentMethod: Card,
	})
	require.NoError(t, err)

	// New period starts the day after the current one ends; no paid days
	// are lost to renewing early.
	require.Equal(t, date(2024, 6, 11), m.StartDate)
	require.Equal(t, date(2024, 7, 11), *m.EndDate)

	// The current membership keeps admitting until its own end date.
	var kept Membership
	require.NoError(t, svc.db.First(&kept, "id = ?", "cur").Error)
	require.Equal(t, Active, kept.Status)
	require.True(t, kept.IsActive)
}

func TestResolveRenewalPlanChangeKeepsHorizon(t *testing.T) {
	today := date(2024, 6, 1)
	svc := newTestServiceAt(t, today)
	ctx := context.Background()

	seedMember(t, svc, "m1")
	seedPlan(t, svc, "p1", 30, 45000)
	seedPlan(t, svc, "p2", 30, 60000)

	end := date(2024, 6, 10)
	current := &Membership{
		ID:        "cur",
		MemberID:  "m1",
		PlanID:    "p1",
		StartDate: date(2024, 5, 11),
		EndDate:   &end,
		Status:    Active,
		IsActive:  true,
	}
	require.NoError(t, svc.db.Create(current).Error)

	m, err := svc.ResolveRenewal(ctx, &RenewMembershipRequest{
		MemberID:      "m1",
		PlanID:        "p2",
		PaymentMethod: Transfer,
	})
	require.NoError(t, err)

	// Switching plans starts today but never extends the paid horizon.
	require.Equal(t, date(2024, 6, 1), m.StartDate)
	require.Equal(t, date(2024, 6, 10), *m.EndDate)
	require.Equal(t, "p2", m.PlanID)

	var superseded Membership
	require.NoError(t, svc.db.First(&superseded, "id = ?", "cur").Error)
	require.Equal(t, Cancelled, superseded.Status)
	require.False(t, superseded.IsActive)
	require.Contains(t, superseded.Notes, "superseded by membership "+m.ID)

	require.True(t, memberFlag(t, svc, "m1"))
}

func TestResolveRenewalUnknownMemberOrPlan(t *testing.T) {
	svc := newTestServiceAt(t, date(2024, 6, 1))
	ctx := context.Background()

	seedMember(t, svc, "m1")
	seedPlan(t, svc, "p1", 30, 45000)

	var be errutil.BaseError

	_, err := svc.ResolveRenewal(ctx, &RenewMembershipRequest{
		MemberID: "ghost", PlanID: "p1", PaymentMethod: Cash,
	})
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)

	_, err = svc.ResolveRenewal(ctx, &RenewMembershipRequest{
		MemberID: "m1", PlanID: "ghost", PaymentMethod: Cash,
	})
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)
}

func TestCancelClearsMemberFlag(t *testing.T) {
	svc := newTestServiceAt(t, date(2024, 6, 1))
	ctx := context.Background()

	seedMember(t, svc, "m1")
	seedPlan(t, svc, "p1", 30, 45000)

	m, err := svc.ResolveRenewal(ctx, &RenewMembershipRequest{
		MemberID: "m1", PlanID: "p1", PaymentMethod: Cash,
	})
	require.NoError(t, err)
	require.True(t, memberFlag(t, svc, "m1"))

	cancelled, err := svc.Cancel(ctx, m.ID, "moving away")
	require.NoError(t, err)
	require.Equal(t, Cancelled, cancelled.Status)
	require.Contains(t, cancelled.Notes, "cancelled: moving away")
	require.False(t, memberFlag(t, svc, "m1"))

	// Cancel is terminal.
	_, err = svc.Cancel(ctx, m.ID, "again")
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusConflict, be.Code)
}

func TestActiveMembershipTieBreak(t *testing.T) {
	today := date(2024, 6, 1)
	svc := newTestServiceAt(t, today)
	ctx := context.Background()

	seedMember(t, svc, "m1")
	seedPlan(t, svc, "p1", 30, 45000)

	near := date(2024, 6, 10)
	far := date(2024, 7, 11)
	require.NoError(t, svc.db.Create(&Membership{
		ID: "near", MemberID: "m1", PlanID: "p1",
		StartDate: date(2024, 5, 11), EndDate: &near,
		Status: Active, IsActive: true,
	}).Error)
	require.NoError(t, svc.db.Create(&Membership{
		ID: "far", MemberID: "m1", PlanID: "p1",
		StartDate: date(2024, 6, 11), EndDate: &far,
		Status: Active, IsActive: true,
	}).Error)

	m, err := svc.ActiveMembership(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, "far", m.ID)
	require.NotNil(t, m.Plan)
}

func TestActiveMembershipNoneValid(t *testing.T) {
	svc := newTestServiceAt(t, date(2024, 6, 1))

	seedMember(t, svc, "m1")

	_, err := svc.ActiveMembership(context.Background(), "m1")
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)
}

func TestCreateMembershipWithPastStartExpires(t *testing.T) {
	svc := newTestServiceAt(t, date(2024, 6, 1))
	ctx := context.Background()

	seedMember(t, svc, "m1")
	seedPlan(t, svc, "p1", 30, 45000)

	start := date(2024, 1, 1)
	m, err := svc.Create(ctx, &CreateMembershipRequest{
		MemberID:      "m1",
		PlanID:        "p1",
		StartDate:     &start,
		PaymentMethod: Cash,
	})
	require.NoError(t, err)
	require.Equal(t, Expired, m.Status)
	require.False(t, m.IsActive)
	require.Equal(t, date(2024, 1, 31), *m.EndDate)
	require.False(t, memberFlag(t, svc, "m1"))
}

func TestFinalizeSweep(t *testing.T) {
	today := date(2024, 6, 1)
	svc := newTestServiceAt(t, today)
	ctx := context.Background()

	seedMember(t, svc, "m1")
	seedMember(t, svc, "m2")
	seedPlan(t, svc, "p1", 30, 45000)

	// Pending with a future horizon: should activate.
	require.NoError(t, svc.db.Create(&Membership{
		ID: "pending", MemberID: "m1", PlanID: "p1",
		StartDate: date(2024, 5, 20), Status: Pending,
	}).Error)

	// Active but past its end date: should expire.
	past := date(2024, 5, 1)
	require.NoError(t, svc.db.Create(&Membership{
		ID: "stale", MemberID: "m2", PlanID: "p1",
		StartDate: date(2024, 4, 1), EndDate: &past,
		Status: Active, IsActive: true,
	}).Error)

	task := asynq.NewTask(taskname.MembershipFinalizeSweep, nil)
	require.NoError(t, svc.HandleFinalizeSweep(ctx, task))

	var activated, expired Membership
	require.NoError(t, svc.db.First(&activated, "id = ?", "pending").Error)
	require.Equal(t, Active, activated.Status)
	require.True(t, activated.IsActive)
	require.Equal(t, date(2024, 6, 19), *activated.EndDate)

	require.NoError(t, svc.db.First(&expired, "id = ?", "stale").Error)
	require.Equal(t, Expired, expired.Status)
	require.False(t, expired.IsActive)

	require.True(t, memberFlag(t, svc, "m1"))
	require.False(t, memberFlag(t, svc, "m2"))

	// Second run settles nothing further.
	require.NoError(t, svc.HandleFinalizeSweep(ctx, task))
}
