package plan

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gymgate/pkg/errutil"
	"gymgate/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// membershipRow shadows the memberships table so the delete guard can be
// exercised without importing the membership service.
type membershipRow struct {
	ID     string `gorm:"column:id;primaryKey"`
	PlanID string `gorm:"column:plan_id"`
	Status string `gorm:"column:status"`
}

func (membershipRow) TableName() string { return "memberships" }

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Plan{}, &membershipRow{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func TestCreatePlan(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	plan, err := svc.Create(ctx, &CreatePlanRequest{
		Name:         "Plan Completo",
		Type:         Full,
		Price:        45000,
		DurationDays: 30,
	})
	require.NoError(t, err)
	require.Equal(t, "plan-completo", plan.Slug)
	require.True(t, plan.IsActive)
	require.Equal(t, 30, plan.DurationDays)
}

func TestCreatePlanDuplicateSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreatePlanRequest{
		Name:         "Plan Completo",
		Type:         Full,
		DurationDays: 30,
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &CreatePlanRequest{
		Name:         "Plan Completo",
		Type:         Full,
		DurationDays: 90,
	})
	require.Error(t, err)

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusConflict, be.Code)
}

func TestCreatePlanRejectsBadScheduleRule(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), &CreatePlanRequest{
		Name:         "Plan Finde",
		Type:         Weekend,
		DurationDays: 30,
		ScheduleRule: "weekday +", // does not parse
	})
	require.Error(t, err)

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusValidationFailed, be.Code)
}

func TestCreatePlanAcceptsScheduleRule(t *testing.T) {
	svc := newTestService(t)

	plan, err := svc.Create(context.Background(), &CreatePlanRequest{
		Name:         "Plan Finde",
		Type:         Weekend,
		DurationDays: 30,
		ScheduleRule: "weekday >= 6",
	})
	require.NoError(t, err)
	require.Equal(t, "weekday >= 6", plan.ScheduleRule)
}

func TestGetPlanByIDOrSlug(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &CreatePlanRequest{
		Name:         "Plan Diario",
		Type:         Weekday,
		DurationDays: 30,
	})
	require.NoError(t, err)

	byID, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, byID.ID)

	bySlug, err := svc.Get(ctx, "plan-diario")
	require.NoError(t, err)
	require.Equal(t, created.ID, bySlug.ID)

	_, err = svc.Get(ctx, "no-such-plan")
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)
}

func TestDeletePlanBlockedByMembership(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	plan, err := svc.Create(ctx, &CreatePlanRequest{
		Name:         "Plan Completo",
		Type:         Full,
		DurationDays: 30,
	})
	require.NoError(t, err)

	require.NoError(t, svc.db.Create(&membershipRow{
		ID:     "m1",
		PlanID: plan.ID,
		Status: "active",
	}).Error)

	err = svc.Delete(ctx, plan.ID)
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusConflict, be.Code)

	// Cancelled memberships no longer pin the plan.
	require.NoError(t, svc.db.Model(&membershipRow{}).
		Where("id = ?", "m1").
		Update("status", "cancelled").Error)

	require.NoError(t, svc.Delete(ctx, plan.ID))
}

func TestUpdatePlan(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	plan, err := svc.Create(ctx, &CreatePlanRequest{
		Name:         "Plan Diario",
		Type:         Weekday,
		Price:        30000,
		DurationDays: 30,
	})
	require.NoError(t, err)

	newPrice := int64(35000)
	inactive := false
	updated, err := svc.Update(ctx, plan.ID, &UpdatePlanRequest{
		Price:    &newPrice,
		IsActive: &inactive,
	})
	require.NoError(t, err)
	require.Equal(t, int64(35000), updated.Price)
	require.False(t, updated.IsActive)
	require.Equal(t, 30, updated.DurationDays)
}
