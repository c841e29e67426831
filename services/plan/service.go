package plan

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gymgate/pkg/celengine"
	"gymgate/pkg/db/option"
	"gymgate/pkg/db/pagination"
	"gymgate/pkg/errutil"
	"gymgate/pkg/repository"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[Plan]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[Plan](p.DB),
	}
}

type CreatePlanRequest struct {
	Name                 string   `json:"name" binding:"required"`
	Slug                 string   `json:"slug"`
	Type                 PlanType `json:"type" binding:"required"`
	Description          string   `json:"description"`
	Price                int64    `json:"price"`
	DurationDays         int      `json:"duration_days" binding:"required"`
	ScheduleRule         string   `json:"schedule_rule"`
	IncludesClasses      bool     `json:"includes_classes"`
	IncludesNutritionist bool     `json:"includes_nutritionist"`
	Benefits             string   `json:"benefits"`
}

type UpdatePlanRequest struct {
	Name                 *string `json:"name"`
	Description          *string `json:"description"`
	Price                *int64  `json:"price"`
	DurationDays         *int    `json:"duration_days"`
	ScheduleRule         *string `json:"schedule_rule"`
	IncludesClasses      *bool   `json:"includes_classes"`
	IncludesNutritionist *bool   `json:"includes_nutritionist"`
	Benefits             *string `json:"benefits"`
	IsActive             *bool   `json:"is_active"`
}

type ListPlansRequest struct {
	ActiveOnly bool   `form:"active_only"`
	Limit      int    `form:"limit"`
	Cursor     string `form:"cursor"`
}

func validateScheduleRule(rule string) error {
	if rule == "" {
		return nil
	}
	if err := celengine.Compile(rule, ScheduleAttributes(time.Now())); err != nil {
		return errutil.ValidationFailed("invalid schedule rule", errutil.WithErr(err))
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req *CreatePlanRequest) (*Plan, error) {
	span := trace.SpanFromContext(ctx)

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	if req.Type.String() == "" {
		return nil, errutil.ValidationFailed("unknown plan type")
	}

	if req.DurationDays <= 0 {
		return nil, errutil.ValidationFailed("duration_days must be positive")
	}

	if err := validateScheduleRule(req.ScheduleRule); err != nil {
		return nil, err
	}

	slugName := req.Slug
	if slugName == "" {
		slugName = slug.Make(req.Name)
	}

	exist, err := s.repo.FindOne(ctx, &Plan{Slug: slugName})
	if err != nil {
		zapLog.Error("failed query get plan by slug", zap.Error(err))
		return nil, errutil.Internal("failed to check existing plan", errutil.WithErr(err))
	}

	if exist != nil {
		zapLog.Warn("plan already exists", zap.String("slug", slugName))
		return nil, errutil.Conflict("plan already exists")
	}

	plan := &Plan{
		ID:                   s.node.Generate().String(),
		Name:                 req.Name,
		Slug:                 slugName,
		Type:                 req.Type,
		Description:          req.Description,
		Price:                req.Price,
		DurationDays:         req.DurationDays,
		ScheduleRule:         req.ScheduleRule,
		IncludesClasses:      req.IncludesClasses,
		IncludesNutritionist: req.IncludesNutritionist,
		Benefits:             req.Benefits,
		IsActive:             true,
	}

	if err := s.repo.Create(ctx, plan); err != nil {
		zapLog.Error("failed to create plan", zap.Error(err))
		return nil, errutil.Internal("failed to create plan", errutil.WithErr(err))
	}

	return plan, nil
}

// Get resolves a plan by id first, then by slug, so gate devices can be
// provisioned with either.
func (s *Service) Get(ctx context.Context, idOrSlug string) (*Plan, error) {
	plan, err := s.repo.FindOne(ctx, &Plan{ID: idOrSlug})
	if err != nil {
		return nil, errutil.Internal("failed to get plan", errutil.WithErr(err))
	}

	if plan == nil {
		plan, err = s.repo.FindOne(ctx, &Plan{Slug: idOrSlug})
		if err != nil {
			return nil, errutil.Internal("failed to get plan", errutil.WithErr(err))
		}
	}

	if plan == nil {
		return nil, errutil.NotFound("plan not found")
	}

	return plan, nil
}

func (s *Service) List(ctx context.Context, req *ListPlansRequest) ([]*Plan, *pagination.PageInfo, error) {
	query := &Plan{}
	if req.ActiveOnly {
		query.IsActive = true
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
		}),
		option.ApplyPagination(pagination.Pagination{
			Limit:  limit + 1,
			Cursor: req.Cursor,
		}),
	}

	plans, err := s.repo.Find(ctx, query, opts...)
	if err != nil {
		return nil, nil, errutil.Internal("failed to list plans", errutil.WithErr(err))
	}

	plans, pageInfo := pagination.BuildCursorPageInfo(plans, limit, func(p *Plan) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: p.CreatedAt.Format(time.RFC3339Nano),
			ID:        p.ID,
		})
		return cursor
	})

	return plans, pageInfo, nil
}

func (s *Service) Update(ctx context.Context, planID string, req *UpdatePlanRequest) (*Plan, error) {
	plan, err := s.repo.FindOne(ctx, &Plan{ID: planID})
	if err != nil {
		return nil, errutil.Internal("failed to get plan", errutil.WithErr(err))
	}

	if plan == nil {
		return nil, errutil.NotFound("plan not found")
	}

	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.Description != nil {
		plan.Description = *req.Description
	}
	if req.Price != nil {
		plan.Price = *req.Price
	}
	if req.DurationDays != nil {
		if *req.DurationDays <= 0 {
			return nil, errutil.ValidationFailed("duration_days must be positive")
		}
		plan.DurationDays = *req.DurationDays
	}
	if req.ScheduleRule != nil {
		if err := validateScheduleRule(*req.ScheduleRule); err != nil {
			return nil, err
		}
		plan.ScheduleRule = *req.ScheduleRule
	}
	if req.IncludesClasses != nil {
		plan.IncludesClasses = *req.IncludesClasses
	}
	if req.IncludesNutritionist != nil {
		plan.IncludesNutritionist = *req.IncludesNutritionist
	}
	if req.Benefits != nil {
		plan.Benefits = *req.Benefits
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}

	// Save writes every column so deactivation (is_active=false) persists.
	if err := s.db.WithContext(ctx).Save(plan).Error; err != nil {
		return nil, errutil.Internal("failed to update plan", errutil.WithErr(err))
	}

	return plan, nil
}

// Delete removes a plan that no live membership references. Memberships in
// any non-cancelled state block deletion so historical pricing stays
// resolvable; deactivate the plan instead.
func (s *Service) Delete(ctx context.Context, planID string) error {
	span := trace.SpanFromContext(ctx)

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	plan, err := s.repo.FindOne(ctx, &Plan{ID: planID})
	if err != nil {
		return errutil.Internal("failed to get plan", errutil.WithErr(err))
	}

	if plan == nil {
		return errutil.NotFound("plan not found")
	}

	var referenced int64
	if err := s.db.WithContext(ctx).
		Table("memberships").
		Where("plan_id = ? AND status <> ?", planID, "cancelled").
		Count(&referenced).Error; err != nil {
		zapLog.Error("failed to count memberships for plan", zap.Error(err))
		return errutil.Internal("failed to delete plan", errutil.WithErr(err))
	}

	if referenced > 0 {
		zapLog.Warn("plan still referenced by memberships",
			zap.String("plan_id", planID),
			zap.Int64("memberships", referenced))
		return errutil.Conflict("plan is referenced by memberships")
	}

	if err := s.db.WithContext(ctx).Delete(&Plan{ID: planID}).Error; err != nil {
		zapLog.Error("failed to delete plan", zap.Error(err))
		return errutil.Internal("failed to delete plan", errutil.WithErr(err))
	}

	return nil
}
