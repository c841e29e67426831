package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gymgate/pkg/clock"
	"gymgate/pkg/config"
	"gymgate/pkg/db/option"
	"gymgate/pkg/errutil"
	"gymgate/pkg/repository"
	"gymgate/pkg/sequence"
	"gymgate/services/member"
	"gymgate/services/plan"
)

type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	clk        clock.Clock
	cfg        *config.Config
	seq        sequence.Generator
	engine     *Engine
	repo       repository.Repository[Membership]
	planRepo   repository.Repository[plan.Plan]
	memberRepo repository.Repository[member.Member]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Clock  clock.Clock
	Config *config.Config     `optional:"true"`
	Seq    sequence.Generator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		clk:        p.Clock,
		cfg:        p.Config,
		seq:        p.Seq,
		engine:     NewEngine(p.Clock),
		repo:       repository.ProvideStore[Membership](p.DB),
		planRepo:   repository.ProvideStore[plan.Plan](p.DB),
		memberRepo: repository.ProvideStore[member.Member](p.DB),
	}
}

func (s *Service) Engine() *Engine { return s.engine }

type CreateMembershipRequest struct {
	MemberID      string        `json:"member_id" binding:"required"`
	PlanID        string        `json:"plan_id" binding:"required"`
	StartDate     *time.Time    `json:"start_date"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required"`
	AmountPaid    *int64        `json:"amount_paid"`
	Notes         string        `json:"notes"`
}

type RenewMembershipRequest struct {
	MemberID      string        `json:"member_id" binding:"required"`
	PlanID        string        `json:"plan_id" binding:"required"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required"`
	AmountPaid    *int64        `json:"amount_paid"`
	Notes         string        `json:"notes"`
}

// activeOrdering pins the tie-break when a member somehow holds more than
// one live membership: the one reaching furthest into the future wins,
// newest row first on equal end dates.
func activeOrdering() []option.QueryOption {
	return []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "end_date", OrderBy: "desc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc"}),
	}
}

func (s *Service) Create(ctx context.Context, req *CreateMembershipRequest) (*Membership, error) {
	span := trace.SpanFromContext(ctx)

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	if req.PaymentMethod.String() == "" {
		return nil, errutil.ValidationFailed("unknown payment method")
	}

	mbr, err := s.memberRepo.FindOne(ctx, &member.Member{ID: req.MemberID})
	if err != nil {
		return nil, errutil.Internal("failed to get member", errutil.WithErr(err))
	}
	if mbr == nil {
		return nil, errutil.NotFound("member not found")
	}

	pl, err := s.planRepo.FindOne(ctx, &plan.Plan{ID: req.PlanID})
	if err != nil {
		return nil, errutil.Internal("failed to get plan", errutil.WithErr(err))
	}
	if pl == nil {
		return nil, errutil.NotFound("plan not found")
	}

	today := clock.Today(s.clk)
	start := today
	if req.StartDate != nil {
		start = clock.Midnight(*req.StartDate, s.clk.Location())
	}

	amount := pl.Price
	if req.AmountPaid != nil {
		amount = *req.AmountPaid
	}

	now := s.clk.Now()
	m := &Membership{
		ID:            s.node.Generate().String(),
		MemberID:      mbr.ID,
		PlanID:        pl.ID,
		StartDate:     start,
		PaymentMethod: req.PaymentMethod,
		AmountPaid:    amount,
		ReceiptCode:   s.nextReceiptCode(ctx),
		PaymentAt:     &now,
		Status:        Pending,
		Notes:         req.Notes,
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("failed to create membership: %w", err)
		}

		s.engine.Finalize(m, pl.DurationDays, today)
		if err := tx.Save(m).Error; err != nil {
			return fmt.Errorf("failed to finalize membership: %w", err)
		}

		return s.propagateMemberFlag(tx, m.MemberID, today)
	}); err != nil {
		zapLog.Error("failed to create membership", zap.Error(err))
		return nil, errutil.Internal("failed to create membership", errutil.WithErr(err))
	}

	m.Plan = pl
	return m, nil
}

// Finalize settles one membership and propagates the member's active flag
// in the same transaction. Safe to call any number of times.
func (s *Service) Finalize(ctx context.Context, membershipID string) (*Membership, error) {
	m, err := s.repo.FindOne(ctx, &Membership{ID: membershipID}, option.WithPreload("Plan"))
	if err != nil {
		return nil, errutil.Internal("failed to get membership", errutil.WithErr(err))
	}
	if m == nil {
		return nil, errutil.NotFound("membership not found")
	}
	if m.Plan == nil {
		return nil, errutil.Internal("membership references missing plan")
	}

	today := clock.Today(s.clk)
	if !s.engine.Finalize(m, m.Plan.DurationDays, today) {
		return m, nil
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Membership{}).Where("id = ?", m.ID).Updates(map[string]interface{}{
			"end_date":  m.EndDate,
			"status":    m.Status,
			"is_active": m.IsActive,
		}).Error; err != nil {
			return err
		}
		return s.propagateMemberFlag(tx, m.MemberID, today)
	}); err != nil {
		return nil, errutil.Internal("failed to finalize membership", errutil.WithErr(err))
	}

	return m, nil
}

// ActiveMembership returns the member's single valid membership for today,
// or NotFound when nothing admits.
func (s *Service) ActiveMembership(ctx context.Context, memberID string) (*Membership, error) {
	today := clock.Today(s.clk)

	opts := append(activeOrdering(),
		option.ApplyOperator(option.Condition{Field: "end_date", Operator: option.GT, Value: today}),
		option.WithPreload("Plan"),
	)

	m, err := s.repo.FindOne(ctx, &Membership{MemberID: memberID, IsActive: true}, opts...)
	if err != nil {
		return nil, errutil.Internal("failed to get active membership", errutil.WithErr(err))
	}
	if m == nil {
		return nil, errutil.NotFound("no valid membership")
	}

	return m, nil
}

// ResolveRenewal decides how a new purchase composes with the member's
// current membership:
//
//   - no valid membership: fresh grant from today
//   - same plan: the new period starts the day after the current one ends
//   - different plan: switch today, keep the already-paid horizon, cancel
//     the superseded membership
//
// Everything happens in one transaction with the current row locked.
func (s *Service) ResolveRenewal(ctx context.Context, req *RenewMembershipRequest) (*Membership, error) {
	span := trace.SpanFromContext(ctx)

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	if req.PaymentMethod.String() == "" {
		return nil, errutil.ValidationFailed("unknown payment method")
	}

	today := clock.Today(s.clk)

	var out *Membership
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mbr, err := s.memberRepo.WithTrx(tx).FindOne(ctx, &member.Member{ID: req.MemberID})
		if err != nil {
			return err
		}
		if mbr == nil {
			return errutil.NotFound("member not found")
		}

		pl, err := s.planRepo.WithTrx(tx).FindOne(ctx, &plan.Plan{ID: req.PlanID})
		if err != nil {
			return err
		}
		if pl == nil {
			return errutil.NotFound("plan not found")
		}
		if !pl.IsActive {
			return errutil.Conflict("plan is no longer sold")
		}

		opts := append(activeOrdering(),
			option.ApplyOperator(option.Condition{Field: "end_date", Operator: option.GT, Value: today}),
			option.WithLockingUpdate(),
		)

		current, err := s.repo.WithTrx(tx).FindOne(ctx, &Membership{MemberID: mbr.ID, IsActive: true}, opts...)
		if err != nil {
			return err
		}

		newID := s.node.Generate().String()

		var start, end time.Time
		switch {
		case current == nil:
			start = today
			end = start.AddDate(0, 0, pl.DurationDays)

		case current.PlanID == pl.ID:
			start = current.EndDate.AddDate(0, 0, 1)
			end = start.AddDate(0, 0, pl.DurationDays)

		default:
			start = today
			end = *current.EndDate

			current.Status = Cancelled
			current.IsActive = false
			current.Notes = appendNote(current.Notes,
				fmt.Sprintf("superseded by membership %s (plan change)", newID))
			if err := tx.Save(current).Error; err != nil {
				return fmt.Errorf("failed to cancel superseded membership: %w", err)
			}
		}

		amount := pl.Price
		if req.AmountPaid != nil {
			amount = *req.AmountPaid
		}

		now := s.clk.Now()
		out = &Membership{
			ID:            newID,
			MemberID:      mbr.ID,
			PlanID:        pl.ID,
			StartDate:     start,
			EndDate:       &end,
			PaymentMethod: req.PaymentMethod,
			AmountPaid:    amount,
			ReceiptCode:   s.nextReceiptCode(ctx),
			PaymentAt:     &now,
			Status:        Active,
			IsActive:      true,
			Notes:         req.Notes,
		}

		if err := tx.Create(out).Error; err != nil {
			return fmt.Errorf("failed to create membership: %w", err)
		}

		out.Plan = pl
		return s.propagateMemberFlag(tx, mbr.ID, today)
	}); err != nil {
		var be errutil.BaseError
		if errors.As(err, &be) {
			return nil, err
		}
		zapLog.Error("failed to resolve renewal", zap.Error(err))
		return nil, errutil.Internal("failed to resolve renewal", errutil.WithErr(err))
	}

	return out, nil
}

// Cancel is terminal. The reason lands in the notes trail; the member's
// flag is recomputed in case this was their admitting membership.
func (s *Service) Cancel(ctx context.Context, membershipID, reason string) (*Membership, error) {
	m, err := s.repo.FindOne(ctx, &Membership{ID: membershipID})
	if err != nil {
		return nil, errutil.Internal("failed to get membership", errutil.WithErr(err))
	}
	if m == nil {
		return nil, errutil.NotFound("membership not found")
	}
	if m.Status == Cancelled {
		return nil, errutil.Conflict("membership already cancelled")
	}

	note := "cancelled"
	if reason != "" {
		note = "cancelled: " + reason
	}

	m.Status = Cancelled
	m.IsActive = false
	m.Notes = appendNote(m.Notes, note)

	today := clock.Today(s.clk)
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(m).Error; err != nil {
			return err
		}
		return s.propagateMemberFlag(tx, m.MemberID, today)
	}); err != nil {
		return nil, errutil.Internal("failed to cancel membership", errutil.WithErr(err))
	}

	return m, nil
}

// propagateMemberFlag materializes "has at least one valid membership"
// onto the member row. Must run inside the same transaction as whatever
// changed the memberships.
func (s *Service) propagateMemberFlag(tx *gorm.DB, memberID string, today time.Time) error {
	var n int64
	if err := tx.Model(&Membership{}).
		Where("member_id = ? AND is_active = ? AND end_date > ?", memberID, true, today).
		Count(&n).Error; err != nil {
		return fmt.Errorf("failed to count valid memberships: %w", err)
	}

	return tx.Model(&member.Member{}).
		Where("id = ?", memberID).
		Update("is_active_member", n > 0).Error
}

// nextReceiptCode is best effort: a receipt number is front-desk
// convenience and must never fail a sale.
func (s *Service) nextReceiptCode(ctx context.Context) string {
	if s.seq == nil {
		return ""
	}

	code, err := s.seq.NextReceiptCode(ctx)
	if err != nil {
		zap.L().Warn("failed to generate receipt code", zap.Error(err))
		return ""
	}
	return code
}

func appendNote(notes, note string) string {
	if notes == "" {
		return note
	}
	return notes + "\n" + note
}
