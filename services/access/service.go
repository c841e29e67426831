package access

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"gymgate/pkg/celengine"
	"gymgate/pkg/clock"
	"gymgate/pkg/config"
	"gymgate/pkg/errutil"
	"gymgate/pkg/rediskey"
	"gymgate/pkg/repository"
	"gymgate/services/member"
	"gymgate/services/membership"
	"gymgate/services/plan"
)

type Service struct {
	db          *gorm.DB
	node        *snowflake.Node
	clk         clock.Clock
	cfg         *config.Config
	rdb         *redis.Client
	members     *member.Service
	memberships *membership.Service
	repo        repository.Repository[AccessLogEntry]
}

type ServiceParams struct {
	fx.In
	DB          *gorm.DB
	Node        *snowflake.Node
	Clock       clock.Clock
	Config      *config.Config `optional:"true"`
	Redis       *redis.Client  `optional:"true"`
	Members     *member.Service
	Memberships *membership.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		node:        p.Node,
		clk:         p.Clock,
		cfg:         p.Config,
		rdb:         p.Redis,
		members:     p.Members,
		memberships: p.Memberships,
		repo:        repository.ProvideStore[AccessLogEntry](p.DB),
	}
}

func (s *Service) gateKeyHash() string {
	if s.cfg == nil {
		return ""
	}
	return s.cfg.Access.GateKeyHash
}

func (s *Service) lockTTL() time.Duration {
	if s.cfg != nil && s.cfg.Access.LockTTL > 0 {
		return s.cfg.Access.LockTTL
	}
	return 5 * time.Second
}

func isNotFound(err error) bool {
	var be errutil.BaseError
	return errors.As(err, &be) && be.Code == errutil.StatusNotFound
}

func summarize(m *member.Member) *MemberSummary {
	return &MemberSummary{
		ID:         m.ID,
		MemberCode: m.MemberCode,
		Name:       m.FullName(),
	}
}

// Scan decides allow/deny for one presented credential and appends the
// outcome to the ledger. Every denial except already-admitted writes
// exactly one denied row; admission writes exactly one allowed row per
// member per organizational day.
func (s *Service) Scan(ctx context.Context, encodedCredential string) (*ScanResult, error) {
	span := trace.SpanFromContext(ctx)

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	now := s.clk.Now()
	loc := s.clk.Location()
	today := clock.Midnight(now, loc)

	cred, err := member.DecodeCredential(encodedCredential)
	if err != nil {
		// Unattributable: the claimed identity inside a bad payload is
		// never trusted, so the denial carries no member reference.
		if err := s.logDenied(ctx, "", nil, now, "invalid credential", nil); err != nil {
			return nil, err
		}
		return &ScanResult{Outcome: OutcomeCredentialInvalid, Reason: "invalid credential"}, nil
	}

	mbr, err := s.members.GetByCredential(ctx, cred)
	if err != nil {
		if isNotFound(err) {
			if err := s.logDenied(ctx, "", nil, now, "invalid credential", nil); err != nil {
				return nil, err
			}
			return &ScanResult{Outcome: OutcomeCredentialInvalid, Reason: "invalid credential"}, nil
		}
		return nil, err
	}

	current, err := s.memberships.ActiveMembership(ctx, mbr.ID)
	if err != nil {
		if isNotFound(err) {
			if err := s.logDenied(ctx, mbr.ID, nil, now, "expired or absent membership", nil); err != nil {
				return nil, err
			}
			return &ScanResult{
				Outcome: OutcomeNoValidMembership,
				Reason:  "expired or absent membership",
				Member:  summarize(mbr),
			}, nil
		}
		return nil, err
	}

	planName := ""
	if current.Plan != nil {
		planName = current.Plan.Name
	}

	if current.Plan != nil && current.Plan.ScheduleRule != "" {
		ok, err := celengine.EvaluateBool(current.Plan.ScheduleRule, plan.ScheduleAttributes(now.In(loc)))
		if err != nil {
			// A rule that stops evaluating must not lock the front door.
			zapLog.Warn("schedule rule evaluation failed, admitting",
				zap.String("plan_id", current.PlanID), zap.Error(err))
		} else if !ok {
			if err := s.logDenied(ctx, mbr.ID, &current.ID, now, "outside plan schedule", nil); err != nil {
				return nil, err
			}
			return &ScanResult{
				Outcome:  OutcomeScheduleNotAllowed,
				Reason:   "outside plan schedule",
				Member:   summarize(mbr),
				PlanName: planName,
			}, nil
		}
	}

	dayKey := clock.DayKey(now, loc)

	// Per-member advisory lock across the admitted-today check and the
	// insert. The unique (member_id, day_key) index on allowed rows is
	// the backstop when redis is unavailable.
	if s.rdb != nil {
		lockKey := rediskey.BuildAccessLockKey(mbr.ID, dayKey)
		acquired, err := s.rdb.SetNX(ctx, lockKey, "1", s.lockTTL()).Result()
		if err != nil {
			zapLog.Warn("failed to acquire scan lock, relying on unique index", zap.Error(err))
		} else if !acquired {
			// A concurrent scan for the same member is in flight; it
			// either already admitted them or is about to.
			return s.alreadyAdmittedResult(ctx, mbr, current, now)
		} else {
			defer s.rdb.Del(context.Background(), lockKey)
		}
	}

	first, err := s.FirstAdmission(ctx, mbr.ID, now)
	if err != nil {
		return nil, errutil.Internal("failed to check prior admission", errutil.WithErr(err))
	}
	if first != nil {
		ts := first.Timestamp
		return &ScanResult{
			Outcome:    OutcomeAlreadyAdmittedDay,
			Reason:     "already admitted today",
			Member:     summarize(mbr),
			AdmittedAt: &ts,
		}, nil
	}

	meta, _ := json.Marshal(map[string]string{
		"plan_id":   current.PlanID,
		"plan_name": planName,
	})

	entry := &AccessLogEntry{
		ID:           s.node.Generate().String(),
		MemberID:     mbr.ID,
		MembershipID: &current.ID,
		Timestamp:    now.UTC(),
		DayKey:       dayKey,
		Status:       Allowed,
		Metadata:     meta,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Rejected by the partial unique index: another scan won the
			// race between our check and this insert.
			return s.alreadyAdmittedResult(ctx, mbr, current, now)
		}
		return nil, errutil.Internal("failed to write ledger entry", errutil.WithErr(err))
	}

	stats, err := s.Stats(ctx, mbr.ID, now)
	if err != nil {
		zapLog.Warn("failed to compute admission stats", zap.Error(err))
	}

	return &ScanResult{
		Outcome:       OutcomeAdmitted,
		Admitted:      true,
		Member:        summarize(mbr),
		PlanName:      planName,
		DaysRemaining: s.memberships.Engine().DaysRemaining(current, today),
		Stats:         stats,
		Entry:         entry,
	}, nil
}

func (s *Service) alreadyAdmittedResult(ctx context.Context, mbr *member.Member, current *membership.Membership, now time.Time) (*ScanResult, error) {
	res := &ScanResult{
		Outcome: OutcomeAlreadyAdmittedDay,
		Reason:  "already admitted today",
		Member:  summarize(mbr),
	}

	if first, err := s.FirstAdmission(ctx, mbr.ID, now); err == nil && first != nil {
		ts := first.Timestamp
		res.AdmittedAt = &ts
	}

	return res, nil
}

func (s *Service) logDenied(ctx context.Context, memberID string, membershipID *string, now time.Time, reason string, metadata datatypes.JSON) error {
	entry := &AccessLogEntry{
		ID:           s.node.Generate().String(),
		MemberID:     memberID,
		MembershipID: membershipID,
		Timestamp:    now.UTC(),
		DayKey:       clock.DayKey(now, s.clk.Location()),
		Status:       Denied,
		DenialReason: reason,
		Metadata:     metadata,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return errutil.Internal("failed to write ledger entry", errutil.WithErr(err))
	}
	return nil
}
