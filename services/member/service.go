package member

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"gymgate/pkg/errutil"
	"gymgate/pkg/repository"
	"gymgate/pkg/sequence"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator
	repo repository.Repository[Member]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		seq:  p.Seq,
		repo: repository.ProvideStore[Member](p.DB),
	}
}

type RegisterMemberRequest struct {
	NationalID string     `json:"national_id" binding:"required"`
	FirstName  string     `json:"first_name" binding:"required"`
	LastName   string     `json:"last_name" binding:"required"`
	Email      string     `json:"email" binding:"required,email"`
	Phone      string     `json:"phone"`
	Birthdate  *time.Time `json:"birthdate"`
	Role       Role       `json:"role"`
}

func (s *Service) Register(ctx context.Context, req *RegisterMemberRequest) (*Member, error) {
	span := trace.SpanFromContext(ctx)

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	role := req.Role
	if role == "" {
		role = RoleMember
	}
	if role.String() == "" {
		return nil, errutil.ValidationFailed("unknown role")
	}

	exist, err := s.repo.FindOne(ctx, &Member{NationalID: req.NationalID})
	if err != nil {
		zapLog.Error("failed query member by national id", zap.Error(err))
		return nil, errutil.Internal("failed to check existing member", errutil.WithErr(err))
	}
	if exist != nil {
		return nil, errutil.Conflict("member already registered with this national id")
	}

	exist, err = s.repo.FindOne(ctx, &Member{Email: req.Email})
	if err != nil {
		zapLog.Error("failed query member by email", zap.Error(err))
		return nil, errutil.Internal("failed to check existing member", errutil.WithErr(err))
	}
	if exist != nil {
		return nil, errutil.Conflict("member already registered with this email")
	}

	code, err := s.seq.NextMemberCode(ctx)
	if err != nil {
		zapLog.Error("failed to generate member code", zap.Error(err))
		return nil, errutil.Internal("failed to register member", errutil.WithErr(err))
	}

	member := &Member{
		ID:         s.node.Generate().String(),
		MemberCode: code,
		NationalID: req.NationalID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Birthdate:  req.Birthdate,
		Role:       role,
		QRToken:    uuid.NewString(),
	}

	if err := s.repo.Create(ctx, member); err != nil {
		zapLog.Error("failed to create member", zap.Error(err))
		return nil, errutil.Internal("failed to register member", errutil.WithErr(err))
	}

	return member, nil
}

func (s *Service) Get(ctx context.Context, memberID string) (*Member, error) {
	member, err := s.repo.FindOne(ctx, &Member{ID: memberID})
	if err != nil {
		return nil, errutil.Internal("failed to get member", errutil.WithErr(err))
	}

	if member == nil {
		return nil, errutil.NotFound("member not found")
	}

	return member, nil
}

// GetByCredential requires the full triple to match one row. A miss on any
// field yields the same NotFound so a scanned code leaks nothing about
// which part was wrong.
func (s *Service) GetByCredential(ctx context.Context, cred *Credential) (*Member, error) {
	member, err := s.repo.FindOne(ctx, &Member{
		ID:         cred.MemberID,
		QRToken:    cred.QRToken,
		NationalID: cred.NationalID,
	})
	if err != nil {
		return nil, errutil.Internal("failed to get member", errutil.WithErr(err))
	}

	if member == nil {
		return nil, errutil.NotFound("member not found")
	}

	return member, nil
}

// ReissueQRToken rotates the member's QR secret. Cards printed with the old
// token stop scanning immediately.
func (s *Service) ReissueQRToken(ctx context.Context, memberID string) (*Member, error) {
	span := trace.SpanFromContext(ctx)

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	member, err := s.Get(ctx, memberID)
	if err != nil {
		return nil, err
	}

	member.QRToken = uuid.NewString()
	if err := s.repo.Update(ctx, member.ID, map[string]interface{}{
		"qr_token": member.QRToken,
	}); err != nil {
		zapLog.Error("failed to rotate qr token", zap.Error(err))
		return nil, errutil.Internal("failed to reissue qr token", errutil.WithErr(err))
	}

	zapLog.Info("qr token reissued", zap.String("member_id", member.ID))

	return member, nil
}

// Credential assembles the payload for card printing.
func (s *Service) CredentialFor(m *Member) (string, error) {
	return Credential{
		MemberID:   m.ID,
		QRToken:    m.QRToken,
		NationalID: m.NationalID,
	}.Encode()
}
