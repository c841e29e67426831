package member

import (
	"context"
	"fmt"
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

type seqMock struct {
	n int
}

func (s *seqMock) NextMemberCode(ctx context.Context) (string, error) {
	s.n++
	return fmt.Sprintf("M-%05d", s.n), nil
}

func (s *seqMock) NextReceiptCode(ctx context.Context) (string, error) {
	s.n++
	return fmt.Sprintf("R-%07d", s.n), nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Member{})
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node, Seq: &seqMock{}})
}

func registerTestMember(t *testing.T, svc *Service, nationalID, email string) *Member {
	t.Helper()

	m, err := svc.Register(context.Background(), &RegisterMemberRequest{
		NationalID: nationalID,
		FirstName:  "Ana",
		LastName:   "Rojas",
		Email:      email,
	})
	require.NoError(t, err)
	return m
}

func TestRegisterMember(t *testing.T) {
	svc := newTestService(t)

	m := registerTestMember(t, svc, "12.345.678-9", "ana@example.com")
	require.Equal(t, "M-00001", m.MemberCode)
	require.NotEmpty(t, m.QRToken)
	require.Equal(t, RoleMember, m.Role)
	require.False(t, m.IsActiveMember)
}

func TestRegisterMemberDuplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	registerTestMember(t, svc, "12.345.678-9", "ana@example.com")

	_, err := svc.Register(ctx, &RegisterMemberRequest{
		NationalID: "12.345.678-9",
		FirstName:  "Otra",
		LastName:   "Persona",
		Email:      "otra@example.com",
	})
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusConflict, be.Code)

	_, err = svc.Register(ctx, &RegisterMemberRequest{
		NationalID: "9.876.543-2",
		FirstName:  "Otra",
		LastName:   "Persona",
		Email:      "ana@example.com",
	})
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusConflict, be.Code)
}

func TestGetByCredential(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	m := registerTestMember(t, svc, "12.345.678-9", "ana@example.com")

	found, err := svc.GetByCredential(ctx, &Credential{
		MemberID:   m.ID,
		QRToken:    m.QRToken,
		NationalID: m.NationalID,
	})
	require.NoError(t, err)
	require.Equal(t, m.ID, found.ID)

	// Any single mismatched field yields the same opaque NotFound.
	mismatches := []*Credential{
		{MemberID: "999", QRToken: m.QRToken, NationalID: m.NationalID},
		{MemberID: m.ID, QRToken: "stale-token", NationalID: m.NationalID},
		{MemberID: m.ID, QRToken: m.QRToken, NationalID: "1-9"},
	}

	for _, cred := range mismatches {
		_, err := svc.GetByCredential(ctx, cred)
		var be errutil.BaseError
		require.ErrorAs(t, err, &be)
		require.Equal(t, errutil.StatusNotFound, be.Code)
		require.Equal(t, "member not found", be.Message)
	}
}

func TestReissueQRToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	m := registerTestMember(t, svc, "12.345.678-9", "ana@example.com")
	oldToken := m.QRToken

	rotated, err := svc.ReissueQRToken(ctx, m.ID)
	require.NoError(t, err)
	require.NotEqual(t, oldToken, rotated.QRToken)

	// The old triple no longer resolves.
	_, err = svc.GetByCredential(ctx, &Credential{
		MemberID:   m.ID,
		QRToken:    oldToken,
		NationalID: m.NationalID,
	})
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)

	// The rotated one does.
	found, err := svc.GetByCredential(ctx, &Credential{
		MemberID:   m.ID,
		QRToken:    rotated.QRToken,
		NationalID: m.NationalID,
	})
	require.NoError(t, err)
	require.Equal(t, m.ID, found.ID)
}
