package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lexpay/internal/core/domain"
	"lexpay/internal/core/ports"
	"lexpay/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupAccessService(t *testing.T) (*AccessServiceImpl, *mocks.MockGrantRepository, time.Time) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockGrantRepository(ctrl)
	svc := NewAccessService(repo, zerolog.Nop())
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, repo, now
}

func TestAccessService_Grant_Inserts(t *testing.T) {
	svc, repo, now := setupAccessService(t)
	ctx := context.Background()
	tx := &mockTx{}
	buyer, _ := domain.AccountBuyer("uid-1")
	txID := uuid.New()

	repo.EXPECT().Insert(ctx, tx, gomock.Any()).DoAndReturn(func(_ context.Context, _ pgx.Tx, g *domain.AccessGrant) (bool, error) {
		assert.Equal(t, buyer, g.Buyer)
		assert.Equal(t, "civil_code", g.DocumentType)
		assert.Equal(t, txID, g.SourceTransactionID)
		assert.Equal(t, domain.GrantStatusActive, g.Status)
		assert.Equal(t, now, g.GrantedAt)
		return true, nil
	})

	granted, err := svc.Grant(ctx, tx, ports.GrantRequest{Buyer: buyer, DocumentType: "civil_code", SourceTransactionID: txID})
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestAccessService_Grant_ExistingActiveIsNoop(t *testing.T) {
	svc, repo, now := setupAccessService(t)
	ctx := context.Background()
	tx := &mockTx{}
	buyer, _ := domain.AccountBuyer("uid-1")
	later := now.Add(time.Hour)

	repo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(false, nil)
	repo.EXPECT().GetActive(ctx, buyer, "civil_code").Return(&domain.AccessGrant{
		ID: uuid.New(), Status: domain.GrantStatusActive, ExpiresAt: &later,
	}, nil)

	granted, err := svc.Grant(ctx, tx, ports.GrantRequest{Buyer: buyer, DocumentType: "civil_code", SourceTransactionID: uuid.New()})
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestAccessService_Grant_RenewsLapsedGrant(t *testing.T) {
	svc, repo, now := setupAccessService(t)
	ctx := context.Background()
	tx := &mockTx{}
	buyer, _ := domain.AccountBuyer("uid-1")
	lapsed := now.Add(-time.Minute)
	old := &domain.AccessGrant{ID: uuid.New(), Status: domain.GrantStatusActive, ExpiresAt: &lapsed}
	next := now.Add(365 * 24 * time.Hour)

	first := repo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(false, nil)
	repo.EXPECT().GetActive(ctx, buyer, "all_codes_annual").Return(old, nil)
	repo.EXPECT().Revoke(ctx, old.ID, domain.RevokeReasonExpired, now).Return(true, nil)
	repo.EXPECT().Insert(ctx, tx, gomock.Any()).DoAndReturn(func(_ context.Context, _ pgx.Tx, g *domain.AccessGrant) (bool, error) {
		assert.Equal(t, next, *g.ExpiresAt)
		return true, nil
	}).After(first)

	granted, err := svc.Grant(ctx, tx, ports.GrantRequest{
		Buyer: buyer, DocumentType: "all_codes_annual", SourceTransactionID: uuid.New(), ExpiresAt: &next,
	})
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestAccessService_Grant_InsertError(t *testing.T) {
	svc, repo, _ := setupAccessService(t)
	ctx := context.Background()
	tx := &mockTx{}

	repo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(false, errors.New("db down"))

	_, err := svc.Grant(ctx, tx, ports.GrantRequest{DocumentType: "civil_code"})
	assert.ErrorContains(t, err, "db down")
}

func TestAccessService_HasAccess(t *testing.T) {
	ctx := context.Background()
	buyer, _ := domain.GuestBuyer("a@b.cm")

	t.Run("no grant", func(t *testing.T) {
		svc, repo, _ := setupAccessService(t)
		repo.EXPECT().GetActive(ctx, buyer, "penal_code").Return(nil, nil)

		ok, err := svc.HasAccess(ctx, buyer, "penal_code")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("permanent grant", func(t *testing.T) {
		svc, repo, _ := setupAccessService(t)
		repo.EXPECT().GetActive(ctx, buyer, "penal_code").Return(&domain.AccessGrant{ID: uuid.New(), Status: domain.GrantStatusActive}, nil)

		ok, err := svc.HasAccess(ctx, buyer, "penal_code")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("lapsed grant is revoked lazily", func(t *testing.T) {
		svc, repo, now := setupAccessService(t)
		past := now.Add(-time.Second)
		g := &domain.AccessGrant{ID: uuid.New(), Status: domain.GrantStatusActive, ExpiresAt: &past}
		repo.EXPECT().GetActive(ctx, buyer, "penal_code").Return(g, nil)
		repo.EXPECT().Revoke(ctx, g.ID, domain.RevokeReasonExpired, now).Return(false, errors.New("ignored"))

		ok, err := svc.HasAccess(ctx, buyer, "penal_code")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("repository error", func(t *testing.T) {
		svc, repo, _ := setupAccessService(t)
		repo.EXPECT().GetActive(ctx, buyer, "penal_code").Return(nil, errors.New("boom"))

		_, err := svc.HasAccess(ctx, buyer, "penal_code")
		assertAppError(t, err, "SYS_001")
	})
}

func TestAccessService_Revoke(t *testing.T) {
	ctx := context.Background()
	buyer, _ := domain.AccountBuyer("uid-9")

	t.Run("revokes the active grant", func(t *testing.T) {
		svc, repo, now := setupAccessService(t)
		g := &domain.AccessGrant{ID: uuid.New(), Status: domain.GrantStatusActive}
		repo.EXPECT().GetActive(ctx, buyer, "constitution").Return(g, nil)
		repo.EXPECT().Revoke(ctx, g.ID, "refunded", now).Return(true, nil)

		require.NoError(t, svc.Revoke(ctx, buyer, "constitution", "refunded"))
	})

	t.Run("nothing to revoke", func(t *testing.T) {
		svc, repo, _ := setupAccessService(t)
		repo.EXPECT().GetActive(ctx, buyer, "constitution").Return(nil, nil)

		err := svc.Revoke(ctx, buyer, "constitution", "refunded")
		assertAppError(t, err, "PAY_004")
	})
}

func TestAccessService_ListAndRevokeExpired(t *testing.T) {
	svc, repo, now := setupAccessService(t)
	ctx := context.Background()
	buyer, _ := domain.AccountBuyer("uid-9")

	repo.EXPECT().ListByBuyer(ctx, buyer).Return([]domain.AccessGrant{{ID: uuid.New()}, {ID: uuid.New()}}, nil)
	grants, err := svc.ListForBuyer(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, grants, 2)

	repo.EXPECT().RevokeExpired(ctx, now).Return(int64(3), nil)
	n, err := svc.RevokeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
