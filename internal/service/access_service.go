package service

import (
	"context"
	"fmt"
	"time"

	"lexpay/internal/core/domain"
	"lexpay/internal/core/ports"
	"lexpay/pkg/apperror"
	"lexpay/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// AccessServiceImpl implements ports.AccessService.
type AccessServiceImpl struct {
	grants ports.GrantRepository
	log    zerolog.Logger
	now    func() time.Time
}

// NewAccessService creates a new AccessServiceImpl.
func NewAccessService(grants ports.GrantRepository, log zerolog.Logger) *AccessServiceImpl {
	return &AccessServiceImpl{
		grants: grants,
		log:    logger.Component(log, "access"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Grant records access inside the caller's database transaction. An
// existing active grant makes it a no-op, unless that grant has lapsed,
// in which case it is revoked and replaced.
func (s *AccessServiceImpl) Grant(ctx context.Context, tx pgx.Tx, req ports.GrantRequest) (bool, error) {
	now := s.now()
	g := &domain.AccessGrant{
		ID:                  uuid.New(),
		Buyer:               req.Buyer,
		DocumentType:        req.DocumentType,
		SourceTransactionID: req.SourceTransactionID,
		Status:              domain.GrantStatusActive,
		GrantedAt:           now,
		ExpiresAt:           req.ExpiresAt,
	}

	inserted, err := s.grants.Insert(ctx, tx, g)
	if err != nil {
		return false, err
	}
	if inserted {
		s.log.Info().
			Str("grant_id", g.ID.String()).
			Str("document_type", g.DocumentType).
			Str("tx_id", req.SourceTransactionID.String()).
			Msg("access granted")
		return true, nil
	}

	existing, err := s.grants.GetActive(ctx, req.Buyer, req.DocumentType)
	if err != nil {
		return false, err
	}
	if existing == nil || !existing.IsExpired(now) {
		s.log.Info().
			Str("document_type", req.DocumentType).
			Str("tx_id", req.SourceTransactionID.String()).
			Msg("active grant already exists, grant is a no-op")
		return false, nil
	}

	if _, err := s.grants.Revoke(ctx, existing.ID, domain.RevokeReasonExpired, now); err != nil {
		return false, err
	}
	inserted, err = s.grants.Insert(ctx, tx, g)
	if err != nil {
		return false, err
	}
	if inserted {
		s.log.Info().
			Str("grant_id", g.ID.String()).
			Str("replaces", existing.ID.String()).
			Str("document_type", g.DocumentType).
			Msg("lapsed grant renewed")
	}
	return inserted, nil
}

// HasAccess reports whether the buyer holds an active, unexpired grant.
// A lapsed grant found here is revoked on the spot.
func (s *AccessServiceImpl) HasAccess(ctx context.Context, buyer domain.BuyerIdentity, documentType string) (bool, error) {
	g, err := s.grants.GetActive(ctx, buyer, documentType)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("get active grant: %w", err))
	}
	if g == nil {
		return false, nil
	}
	now := s.now()
	if g.IsExpired(now) {
		if _, err := s.grants.Revoke(ctx, g.ID, domain.RevokeReasonExpired, now); err != nil {
			s.log.Warn().Err(err).Str("grant_id", g.ID.String()).Msg("failed to revoke lapsed grant")
		}
		return false, nil
	}
	return true, nil
}

// Revoke ends the buyer's active grant for a document.
func (s *AccessServiceImpl) Revoke(ctx context.Context, buyer domain.BuyerIdentity, documentType, reason string) error {
	g, err := s.grants.GetActive(ctx, buyer, documentType)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get active grant: %w", err))
	}
	if g == nil {
		return apperror.ErrNotFound("access grant")
	}
	if _, err := s.grants.Revoke(ctx, g.ID, reason, s.now()); err != nil {
		return apperror.InternalError(err)
	}
	s.log.Info().
		Str("grant_id", g.ID.String()).
		Str("document_type", documentType).
		Str("reason", reason).
		Msg("access revoked")
	return nil
}

// ListForBuyer returns the buyer's library, including revoked grants.
func (s *AccessServiceImpl) ListForBuyer(ctx context.Context, buyer domain.BuyerIdentity) ([]domain.AccessGrant, error) {
	grants, err := s.grants.ListByBuyer(ctx, buyer)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return grants, nil
}

// RevokeExpired revokes every lapsed grant.
func (s *AccessServiceImpl) RevokeExpired(ctx context.Context) (int64, error) {
	n, err := s.grants.RevokeExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("count", n).Msg("expired grants revoked")
	}
	return n, nil
}
