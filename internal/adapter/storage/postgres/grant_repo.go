package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexpay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const grantColumns = `id, buyer_kind, buyer_ref, document_type, source_transaction_id, status,
	granted_at, expires_at, revoked_at, revoke_reason`

// GrantRepo implements ports.GrantRepository.
type GrantRepo struct {
	pool Pool
}

// NewGrantRepo creates a new GrantRepo.
func NewGrantRepo(pool Pool) *GrantRepo {
	return &GrantRepo{pool: pool}
}

// Insert adds an active grant inside tx. It reports false when the pair
// already holds an active grant.
func (r *GrantRepo) Insert(ctx context.Context, tx pgx.Tx, g *domain.AccessGrant) (bool, error) {
	query := `INSERT INTO access_grants (` + grantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (buyer_kind, buyer_ref, document_type) WHERE status = 'active' DO NOTHING
		RETURNING id`

	var id uuid.UUID
	err := tx.QueryRow(ctx, query,
		g.ID, string(g.Buyer.Kind), g.Buyer.Ref, g.DocumentType, g.SourceTransactionID, string(g.Status),
		g.GrantedAt, g.ExpiresAt, g.RevokedAt, g.RevokeReason,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert access grant: %w", err)
	}
	return true, nil
}

// GetActive returns the active grant for the pair, or nil.
func (r *GrantRepo) GetActive(ctx context.Context, buyer domain.BuyerIdentity, documentType string) (*domain.AccessGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM access_grants
		WHERE buyer_kind = $1 AND buyer_ref = $2 AND document_type = $3 AND status = 'active'`
	return scanGrant(r.pool.QueryRow(ctx, query, string(buyer.Kind), buyer.Ref, documentType))
}

// ListByBuyer returns every grant, active or revoked, newest first.
func (r *GrantRepo) ListByBuyer(ctx context.Context, buyer domain.BuyerIdentity) ([]domain.AccessGrant, error) {
	query := `SELECT ` + grantColumns + ` FROM access_grants
		WHERE buyer_kind = $1 AND buyer_ref = $2
		ORDER BY granted_at DESC`

	rows, err := r.pool.Query(ctx, query, string(buyer.Kind), buyer.Ref)
	if err != nil {
		return nil, fmt.Errorf("list access grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access grants: %w", err)
	}
	return grants, nil
}

// Revoke marks an active grant revoked. It reports false if the grant was
// not active anymore.
func (r *GrantRepo) Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE access_grants SET status = 'revoked', revoked_at = $1, revoke_reason = $2
		 WHERE id = $3 AND status = 'active'`, at, reason, id)
	if err != nil {
		return false, fmt.Errorf("revoke access grant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeExpired revokes every active grant whose expiry has passed.
func (r *GrantRepo) RevokeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE access_grants SET status = 'revoked', revoked_at = $1, revoke_reason = $2
		 WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1`,
		now, domain.RevokeReasonExpired)
	if err != nil {
		return 0, fmt.Errorf("revoke expired grants: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanGrant(row pgx.Row) (*domain.AccessGrant, error) {
	var (
		g         domain.AccessGrant
		buyerKind string
		status    string
	)
	err := row.Scan(
		&g.ID, &buyerKind, &g.Buyer.Ref, &g.DocumentType, &g.SourceTransactionID, &status,
		&g.GrantedAt, &g.ExpiresAt, &g.RevokedAt, &g.RevokeReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan access grant: %w", err)
	}
	g.Buyer.Kind = domain.BuyerKind(buyerKind)
	g.Status = domain.GrantStatus(status)
	return &g, nil
}
