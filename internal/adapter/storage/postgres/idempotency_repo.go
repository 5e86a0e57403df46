package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lexpay/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ErrIdempotencyKeyLive is returned when a key is still held by an unexpired record.
var ErrIdempotencyKeyLive = errors.New("idempotency key still live")

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create records which transaction a purchase key produced. An expired row
// for the same key is overwritten.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord, staleBefore time.Time) error {
	query := `
		INSERT INTO idempotency_keys (key, transaction_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET transaction_id = EXCLUDED.transaction_id, created_at = EXCLUDED.created_at
		WHERE idempotency_keys.created_at <= $4`

	tag, err := tx.Exec(ctx, query, rec.Key, rec.TransactionID, rec.CreatedAt, staleBefore)
	if err != nil {
		return fmt.Errorf("insert idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert idempotency key %q: %w", rec.Key, ErrIdempotencyKeyLive)
	}
	return nil
}

// Get fetches an idempotency record by key.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT key, transaction_id, created_at FROM idempotency_keys WHERE key = $1`

	rec := &domain.IdempotencyRecord{}
	err := r.pool.QueryRow(ctx, query, key).Scan(&rec.Key, &rec.TransactionID, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return rec, nil
}
