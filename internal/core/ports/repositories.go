package ports

import (
	"context"
	"time"

	"lexpay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepository defines persistence operations for purchase transactions.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	GetByGatewayReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.Transaction, error)
	// LockPair serializes writers for one (buyer, document) pair until tx ends.
	LockPair(ctx context.Context, tx pgx.Tx, pairKey string) error
	ListOpenForUpdate(ctx context.Context, tx pgx.Tx, buyer domain.BuyerIdentity, documentType string) ([]domain.Transaction, error)
	Update(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
}

// TransactionEventRepository stores the append-only gateway event log.
type TransactionEventRepository interface {
	// Append returns false when an event with the same provider event id already exists.
	Append(ctx context.Context, tx pgx.Tx, event *domain.TransactionEvent) (bool, error)
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.TransactionEvent, error)
}

// GrantRepository defines persistence for access grants.
type GrantRepository interface {
	// Insert returns false when an active grant already exists for the pair.
	Insert(ctx context.Context, tx pgx.Tx, grant *domain.AccessGrant) (bool, error)
	GetActive(ctx context.Context, buyer domain.BuyerIdentity, documentType string) (*domain.AccessGrant, error)
	ListByBuyer(ctx context.Context, buyer domain.BuyerIdentity) ([]domain.AccessGrant, error)
	Revoke(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
	RevokeExpired(ctx context.Context, now time.Time) (int64, error)
}

// IdempotencyRepository persists purchase idempotency keys (DB backup of the cache).
type IdempotencyRepository interface {
	// Create stores record, replacing a record for the same key only when
	// that one was created at or before staleBefore.
	Create(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord, staleBefore time.Time) error
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
