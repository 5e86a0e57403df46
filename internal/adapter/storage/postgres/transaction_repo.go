package postgres

import (
	"context"
	"errors"
	"fmt"

	"lexpay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, buyer_kind, buyer_ref, document_type, amount, currency, status,
	gateway_reference, payment_url, dial_code, phone_number, network, failure_reason, cancel_reason,
	contact, created_at, updated_at, completed_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := tx.Exec(ctx, query,
		t.ID, string(t.Buyer.Kind), t.Buyer.Ref, t.DocumentType, t.Amount, t.Currency, string(t.Status),
		t.GatewayReference, t.PaymentURL, t.DialCode, t.PhoneNumber, networkValue(t.Network),
		t.FailureReason, t.CancelReason, t.Contact, t.CreatedAt, t.UpdatedAt, t.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID without locking it.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a transaction with a row-level lock (SELECT ... FOR UPDATE).
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(tx.QueryRow(ctx, query, id))
}

// GetByGatewayReferenceForUpdate locks the transaction the provider knows as reference.
func (r *TransactionRepo) GetByGatewayReferenceForUpdate(ctx context.Context, tx pgx.Tx, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE gateway_reference = $1 FOR UPDATE`
	return scanTransaction(tx.QueryRow(ctx, query, reference))
}

// LockPair takes a transaction-scoped advisory lock on the pair key. Two
// purchases for the same pair serialize here even when no row exists yet.
func (r *TransactionRepo) LockPair(ctx context.Context, tx pgx.Tx, pairKey string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, pairKey); err != nil {
		return fmt.Errorf("lock pair %q: %w", pairKey, err)
	}
	return nil
}

// ListOpenForUpdate locks every non-terminal transaction of the pair.
func (r *TransactionRepo) ListOpenForUpdate(ctx context.Context, tx pgx.Tx, buyer domain.BuyerIdentity, documentType string) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE buyer_kind = $1 AND buyer_ref = $2 AND document_type = $3
		AND status IN ('pending', 'processing', 'awaiting_authorization')
		ORDER BY created_at
		FOR UPDATE`

	rows, err := tx.Query(ctx, query, string(buyer.Kind), buyer.Ref, documentType)
	if err != nil {
		return nil, fmt.Errorf("list open transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open transactions: %w", err)
	}
	return txns, nil
}

// Update writes the mutable columns of a transaction. Identity, amount and
// creation time never change after insert.
func (r *TransactionRepo) Update(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `UPDATE transactions SET status = $1, gateway_reference = $2, payment_url = $3,
		dial_code = $4, phone_number = $5, network = $6, failure_reason = $7, cancel_reason = $8,
		updated_at = $9, completed_at = $10
		WHERE id = $11`

	tag, err := tx.Exec(ctx, query,
		string(t.Status), t.GatewayReference, t.PaymentURL, t.DialCode, t.PhoneNumber,
		networkValue(t.Network), t.FailureReason, t.CancelReason, t.UpdatedAt, t.CompletedAt,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", t.ID)
	}
	return nil
}

// scanTransaction scans one row; a missing row yields (nil, nil).
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t         domain.Transaction
		buyerKind string
		status    string
		network   *string
	)
	err := row.Scan(
		&t.ID, &buyerKind, &t.Buyer.Ref, &t.DocumentType, &t.Amount, &t.Currency, &status,
		&t.GatewayReference, &t.PaymentURL, &t.DialCode, &t.PhoneNumber, &network,
		&t.FailureReason, &t.CancelReason, &t.Contact, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.Buyer.Kind = domain.BuyerKind(buyerKind)
	t.Status = domain.TransactionStatus(status)
	if network != nil {
		n := domain.MobileNetwork(*network)
		t.Network = &n
	}
	return &t, nil
}

func networkValue(n *domain.MobileNetwork) *string {
	if n == nil {
		return nil
	}
	s := string(*n)
	return &s
}
