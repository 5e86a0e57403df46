package postgres

import (
	"context"
	"errors"
	"fmt"

	"lexpay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EventRepo implements ports.TransactionEventRepository.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Append inserts an event. A provider event id already on file makes the
// insert a no-op and Append reports false.
func (r *EventRepo) Append(ctx context.Context, tx pgx.Tx, ev *domain.TransactionEvent) (bool, error) {
	query := `INSERT INTO transaction_events (transaction_id, kind, provider_event_id, provider_status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider_event_id) WHERE provider_event_id IS NOT NULL DO NOTHING
		RETURNING id`

	err := tx.QueryRow(ctx, query,
		ev.TransactionID, string(ev.Kind), ev.ProviderEventID, ev.ProviderStatus, ev.Payload, ev.CreatedAt,
	).Scan(&ev.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("append transaction event: %w", err)
	}
	return true, nil
}

// ListByTransaction returns a transaction's events in insertion order.
func (r *EventRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.TransactionEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, transaction_id, kind, provider_event_id, provider_status, payload, created_at
		 FROM transaction_events
		 WHERE transaction_id = $1
		 ORDER BY id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list transaction events: %w", err)
	}
	defer rows.Close()

	var events []domain.TransactionEvent
	for rows.Next() {
		var (
			ev   domain.TransactionEvent
			kind string
		)
		if err := rows.Scan(
			&ev.ID, &ev.TransactionID, &kind, &ev.ProviderEventID, &ev.ProviderStatus, &ev.Payload, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction event: %w", err)
		}
		ev.Kind = domain.EventKind(kind)
		events = append(events, ev)
	}
	return events, rows.Err()
}
