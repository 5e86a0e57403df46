// Package memory is a process-local storage driver with the same contracts
// as the PostgreSQL repositories. Transactions are fully serialized: Begin
// blocks until the previous transaction commits or rolls back.
package memory

import (
	"context"
	"errors"
	"sync"

	"lexpay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrForeignTx       = errors.New("memory: transaction was not started by this store")
	ErrDuplicateOpen   = errors.New("memory: an open transaction already exists for this pair")
	ErrDuplicateRecord = errors.New("memory: duplicate key")
	ErrTerminalRow     = errors.New("memory: transaction is terminal")
)

// Store holds every table in memory.
type Store struct {
	sem chan struct{}

	mu           sync.RWMutex
	transactions map[uuid.UUID]domain.Transaction
	references   map[string]uuid.UUID
	events       []domain.TransactionEvent
	eventIDs     map[string]struct{}
	nextEventID  int64
	grants       map[uuid.UUID]domain.AccessGrant
	idempotency  map[string]domain.IdempotencyRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sem:          make(chan struct{}, 1),
		transactions: make(map[uuid.UUID]domain.Transaction),
		references:   make(map[string]uuid.UUID),
		eventIDs:     make(map[string]struct{}),
		grants:       make(map[uuid.UUID]domain.AccessGrant),
		idempotency:  make(map[string]domain.IdempotencyRecord),
	}
}

// Begin waits for exclusive write access and returns a transaction handle.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.sem <- struct{}{}:
		return &memTx{store: s}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Name returns the dependency name.
func (s *Store) Name() string {
	return "memory"
}

// Transactions returns the transaction repository view.
func (s *Store) Transactions() *TransactionRepo { return &TransactionRepo{store: s} }

// Events returns the event log repository view.
func (s *Store) Events() *EventRepo { return &EventRepo{store: s} }

// Grants returns the access grant repository view.
func (s *Store) Grants() *GrantRepo { return &GrantRepo{store: s} }

// Idempotency returns the idempotency repository view.
func (s *Store) Idempotency() *IdempotencyRepo { return &IdempotencyRepo{store: s} }

// memTx satisfies pgx.Tx for the methods the services call. Writes go
// straight to the store and are undone in reverse order on Rollback.
type memTx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	<-t.store.sem
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.undo = nil
	<-t.store.sem
	return nil
}

func (t *memTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func asMemTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt.done {
		return nil, ErrForeignTx
	}
	return mt, nil
}
