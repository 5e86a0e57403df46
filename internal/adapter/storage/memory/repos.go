package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"lexpay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	store *Store
}

func (r *TransactionRepo) Create(_ context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[t.ID]; ok {
		return fmt.Errorf("insert transaction %s: %w", t.ID, ErrDuplicateRecord)
	}
	if !t.IsTerminal() {
		for _, existing := range s.transactions {
			if !existing.IsTerminal() && existing.Buyer == t.Buyer && existing.DocumentType == t.DocumentType {
				return fmt.Errorf("insert transaction %s: %w", t.ID, ErrDuplicateOpen)
			}
		}
	}
	if t.GatewayReference != nil {
		if _, ok := s.references[*t.GatewayReference]; ok {
			return fmt.Errorf("insert transaction %s: %w", t.ID, ErrDuplicateRecord)
		}
		s.references[*t.GatewayReference] = t.ID
	}
	s.transactions[t.ID] = *t

	id, ref := t.ID, t.GatewayReference
	mt.onRollback(func() {
		delete(s.transactions, id)
		if ref != nil {
			delete(s.references, *ref)
		}
	})
	return nil
}

func (r *TransactionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.get(id), nil
}

func (r *TransactionRepo) GetByIDForUpdate(_ context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	if _, err := asMemTx(tx); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.get(id), nil
}

func (r *TransactionRepo) GetByGatewayReferenceForUpdate(_ context.Context, tx pgx.Tx, reference string) (*domain.Transaction, error) {
	if _, err := asMemTx(tx); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	id, ok := r.store.references[reference]
	if !ok {
		return nil, nil
	}
	return r.get(id), nil
}

// LockPair is a no-op: the store already runs one transaction at a time.
func (r *TransactionRepo) LockPair(_ context.Context, tx pgx.Tx, _ string) error {
	_, err := asMemTx(tx)
	return err
}

func (r *TransactionRepo) ListOpenForUpdate(_ context.Context, tx pgx.Tx, buyer domain.BuyerIdentity, documentType string) ([]domain.Transaction, error) {
	if _, err := asMemTx(tx); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var open []domain.Transaction
	for _, t := range r.store.transactions {
		if !t.IsTerminal() && t.Buyer == buyer && t.DocumentType == documentType {
			open = append(open, t)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.Before(open[j].CreatedAt) })
	return open, nil
}

// Update applies the same guards as the transactions_guard trigger.
func (r *TransactionRepo) Update(_ context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.transactions[t.ID]
	if !ok {
		return fmt.Errorf("transaction not found: %s", t.ID)
	}
	if prev.IsTerminal() && prev.Status != t.Status {
		return fmt.Errorf("update transaction %s: %w", t.ID, ErrTerminalRow)
	}
	if prev.GatewayReference != nil && (t.GatewayReference == nil || *t.GatewayReference != *prev.GatewayReference) {
		return fmt.Errorf("update transaction %s: %w", t.ID, domain.ErrReferenceImmutable)
	}
	if prev.GatewayReference == nil && t.GatewayReference != nil {
		if _, taken := s.references[*t.GatewayReference]; taken {
			return fmt.Errorf("update transaction %s: %w", t.ID, ErrDuplicateRecord)
		}
		ref := *t.GatewayReference
		s.references[ref] = t.ID
		mt.onRollback(func() { delete(s.references, ref) })
	}

	next := *t
	next.Buyer, next.DocumentType, next.Amount = prev.Buyer, prev.DocumentType, prev.Amount
	next.Currency, next.Contact, next.CreatedAt = prev.Currency, prev.Contact, prev.CreatedAt
	s.transactions[t.ID] = next
	mt.onRollback(func() { s.transactions[prev.ID] = prev })
	return nil
}

func (r *TransactionRepo) get(id uuid.UUID) *domain.Transaction {
	t, ok := r.store.transactions[id]
	if !ok {
		return nil
	}
	return &t
}

// EventRepo implements ports.TransactionEventRepository.
type EventRepo struct {
	store *Store
}

func (r *EventRepo) Append(_ context.Context, tx pgx.Tx, ev *domain.TransactionEvent) (bool, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return false, err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[ev.TransactionID]; !ok {
		return false, fmt.Errorf("append event: transaction not found: %s", ev.TransactionID)
	}
	if ev.ProviderEventID != nil {
		if _, dup := s.eventIDs[*ev.ProviderEventID]; dup {
			return false, nil
		}
		pid := *ev.ProviderEventID
		s.eventIDs[pid] = struct{}{}
		mt.onRollback(func() { delete(s.eventIDs, pid) })
	}
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events = append(s.events, *ev)

	n := len(s.events) - 1
	mt.onRollback(func() { s.events = s.events[:n] })
	return true, nil
}

func (r *EventRepo) ListByTransaction(_ context.Context, transactionID uuid.UUID) ([]domain.TransactionEvent, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var events []domain.TransactionEvent
	for _, ev := range r.store.events {
		if ev.TransactionID == transactionID {
			events = append(events, ev)
		}
	}
	return events, nil
}

// GrantRepo implements ports.GrantRepository.
type GrantRepo struct {
	store *Store
}

func (r *GrantRepo) Insert(_ context.Context, tx pgx.Tx, g *domain.AccessGrant) (bool, error) {
	mt, err := asMemTx(tx)
	if err != nil {
		return false, err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.active(g.Buyer, g.DocumentType) != nil {
		return false, nil
	}
	if _, ok := s.grants[g.ID]; ok {
		return false, fmt.Errorf("insert access grant %s: %w", g.ID, ErrDuplicateRecord)
	}
	s.grants[g.ID] = *g
	id := g.ID
	mt.onRollback(func() { delete(s.grants, id) })
	return true, nil
}

func (r *GrantRepo) GetActive(_ context.Context, buyer domain.BuyerIdentity, documentType string) (*domain.AccessGrant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.active(buyer, documentType), nil
}

func (r *GrantRepo) ListByBuyer(_ context.Context, buyer domain.BuyerIdentity) ([]domain.AccessGrant, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var grants []domain.AccessGrant
	for _, g := range r.store.grants {
		if g.Buyer == buyer {
			grants = append(grants, g)
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].GrantedAt.After(grants[j].GrantedAt) })
	return grants, nil
}

func (r *GrantRepo) Revoke(_ context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	g, ok := r.store.grants[id]
	if !ok || g.Status != domain.GrantStatusActive {
		return false, nil
	}
	revoke(&g, reason, at)
	r.store.grants[id] = g
	return true, nil
}

func (r *GrantRepo) RevokeExpired(_ context.Context, now time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var n int64
	for id, g := range r.store.grants {
		if g.Status == domain.GrantStatusActive && g.IsExpired(now) {
			revoke(&g, domain.RevokeReasonExpired, now)
			r.store.grants[id] = g
			n++
		}
	}
	return n, nil
}

func (r *GrantRepo) active(buyer domain.BuyerIdentity, documentType string) *domain.AccessGrant {
	for _, g := range r.store.grants {
		if g.Status == domain.GrantStatusActive && g.Buyer == buyer && g.DocumentType == documentType {
			return &g
		}
	}
	return nil
}

func revoke(g *domain.AccessGrant, reason string, at time.Time) {
	g.Status = domain.GrantStatusRevoked
	g.RevokedAt = &at
	g.RevokeReason = &reason
}

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	store *Store
}

func (r *IdempotencyRepo) Create(_ context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord, staleBefore time.Time) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key
	prev, ok := s.idempotency[key]
	if ok && prev.CreatedAt.After(staleBefore) {
		return fmt.Errorf("insert idempotency key %q: %w", key, ErrDuplicateRecord)
	}
	s.idempotency[key] = *rec
	mt.onRollback(func() {
		if ok {
			s.idempotency[key] = prev
			return
		}
		delete(s.idempotency, key)
	})
	return nil
}

func (r *IdempotencyRepo) Get(_ context.Context, key string) (*domain.IdempotencyRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.store.idempotency[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}
