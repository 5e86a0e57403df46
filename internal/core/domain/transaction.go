package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus represents the lifecycle state of a purchase attempt.
type TransactionStatus string

const (
	TransactionStatusPending               TransactionStatus = "pending"
	TransactionStatusProcessing            TransactionStatus = "processing"
	TransactionStatusAwaitingAuthorization TransactionStatus = "awaiting_authorization"
	TransactionStatusCompleted             TransactionStatus = "completed"
	TransactionStatusFailed                TransactionStatus = "failed"
	TransactionStatusCancelled             TransactionStatus = "cancelled"
)

var (
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrReferenceImmutable = errors.New("gateway reference already set")
)

// statusRank orders the non-terminal states. Terminal states share the top rank.
var statusRank = map[TransactionStatus]int{
	TransactionStatusPending:               0,
	TransactionStatusProcessing:            1,
	TransactionStatusAwaitingAuthorization: 2,
	TransactionStatusCompleted:             3,
	TransactionStatusFailed:                3,
	TransactionStatusCancelled:             3,
}

// Valid reports whether s is one of the known statuses.
func (s TransactionStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminal returns true for completed, failed and cancelled.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted ||
		s == TransactionStatusFailed ||
		s == TransactionStatusCancelled
}

// CanTransition reports whether moving from s to next is allowed.
// Terminal states have no outgoing transitions; non-terminal states only move forward.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	if !s.Valid() || !next.Valid() || s.IsTerminal() {
		return false
	}
	if next.IsTerminal() {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// OpenStatuses lists every non-terminal status.
func OpenStatuses() []TransactionStatus {
	return []TransactionStatus{
		TransactionStatusPending,
		TransactionStatusProcessing,
		TransactionStatusAwaitingAuthorization,
	}
}

// Contact is the optional contact information captured with a purchase.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Transaction is one purchase attempt for one document by one buyer.
type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	Buyer            BuyerIdentity     `json:"buyer"`
	DocumentType     string            `json:"document_type"`
	Amount           int64             `json:"amount"` // XAF has no minor unit
	Currency         string            `json:"currency"`
	Status           TransactionStatus `json:"status"`
	GatewayReference *string           `json:"gateway_reference,omitempty"`
	PaymentURL       *string           `json:"payment_url,omitempty"`
	DialCode         *string           `json:"dial_code,omitempty"`
	PhoneNumber      *string           `json:"-"`
	Network          *MobileNetwork    `json:"network,omitempty"`
	FailureReason    *string           `json:"failure_reason,omitempty"`
	CancelReason     *string           `json:"cancel_reason,omitempty"`
	Contact          Contact           `json:"contact"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// Transition moves the transaction to next, stamping updated_at and,
// for completions, completed_at.
func (t *Transaction) Transition(next TransactionStatus, now time.Time) error {
	if !t.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	t.Status = next
	t.UpdatedAt = now
	if next == TransactionStatusCompleted {
		t.CompletedAt = &now
	}
	return nil
}

// Fail transitions to failed and keeps reason verbatim.
func (t *Transaction) Fail(reason string, now time.Time) error {
	if err := t.Transition(TransactionStatusFailed, now); err != nil {
		return err
	}
	t.FailureReason = &reason
	return nil
}

// Cancel transitions to cancelled and records why.
func (t *Transaction) Cancel(reason string, now time.Time) error {
	if err := t.Transition(TransactionStatusCancelled, now); err != nil {
		return err
	}
	t.CancelReason = &reason
	return nil
}

// SetGatewayReference records the provider reference. Setting the same value
// twice is allowed; changing it is not.
func (t *Transaction) SetGatewayReference(ref string) error {
	if t.GatewayReference != nil {
		if *t.GatewayReference == ref {
			return nil
		}
		return ErrReferenceImmutable
	}
	t.GatewayReference = &ref
	return nil
}
