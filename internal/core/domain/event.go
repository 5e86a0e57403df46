package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind labels an entry of a transaction's gateway event log.
type EventKind string

const (
	EventLinkCreated    EventKind = "link_created"
	EventLinkFailed     EventKind = "link_failed"
	EventChargeResponse EventKind = "charge_response"
	EventChargeFailed   EventKind = "charge_failed"
	EventWebhook        EventKind = "webhook"
	EventWebhookReplay  EventKind = "webhook_replay"
)

// TransactionEvent is one append-only entry of raw gateway traffic for a transaction.
type TransactionEvent struct {
	ID              int64     `json:"id"`
	TransactionID   uuid.UUID `json:"transaction_id"`
	Kind            EventKind `json:"kind"`
	ProviderEventID *string   `json:"provider_event_id,omitempty"`
	ProviderStatus  *string   `json:"provider_status,omitempty"`
	Payload         []byte    `json:"payload"` // raw JSON as received or returned
	CreatedAt       time.Time `json:"created_at"`
}

// NewTransactionEvent builds an event; empty strings are stored as NULL.
func NewTransactionEvent(txID uuid.UUID, kind EventKind, providerEventID, providerStatus string, payload []byte) *TransactionEvent {
	ev := &TransactionEvent{
		TransactionID: txID,
		Kind:          kind,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
	if providerEventID != "" {
		ev.ProviderEventID = &providerEventID
	}
	if providerStatus != "" {
		ev.ProviderStatus = &providerStatus
	}
	return ev
}
