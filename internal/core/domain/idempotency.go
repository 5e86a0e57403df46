package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord maps a client supplied Idempotency-Key to the transaction it created.
type IdempotencyRecord struct {
	Key           string    `json:"key"` // Format: "<buyer key>:<client key>"
	TransactionID uuid.UUID `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Expired reports whether the record is older than ttl at now.
func (r *IdempotencyRecord) Expired(now time.Time, ttl time.Duration) bool {
	return !now.Before(r.CreatedAt.Add(ttl))
}

// BuildPurchaseIdempotencyKey scopes a client key to its buyer and document.
func BuildPurchaseIdempotencyKey(buyer BuyerIdentity, documentType, clientKey string) string {
	return buyer.Key() + ":" + documentType + ":" + clientKey
}
