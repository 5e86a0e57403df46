package domain

import (
	"time"

	"github.com/google/uuid"
)

type GrantStatus string

const (
	GrantStatusActive  GrantStatus = "active"
	GrantStatusRevoked GrantStatus = "revoked"
)

// AccessGrant records that a buyer may view a document. Grants are revoked, never deleted.
type AccessGrant struct {
	ID                  uuid.UUID     `json:"id"`
	Buyer               BuyerIdentity `json:"buyer"`
	DocumentType        string        `json:"document_type"`
	SourceTransactionID uuid.UUID     `json:"source_transaction_id"`
	Status              GrantStatus   `json:"status"`
	GrantedAt           time.Time     `json:"granted_at"`
	ExpiresAt           *time.Time    `json:"expires_at,omitempty"`
	RevokedAt           *time.Time    `json:"revoked_at,omitempty"`
	RevokeReason        *string       `json:"revoke_reason,omitempty"`
}

// IsExpired reports whether the grant had an expiry that has passed at now.
func (g *AccessGrant) IsExpired(now time.Time) bool {
	return g.ExpiresAt != nil && !now.Before(*g.ExpiresAt)
}

// Usable reports whether the grant currently gives access.
func (g *AccessGrant) Usable(now time.Time) bool {
	return g.Status == GrantStatusActive && !g.IsExpired(now)
}

const RevokeReasonExpired = "expired"
