package ports

import (
	"context"
	"time"

	"lexpay/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Catalog resolves document identifiers to their price.
type Catalog interface {
	Lookup(documentType string) (domain.CatalogItem, error)
	List() []domain.CatalogItem
}

// GatewayClient talks to the mobile money provider.
type GatewayClient interface {
	CreatePaymentLink(ctx context.Context, transaction *domain.Transaction) (*domain.PaymentLink, error)
	InitiateCharge(ctx context.Context, transaction *domain.Transaction, phone string, network domain.MobileNetwork) (*domain.ChargeResult, error)
	VerifyCallback(payload []byte, signature string) bool
	ParseCallback(payload []byte) (*domain.CallbackEvent, error)
	CheckServiceHealth(ctx context.Context) domain.ServiceHealth
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// TokenService validates buyer bearer tokens.
type TokenService interface {
	Generate(subject string, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject string
	Role    string
}

const RoleSupport = "support"

// IdempotencyCache maps purchase idempotency keys to transaction ids. It is
// the fast path in front of IdempotencyRepository.
type IdempotencyCache interface {
	// Lookup reports the transaction remembered for key, if any.
	Lookup(ctx context.Context, key string) (uuid.UUID, bool, error)
	// Remember stores transactionID under key unless the key is already
	// taken. It reports whether this call set it.
	Remember(ctx context.Context, key string, transactionID uuid.UUID, ttl time.Duration) (bool, error)
}

// EventMarker remembers provider event ids already seen.
type EventMarker interface {
	// MarkSeen atomically records eventID. Returns true if it was not seen before.
	MarkSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// --- Service Ports (Business Logic) ---

// PurchaseService is the single entry point that mutates transactions.
type PurchaseService interface {
	StartPurchase(ctx context.Context, req PurchaseRequest) (*domain.Transaction, error)
	SubmitMobileMoneyCharge(ctx context.Context, req ChargeRequest) (*ChargeOutcome, error)
	ApplyWebhook(ctx context.Context, payload []byte, signature string) (*WebhookAck, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListEvents(ctx context.Context, id uuid.UUID) ([]domain.TransactionEvent, error)
}

// PurchaseRequest holds validated input for a new purchase.
type PurchaseRequest struct {
	Buyer          domain.BuyerIdentity
	DocumentType   string
	Contact        domain.Contact
	IdempotencyKey string
}

// ChargeRequest holds input for a mobile money charge.
type ChargeRequest struct {
	TransactionID uuid.UUID
	PhoneNumber   string
	Network       string
}

// ChargeOutcome is what the buyer sees after submitting a charge.
type ChargeOutcome struct {
	Transaction *domain.Transaction
	Action      domain.ChargeAction
	DialCode    string
	Message     string
}

// WebhookAck summarizes how a webhook was applied.
type WebhookAck struct {
	TransactionID uuid.UUID
	Status        domain.TransactionStatus
	Applied       bool // false for replays and no-op statuses
	Duplicate     bool
}

// AccessService is the access grant ledger.
type AccessService interface {
	// Grant runs inside the caller's transaction. Returns false if an active grant already existed.
	Grant(ctx context.Context, tx pgx.Tx, req GrantRequest) (bool, error)
	HasAccess(ctx context.Context, buyer domain.BuyerIdentity, documentType string) (bool, error)
	Revoke(ctx context.Context, buyer domain.BuyerIdentity, documentType, reason string) error
	ListForBuyer(ctx context.Context, buyer domain.BuyerIdentity) ([]domain.AccessGrant, error)
	RevokeExpired(ctx context.Context) (int64, error)
}

// GrantRequest holds input for a new access grant.
type GrantRequest struct {
	Buyer               domain.BuyerIdentity
	DocumentType        string
	SourceTransactionID uuid.UUID
	ExpiresAt           *time.Time
}
