package dto

import (
	"encoding/json"
	"time"

	"lexpay/internal/core/domain"
	"lexpay/internal/core/ports"
)

// PurchaseRequest is the request body for POST /api/v1/purchases.
// Email identifies a guest buyer when no bearer token is sent.
type PurchaseRequest struct {
	DocumentType string `json:"document_type" binding:"required,doc_type"`
	Email        string `json:"email,omitempty" binding:"omitempty,email,max=254"`
	Phone        string `json:"phone,omitempty" binding:"omitempty,cm_phone"`
	Name         string `json:"name,omitempty" binding:"omitempty,max=100"`
}

// ChargeRequest is the request body for POST /api/v1/transactions/:id/charge.
type ChargeRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,cm_phone"`
	Network     string `json:"network" binding:"required,mm_network"`
}

// TransactionResponse is the status snapshot returned to clients.
type TransactionResponse struct {
	ID               string  `json:"id"`
	DocumentType     string  `json:"document_type"`
	Amount           int64   `json:"amount"`
	Currency         string  `json:"currency"`
	Status           string  `json:"status"`
	PaymentURL       *string `json:"payment_url,omitempty"`
	GatewayReference *string `json:"gateway_reference,omitempty"`
	Network          *string `json:"network,omitempty"`
	DialCode         *string `json:"dial_code,omitempty"`
	FailureReason    *string `json:"failure_reason,omitempty"`
	CancelReason     *string `json:"cancel_reason,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

// ChargeResponse tells the buyer what to do next on their handset.
type ChargeResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Action      string              `json:"action,omitempty"`
	DialCode    string              `json:"dial_code,omitempty"`
	Message     string              `json:"message,omitempty"`
}

// WebhookAckResponse is returned to the gateway.
type WebhookAckResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Applied       bool   `json:"applied"`
	Duplicate     bool   `json:"duplicate"`
}

// CatalogItemResponse is one purchasable document.
type CatalogItemResponse struct {
	DocumentType string `json:"document_type"`
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
	Description  string `json:"description"`
	AccessDays   int    `json:"access_days,omitempty"`
}

// GrantResponse is one entry of the buyer's library.
type GrantResponse struct {
	ID                  string  `json:"id"`
	DocumentType        string  `json:"document_type"`
	Status              string  `json:"status"`
	SourceTransactionID string  `json:"source_transaction_id"`
	GrantedAt           string  `json:"granted_at"`
	ExpiresAt           *string `json:"expires_at,omitempty"`
	RevokedAt           *string `json:"revoked_at,omitempty"`
	RevokeReason        *string `json:"revoke_reason,omitempty"`
}

// AccessResponse answers GET /api/v1/access/:document_type.
type AccessResponse struct {
	DocumentType string `json:"document_type"`
	HasAccess    bool   `json:"has_access"`
}

// EventResponse is one raw gateway exchange, for support staff.
type EventResponse struct {
	ID              int64   `json:"id"`
	Kind            string  `json:"kind"`
	ProviderEventID *string `json:"provider_event_id,omitempty"`
	ProviderStatus  *string `json:"provider_status,omitempty"`
	Payload         any     `json:"payload"`
	CreatedAt       string  `json:"created_at"`
}

// DependencyHealth is one entry of HealthResponse.
type DependencyHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is the /health body. It is not wrapped in the envelope.
type HealthResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyHealth `json:"dependencies"`
}

// GatewayHealthResponse reports the provider's state.
type GatewayHealthResponse struct {
	Status string `json:"status"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// NewTransactionResponse converts a domain.Transaction to its DTO.
// The buyer's phone number is never echoed back.
func NewTransactionResponse(tx *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:               tx.ID.String(),
		DocumentType:     tx.DocumentType,
		Amount:           tx.Amount,
		Currency:         tx.Currency,
		Status:           string(tx.Status),
		PaymentURL:       tx.PaymentURL,
		GatewayReference: tx.GatewayReference,
		DialCode:         tx.DialCode,
		FailureReason:    tx.FailureReason,
		CancelReason:     tx.CancelReason,
		CreatedAt:        formatTime(tx.CreatedAt),
		UpdatedAt:        formatTime(tx.UpdatedAt),
		CompletedAt:      formatTimePtr(tx.CompletedAt),
	}
	if tx.Network != nil {
		n := string(*tx.Network)
		resp.Network = &n
	}
	return resp
}

// NewChargeResponse converts a ports.ChargeOutcome.
func NewChargeResponse(out *ports.ChargeOutcome) ChargeResponse {
	return ChargeResponse{
		Transaction: NewTransactionResponse(out.Transaction),
		Action:      string(out.Action),
		DialCode:    out.DialCode,
		Message:     out.Message,
	}
}

// NewCatalogItemResponse converts a domain.CatalogItem.
func NewCatalogItemResponse(item domain.CatalogItem) CatalogItemResponse {
	return CatalogItemResponse{
		DocumentType: item.DocumentType,
		Price:        item.Price,
		Currency:     item.Currency,
		Description:  item.Description,
		AccessDays:   int(item.AccessDuration / (24 * time.Hour)),
	}
}

// NewGrantResponse converts a domain.AccessGrant.
func NewGrantResponse(g domain.AccessGrant) GrantResponse {
	return GrantResponse{
		ID:                  g.ID.String(),
		DocumentType:        g.DocumentType,
		Status:              string(g.Status),
		SourceTransactionID: g.SourceTransactionID.String(),
		GrantedAt:           formatTime(g.GrantedAt),
		ExpiresAt:           formatTimePtr(g.ExpiresAt),
		RevokedAt:           formatTimePtr(g.RevokedAt),
		RevokeReason:        g.RevokeReason,
	}
}

// NewEventResponse converts a domain.TransactionEvent. Payloads are stored as JSON.
func NewEventResponse(ev domain.TransactionEvent) EventResponse {
	return EventResponse{
		ID:              ev.ID,
		Kind:            string(ev.Kind),
		ProviderEventID: ev.ProviderEventID,
		ProviderStatus:  ev.ProviderStatus,
		Payload:         rawJSON(ev.Payload),
		CreatedAt:       formatTime(ev.CreatedAt),
	}
}

func rawJSON(b []byte) any {
	if len(b) > 0 && json.Valid(b) {
		return json.RawMessage(b)
	}
	return string(b)
}
