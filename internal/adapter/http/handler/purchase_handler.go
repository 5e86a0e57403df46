package handler

import (
	"context"
	"io"

	"lexpay/internal/adapter/http/dto"
	"lexpay/internal/adapter/http/middleware"
	"lexpay/internal/core/domain"
	"lexpay/internal/core/ports"
	"lexpay/pkg/apperror"
	"lexpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxWebhookBody caps callback payloads read into memory.
const maxWebhookBody = 64 << 10

// PurchaseHandler handles catalog, purchase, charge and webhook endpoints.
type PurchaseHandler struct {
	purchaseSvc ports.PurchaseService
	catalog     ports.Catalog
}

// NewPurchaseHandler creates a new PurchaseHandler.
func NewPurchaseHandler(purchaseSvc ports.PurchaseService, catalog ports.Catalog) *PurchaseHandler {
	return &PurchaseHandler{purchaseSvc: purchaseSvc, catalog: catalog}
}

// Catalog handles GET /api/v1/catalog.
func (h *PurchaseHandler) Catalog(c *gin.Context) {
	items := h.catalog.List()
	resp := make([]dto.CatalogItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, dto.NewCatalogItemResponse(item))
	}
	response.OK(c, resp)
}

// StartPurchase handles POST /api/v1/purchases.
func (h *PurchaseHandler) StartPurchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	buyer, err := resolveBuyer(c, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	// The gateway call must outlive an impatient client.
	ctx := context.WithoutCancel(c.Request.Context())
	txn, err := h.purchaseSvc.StartPurchase(ctx, ports.PurchaseRequest{
		Buyer:        buyer,
		DocumentType: req.DocumentType,
		Contact: domain.Contact{
			Email: req.Email,
			Phone: req.Phone,
			Name:  req.Name,
		},
		IdempotencyKey: c.GetHeader(middleware.HeaderIdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewTransactionResponse(txn))
}

// SubmitCharge handles POST /api/v1/transactions/:id/charge.
func (h *PurchaseHandler) SubmitCharge(c *gin.Context) {
	id, ok := transactionIDParam(c)
	if !ok {
		return
	}

	var req dto.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()).WithTransaction(id.String()))
		return
	}

	out, err := h.purchaseSvc.SubmitMobileMoneyCharge(context.WithoutCancel(c.Request.Context()), ports.ChargeRequest{
		TransactionID: id,
		PhoneNumber:   req.PhoneNumber,
		Network:       req.Network,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, dto.NewChargeResponse(out))
}

// GetStatus handles GET /api/v1/transactions/:id.
func (h *PurchaseHandler) GetStatus(c *gin.Context) {
	id, ok := transactionIDParam(c)
	if !ok {
		return
	}

	txn, err := h.purchaseSvc.GetStatus(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewTransactionResponse(txn))
}

// ListEvents handles GET /api/v1/transactions/:id/events.
func (h *PurchaseHandler) ListEvents(c *gin.Context) {
	id, ok := transactionIDParam(c)
	if !ok {
		return
	}

	events, err := h.purchaseSvc.ListEvents(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := make([]dto.EventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, dto.NewEventResponse(ev))
	}
	response.OK(c, resp)
}

// Webhook handles POST /api/v1/webhooks/gateway. The signature covers the
// raw body, so it is read before any decoding.
func (h *PurchaseHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, apperror.Validation("unreadable request body"))
		return
	}

	ack, err := h.purchaseSvc.ApplyWebhook(
		context.WithoutCancel(c.Request.Context()),
		payload,
		c.GetHeader(middleware.HeaderSignature),
	)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WebhookAckResponse{
		TransactionID: ack.TransactionID.String(),
		Status:        string(ack.Status),
		Applied:       ack.Applied,
		Duplicate:     ack.Duplicate,
	})
}

func transactionIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("Invalid transaction id"))
		return uuid.Nil, false
	}
	return id, true
}

// resolveBuyer prefers the authenticated account and falls back to a guest email.
func resolveBuyer(c *gin.Context, email string) (domain.BuyerIdentity, error) {
	if accountID := c.GetString(middleware.CtxAccountID); accountID != "" {
		buyer, err := domain.AccountBuyer(accountID)
		if err != nil {
			return domain.BuyerIdentity{}, apperror.ErrInvalidToken()
		}
		return buyer, nil
	}
	if email == "" {
		return domain.BuyerIdentity{}, apperror.Validation("email is required for guest buyers")
	}
	buyer, err := domain.GuestBuyer(email)
	if err != nil {
		return domain.BuyerIdentity{}, apperror.Validation(err.Error())
	}
	return buyer, nil
}
