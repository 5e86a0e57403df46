package handler

import (
	"lexpay/internal/adapter/http/dto"
	"lexpay/internal/core/domain"
	"lexpay/internal/core/ports"
	"lexpay/pkg/apperror"
	"lexpay/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccessHandler exposes the buyer's entitlements.
type AccessHandler struct {
	accessSvc ports.AccessService
}

// NewAccessHandler creates a new AccessHandler.
func NewAccessHandler(accessSvc ports.AccessService) *AccessHandler {
	return &AccessHandler{accessSvc: accessSvc}
}

// HasAccess handles GET /api/v1/access/:document_type.
func (h *AccessHandler) HasAccess(c *gin.Context) {
	buyer, err := resolveBuyer(c, c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}

	docType := c.Param("document_type")
	ok, err := h.accessSvc.HasAccess(c.Request.Context(), buyer, docType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.AccessResponse{DocumentType: docType, HasAccess: ok})
}

// Library handles GET /api/v1/library.
func (h *AccessHandler) Library(c *gin.Context) {
	buyer, err := resolveBuyer(c, c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}

	grants, err := h.accessSvc.ListForBuyer(c.Request.Context(), buyer)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := make([]dto.GrantResponse, 0, len(grants))
	for _, g := range grants {
		resp = append(resp, dto.NewGrantResponse(g))
	}
	response.OK(c, resp)
}

// Revoke handles DELETE /api/v1/support/access/:document_type (support role).
// The buyer is named by account_id or email query parameters.
func (h *AccessHandler) Revoke(c *gin.Context) {
	var (
		buyer domain.BuyerIdentity
		err   error
	)
	switch {
	case c.Query("account_id") != "":
		buyer, err = domain.AccountBuyer(c.Query("account_id"))
	case c.Query("email") != "":
		buyer, err = domain.GuestBuyer(c.Query("email"))
	default:
		err = domain.ErrEmptyBuyer
	}
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	reason := c.DefaultQuery("reason", "revoked by support")
	docType := c.Param("document_type")
	if err := h.accessSvc.Revoke(c.Request.Context(), buyer, docType, reason); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.AccessResponse{DocumentType: docType, HasAccess: false})
}
