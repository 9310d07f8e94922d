package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// PayoutHandler serves the reviewer side of the payout workflow.
type PayoutHandler struct {
	payouts ports.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payouts ports.PayoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

// List handles GET /api/v1/payouts?status=&page=&limit=.
func (h *PayoutHandler) List(c *gin.Context) {
	var q dto.StatusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	page, limit := pageOf(q.PageQuery)
	params := ports.PayoutListParams{Page: page, PageSize: limit}
	if q.Status != "" {
		status := domain.PayoutStatus(q.Status)
		params.Status = &status
	}

	payouts, total, err := h.payouts.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, payouts, page, limit, total)
}

// Get handles GET /api/v1/payouts/:id.
func (h *PayoutHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	p, err := h.payouts.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Approve handles POST /api/v1/payouts/:id/approve.
func (h *PayoutHandler) Approve(c *gin.Context) {
	sub, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	p, err := h.payouts.Approve(c.Request.Context(), id, sub)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Reject handles POST /api/v1/payouts/:id/reject.
func (h *PayoutHandler) Reject(c *gin.Context) {
	sub, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.RejectPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	p, err := h.payouts.Reject(c.Request.Context(), id, sub, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// MarkTransferred handles POST /api/v1/payouts/:id/transferred, recorded once
// the bank transfer has been sent.
func (h *PayoutHandler) MarkTransferred(c *gin.Context) {
	sub, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	p, err := h.payouts.MarkTransferred(c.Request.Context(), id, sub)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}
