package handler

import (
	"errors"
	"io"

	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles order payment endpoints.
type PaymentHandler struct {
	recon    ports.ReconciliationService
	verifier ports.VerifierService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(recon ports.ReconciliationService, verifier ports.VerifierService) *PaymentHandler {
	return &PaymentHandler{recon: recon, verifier: verifier}
}

// Create handles POST /api/v1/payments.
func (h *PaymentHandler) Create(c *gin.Context) {
	sub, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.recon.CreatePayment(c.Request.Context(), ports.CreatePaymentRequest{
		OrderID:     req.OrderID,
		SellerID:    req.SellerID,
		Amount:      req.Amount,
		Method:      domain.PaymentMethod(req.Method),
		RequestedBy: sub,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Get handles GET /api/v1/payments/:orderId.
func (h *PaymentHandler) Get(c *gin.Context) {
	rec, err := h.recon.GetPayment(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

// Verify handles POST /api/v1/payments/:orderId/verify. The body is optional.
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	res, err := h.verifier.CheckPayment(c.Request.Context(), c.Param("orderId"), req.Requery)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Fail handles POST /api/v1/payments/:orderId/fail (reviewer only).
func (h *PaymentHandler) Fail(c *gin.Context) {
	sub, err := caller(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.FailPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	rec, err := h.recon.FailPayment(c.Request.Context(), c.Param("orderId"), req.Reason, sub)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}
