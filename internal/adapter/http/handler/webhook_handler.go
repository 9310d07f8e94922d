package handler

import (
	"time"

	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebhookHandler receives provider payment notifications.
type WebhookHandler struct {
	recon ports.ReconciliationService
	log   zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(recon ports.ReconciliationService, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{recon: recon, log: log}
}

// Receive handles POST /api/v1/webhooks/:provider.
//
// Every notification that was durably settled, rejected or queued for review
// is acknowledged with 200 and the outcome in the body, so providers stop
// redelivering. Only storage failures surface as 5xx.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := domain.Provider(c.Param("provider"))
	if !provider.Valid() {
		response.Error(c, apperror.ErrNotFound("provider"))
		return
	}

	var req dto.WebhookNotification
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}

	res, err := h.recon.ProcessNotification(c.Request.Context(), domain.PaymentNotification{
		Provider:      provider,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		ReferenceText: req.ReferenceText,
		OccurredAt:    occurredAt,
	})
	if err != nil {
		h.log.Error().Err(err).
			Str("provider", string(provider)).
			Str("transaction_id", req.TransactionID).
			Msg("webhook not processed")
		response.Error(c, err)
		return
	}

	response.OK(c, res)
}
