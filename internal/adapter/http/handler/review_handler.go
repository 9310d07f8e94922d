package handler

import (
	"marketplace-settlement/internal/adapter/http/dto"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReviewHandler serves the manual review queue.
type ReviewHandler struct {
	reviews ports.ReviewService
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviews ports.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// List handles GET /api/v1/reviews?status=OPEN.
func (h *ReviewHandler) List(c *gin.Context) {
	var q dto.StatusQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	var status *domain.ReviewStatus
	if q.Status != "" {
		s := domain.ReviewStatus(q.Status)
		status = &s
	}

	page, limit := pageOf(q.PageQuery)
	cases, total, err := h.reviews.List(c.Request.Context(), status, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, cases, page, limit, total)
}

// Resolve handles POST /api/v1/reviews/:id/resolve.
func (h *ReviewHandler) Resolve(c *gin.Context) {
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

	var req dto.ResolveReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	rc, err := h.reviews.Resolve(c.Request.Context(), id, req.Resolution, sub)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rc)
}
