package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReviewServiceImpl implements ports.ReviewService.
type ReviewServiceImpl struct {
	reviewRepo ports.ReviewCaseRepository
	auditSvc   ports.AuditService
	log        zerolog.Logger
}

// NewReviewService creates a new ReviewServiceImpl.
func NewReviewService(reviewRepo ports.ReviewCaseRepository, auditSvc ports.AuditService, log zerolog.Logger) *ReviewServiceImpl {
	return &ReviewServiceImpl{reviewRepo: reviewRepo, auditSvc: auditSvc, log: log}
}

// List pages review cases, oldest first. A nil status lists every case.
func (s *ReviewServiceImpl) List(ctx context.Context, status *domain.ReviewStatus, page, pageSize int) ([]domain.ReviewCase, int64, error) {
	if status != nil && *status != domain.ReviewStatusOpen && *status != domain.ReviewStatusResolved {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown review status %q", *status))
	}
	page, pageSize = normalizePage(page, pageSize)

	cases, total, err := s.reviewRepo.List(ctx, status, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list review cases: %w", err))
	}
	return cases, total, nil
}

// Resolve closes an open case with the operator's resolution. Money movements
// that follow from the decision are made separately as wallet adjustments.
func (s *ReviewServiceImpl) Resolve(ctx context.Context, id uuid.UUID, resolution, actor string) (*domain.ReviewCase, error) {
	if resolution == "" {
		return nil, apperror.Validation("resolution is required")
	}

	ok, err := s.reviewRepo.Resolve(ctx, id, resolution, actor, time.Now().UTC())
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve review case: %w", err))
	}

	rc, err := s.reviewRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get review case: %w", err))
	}
	if rc == nil {
		return nil, apperror.ErrNotFound("review case")
	}
	if !ok {
		return nil, apperror.ErrIllegalTransition("review case", string(rc.Status), string(domain.ReviewStatusResolved))
	}

	s.log.Info().Str("review_case_id", id.String()).Str("actor", actor).Msg("review case resolved")
	audit(ctx, s.auditSvc, actor, domain.AuditActionReviewResolved, "review_case", id.String(), map[string]any{
		"order_id":       rc.OrderID,
		"transaction_id": rc.ProviderTransactionID,
		"resolution":     resolution,
	})
	return rc, nil
}
