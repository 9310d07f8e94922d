package service

import (
	"context"
	"testing"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports/mocks"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupReviewService(t *testing.T) (*ReviewServiceImpl, *mocks.MockReviewCaseRepository, *mocks.MockAuditService, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockReviewCaseRepository(ctrl)
	auditSvc := mocks.NewMockAuditService(ctrl)
	return NewReviewService(repo, auditSvc, newTestLogger()), repo, auditSvc, ctrl
}

func TestReviewService_List(t *testing.T) {
	svc, repo, _, ctrl := setupReviewService(t)
	defer ctrl.Finish()

	open := domain.ReviewStatusOpen
	repo.EXPECT().List(gomock.Any(), &open, 2, 20).Return([]domain.ReviewCase{{ID: uuid.New()}}, int64(21), nil)

	cases, total, err := svc.List(context.Background(), &open, 2, 0)
	require.NoError(t, err)
	assert.Len(t, cases, 1)
	assert.Equal(t, int64(21), total)

	bogus := domain.ReviewStatus("CLOSED")
	_, _, err = svc.List(context.Background(), &bogus, 1, 10)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestReviewService_Resolve(t *testing.T) {
	svc, repo, auditSvc, ctrl := setupReviewService(t)
	defer ctrl.Finish()

	id := uuid.New()
	resolution := "refunded to buyer"
	repo.EXPECT().Resolve(gomock.Any(), id, resolution, "reviewer-1", gomock.Any()).Return(true, nil)
	repo.EXPECT().GetByID(gomock.Any(), id).Return(&domain.ReviewCase{
		ID: id, Status: domain.ReviewStatusResolved, Resolution: &resolution,
	}, nil)
	auditSvc.EXPECT().Log(gomock.Any(), gomock.Any())

	rc, err := svc.Resolve(context.Background(), id, resolution, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewStatusResolved, rc.Status)
}

func TestReviewService_Resolve_AlreadyResolved(t *testing.T) {
	svc, repo, _, ctrl := setupReviewService(t)
	defer ctrl.Finish()

	id := uuid.New()
	repo.EXPECT().Resolve(gomock.Any(), id, gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)
	repo.EXPECT().GetByID(gomock.Any(), id).Return(&domain.ReviewCase{ID: id, Status: domain.ReviewStatusResolved}, nil)

	_, err := svc.Resolve(context.Background(), id, "again", "reviewer-2")
	assert.True(t, apperror.HasCode(err, apperror.CodeIllegalTransition))
}

func TestReviewService_Resolve_NotFound(t *testing.T) {
	svc, repo, _, ctrl := setupReviewService(t)
	defer ctrl.Finish()

	id := uuid.New()
	repo.EXPECT().Resolve(gomock.Any(), id, gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)
	repo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

	_, err := svc.Resolve(context.Background(), id, "x", "reviewer-2")
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))

	_, err = svc.Resolve(context.Background(), id, "", "reviewer-2")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
