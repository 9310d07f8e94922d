package memory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
)

// ReviewRepo implements ports.ReviewCaseRepository.
type ReviewRepo struct {
	store *Store
}

// NewReviewRepo creates a review case repository over store.
func NewReviewRepo(store *Store) *ReviewRepo {
	return &ReviewRepo{store: store}
}

func (r *ReviewRepo) Create(_ context.Context, rc *domain.ReviewCase) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reviewByTxID[rc.ProviderTransactionID]; exists {
		return false, nil
	}
	cp := *rc
	s.reviews[rc.ID] = &cp
	s.reviewByTxID[rc.ProviderTransactionID] = rc.ID
	return true, nil
}

func (r *ReviewRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ReviewCase, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.review(id), nil
}

func (r *ReviewRepo) GetByTransactionID(_ context.Context, transactionID string) (*domain.ReviewCase, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.reviewByTxID[transactionID]
	if !ok {
		return nil, nil
	}
	return s.review(id), nil
}

func (r *ReviewRepo) Resolve(_ context.Context, id uuid.UUID, resolution, actor string, at time.Time) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	rc, ok := s.reviews[id]
	if !ok || rc.Status != domain.ReviewStatusOpen {
		return false, nil
	}
	rc.Status = domain.ReviewStatusResolved
	rc.Resolution = &resolution
	rc.ResolvedBy = &actor
	rc.ResolvedAt = &at
	return true, nil
}

// List returns matching cases oldest first.
func (r *ReviewRepo) List(_ context.Context, status *domain.ReviewStatus, pageNum, pageSize int) ([]domain.ReviewCase, int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ReviewCase
	for _, rc := range s.reviews {
		if status != nil && rc.Status != *status {
			continue
		}
		out = append(out, *rc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return page(out, pageNum, pageSize), int64(len(out)), nil
}

func (s *Store) review(id uuid.UUID) *domain.ReviewCase {
	rc, ok := s.reviews[id]
	if !ok {
		return nil
	}
	cp := *rc
	return &cp
}
