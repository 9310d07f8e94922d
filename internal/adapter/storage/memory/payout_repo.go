package memory

import (
	"bytes"
	"context"
	"sort"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	store *Store
}

// NewPayoutRepo creates a payout repository over store.
func NewPayoutRepo(store *Store) *PayoutRepo {
	return &PayoutRepo{store: store}
}

func (r *PayoutRepo) Create(_ context.Context, p *domain.PayoutRequest) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.payouts[p.ID] = &cp
	return nil
}

func (r *PayoutRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payouts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *PayoutRepo) Transition(_ context.Context, tx pgx.Tx, t ports.PayoutTransition) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payouts[t.ID]
	if !ok || p.Status != t.From {
		return false, nil
	}

	prev := *p
	record(tx, func() { *p = prev })

	p.Status = t.To
	at := t.At
	if t.To == domain.PayoutStatusTransferred {
		p.TransferredAt = &at
	} else {
		actor := t.Actor
		p.ProcessedBy = &actor
		p.ProcessedAt = &at
		p.RejectionReason = t.Reason
	}
	return true, nil
}

// List returns matching requests newest first.
func (r *PayoutRepo) List(_ context.Context, params ports.PayoutListParams) ([]domain.PayoutRequest, int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PayoutRequest
	for _, p := range s.payouts {
		if params.WalletID != nil && p.WalletID != *params.WalletID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return page(out, params.Page, params.PageSize), int64(len(out)), nil
}
