package memory

import (
	"bytes"
	"context"
	"sort"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	store *Store
}

// NewWalletRepo creates a wallet repository over store.
func NewWalletRepo(store *Store) *WalletRepo {
	return &WalletRepo{store: store}
}

func (r *WalletRepo) Create(_ context.Context, w *domain.Wallet) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerKey{owner: w.OwnerID, role: w.Role}
	if _, exists := s.walletByOwner[key]; exists {
		return false, nil
	}
	cp := *w
	s.wallets[w.ID] = &cp
	s.walletByOwner[key] = w.ID
	return true, nil
}

func (r *WalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *WalletRepo) GetByOwner(ctx context.Context, ownerID string, role domain.WalletRole) (*domain.Wallet, error) {
	r.store.mu.RLock()
	id, ok := r.store.walletByOwner[ownerKey{owner: ownerID, role: role}]
	r.store.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// ApplyDelta enforces the same guards as the SQL implementation.
func (r *WalletRepo) ApplyDelta(_ context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (int64, bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[id]
	if !ok || w.Balance+delta < 0 || (delta <= 0 && !w.IsActive()) {
		return 0, false, nil
	}

	prev := *w
	record(tx, func() {
		w.Balance = prev.Balance
		w.TotalCredited = prev.TotalCredited
		w.TotalDebited = prev.TotalDebited
		w.UpdatedAt = prev.UpdatedAt
	})

	w.Balance += delta
	if delta > 0 {
		w.TotalCredited += delta
	} else {
		w.TotalDebited -= delta
	}
	w.UpdatedAt = time.Now().UTC()
	return w.Balance, true, nil
}

func (r *WalletRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to domain.WalletStatus) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[id]
	if !ok || w.Status != from {
		return false, nil
	}
	w.Status = to
	w.UpdatedAt = time.Now().UTC()
	return true, nil
}

// ListAfter orders by the raw uuid bytes, as PostgreSQL does.
func (r *WalletRepo) ListAfter(_ context.Context, after uuid.UUID, limit int) ([]domain.Wallet, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Wallet
	for id, w := range s.wallets {
		if bytes.Compare(id[:], after[:]) > 0 {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
