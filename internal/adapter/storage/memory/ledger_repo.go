package memory

import (
	"context"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. Entries are kept per wallet in
// append order.
type LedgerRepo struct {
	store *Store
}

// NewLedgerRepo creates a ledger repository over store.
func NewLedgerRepo(store *Store) *LedgerRepo {
	return &LedgerRepo{store: store}
}

func (r *LedgerRepo) Insert(_ context.Context, tx pgx.Tx, e *domain.LedgerEntry) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey{wallet: e.WalletID, ref: e.ReferenceID, kind: e.Kind}
	if e.Kind.IsIdempotent() {
		if _, exists := s.entryKeys[key]; exists {
			return false, nil
		}
		s.entryKeys[key] = e.ID
	}
	s.entries[e.WalletID] = append(s.entries[e.WalletID], *e)

	id, walletID := e.ID, e.WalletID
	record(tx, func() {
		list := s.entries[walletID]
		for i := len(list) - 1; i >= 0; i-- {
			if list[i].ID == id {
				s.entries[walletID] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		if s.entryKeys[key] == id {
			delete(s.entryKeys, key)
		}
	})
	return true, nil
}

func (r *LedgerRepo) GetByReference(_ context.Context, walletID uuid.UUID, referenceID string, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries[walletID] {
		if e.ReferenceID == referenceID && e.Kind == kind {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *LedgerRepo) ListByWallet(_ context.Context, walletID uuid.UUID, pageNum, pageSize int) ([]domain.LedgerEntry, int64, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.entries[walletID]
	newest := make([]domain.LedgerEntry, len(list))
	for i, e := range list {
		newest[len(list)-1-i] = e
	}
	return page(newest, pageNum, pageSize), int64(len(list)), nil
}

func (r *LedgerRepo) AllByWallet(_ context.Context, walletID uuid.UUID) ([]domain.LedgerEntry, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.LedgerEntry(nil), s.entries[walletID]...), nil
}
