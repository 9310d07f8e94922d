// Package memory is a process-local implementation of the storage ports for
// development and tests. Transactions are serialized: Begin blocks until the
// previous transaction commits or rolls back, and Rollback replays an undo
// journal. Reads outside a transaction see uncommitted writes.
package memory

import (
	"context"
	"sync"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ownerKey struct {
	owner string
	role  domain.WalletRole
}

type entryKey struct {
	wallet uuid.UUID
	ref    string
	kind   domain.EntryKind
}

// Store holds every table in memory. It implements ports.DBTransactor and
// ports.HealthChecker; the repositories are thin views over it.
type Store struct {
	txSem chan struct{}

	mu            sync.RWMutex
	wallets       map[uuid.UUID]*domain.Wallet
	walletByOwner map[ownerKey]uuid.UUID
	entries       map[uuid.UUID][]domain.LedgerEntry
	entryKeys     map[entryKey]uuid.UUID
	payments      map[string]*domain.PaymentRecord
	paymentByTxID map[string]string
	payouts       map[uuid.UUID]*domain.PayoutRequest
	reviews       map[uuid.UUID]*domain.ReviewCase
	reviewByTxID  map[string]uuid.UUID
	audits        []domain.AuditLog
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		txSem:         make(chan struct{}, 1),
		wallets:       make(map[uuid.UUID]*domain.Wallet),
		walletByOwner: make(map[ownerKey]uuid.UUID),
		entries:       make(map[uuid.UUID][]domain.LedgerEntry),
		entryKeys:     make(map[entryKey]uuid.UUID),
		payments:      make(map[string]*domain.PaymentRecord),
		paymentByTxID: make(map[string]string),
		payouts:       make(map[uuid.UUID]*domain.PayoutRequest),
		reviews:       make(map[uuid.UUID]*domain.ReviewCase),
		reviewByTxID:  make(map[string]uuid.UUID),
	}
}

// Begin waits for exclusive use of the store or for ctx to end.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case s.txSem <- struct{}{}:
		return &Tx{store: s}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

// Tx is a serialized in-memory transaction. Only Commit and Rollback are
// implemented; the embedded pgx.Tx is nil and any other method panics.
type Tx struct {
	pgx.Tx
	store *Store
	undo  []func()
	done  bool
}

// Commit releases the store and discards the undo journal.
func (t *Tx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	<-t.store.txSem
	return nil
}

// Rollback reverts every write made through the transaction and releases the store.
func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.undo = nil
	<-t.store.txSem
	return nil
}

// record registers fn to run on rollback when tx is one of ours. Must be
// called with s.mu held.
func record(tx pgx.Tx, fn func()) {
	if t, ok := tx.(*Tx); ok && t != nil {
		t.undo = append(t.undo, fn)
	}
}

// page slices items for a 1-based page.
func page[T any](items []T, pageNum, pageSize int) []T {
	if pageNum < 1 {
		pageNum = 1
	}
	start := (pageNum - 1) * pageSize
	if pageSize <= 0 || start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
