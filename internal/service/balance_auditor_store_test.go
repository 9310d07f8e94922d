package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketplace-settlement/internal/adapter/storage/memory"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// creditingLedger lands one order credit right before the first replay,
// after the wallet row has already been read.
type creditingLedger struct {
	ports.LedgerService
	once   sync.Once
	credit func()
}

func (l *creditingLedger) ReplayBalance(ctx context.Context, walletID uuid.UUID) (*domain.Replay, error) {
	l.once.Do(l.credit)
	return l.LedgerService.ReplayBalance(ctx, walletID)
}

func TestBalanceAuditor_ConcurrentCreditIsNotAMismatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	walletRepo := memory.NewWalletRepo(store)
	ledgerSvc := NewLedgerService(walletRepo, memory.NewLedgerRepo(store), store, newTestLogger())
	auditLog := memory.NewAuditRepo(store)
	auditSvc := NewAuditService(auditLog, newTestLogger())
	wallets := NewWalletService(walletRepo, ledgerSvc, auditSvc, newTestLogger())

	w, err := wallets.GetOrCreate(ctx, "seller-1", domain.WalletRoleSeller)
	require.NoError(t, err)
	_, err = wallets.Credit(ctx, w.ID, 1000, "order_1")
	require.NoError(t, err)

	ledger := &creditingLedger{LedgerService: ledgerSvc}
	ledger.credit = func() {
		_, err := wallets.Credit(ctx, w.ID, 500, "order_2")
		require.NoError(t, err)
	}
	auditor := NewBalanceAuditor(walletRepo, ledger, auditSvc, time.Hour, 10, newTestLogger())

	sweep, err := auditor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.Wallets)
	assert.Empty(t, sweep.Mismatched)

	balance, err := wallets.GetBalance(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance)

	require.NoError(t, auditSvc.Flush(ctx))
	for _, entry := range auditLog.Logs() {
		assert.NotEqual(t, domain.AuditActionBalanceMismatch, entry.Action)
	}
}
