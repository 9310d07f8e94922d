package memory

import (
	"context"
	"testing"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletRepo_CreateUniquePerOwnerRole(t *testing.T) {
	store := NewStore()
	repo := NewWalletRepo(store)
	ctx := context.Background()

	created, err := repo.Create(ctx, domain.NewWallet("u-1", domain.WalletRoleSeller))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, domain.NewWallet("u-1", domain.WalletRoleSeller))
	require.NoError(t, err)
	assert.False(t, created)

	created, err = repo.Create(ctx, domain.NewWallet("u-1", domain.WalletRoleCourier))
	require.NoError(t, err)
	assert.True(t, created, "the same owner may also hold a courier wallet")

	got, err := repo.GetByOwner(ctx, "u-1", domain.WalletRoleCourier)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.WalletRoleCourier, got.Role)

	missing, err := repo.GetByOwner(ctx, "u-2", domain.WalletRoleSeller)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWalletRepo_ApplyDeltaGuards(t *testing.T) {
	store := NewStore()
	repo := NewWalletRepo(store)
	ctx := context.Background()
	w := seedWallet(t, store, 500)

	_, applied, err := repo.ApplyDelta(ctx, nil, w.ID, -501)
	require.NoError(t, err)
	assert.False(t, applied, "would go negative")

	_, applied, _ = repo.ApplyDelta(ctx, nil, uuid.New(), 10)
	assert.False(t, applied, "unknown wallet")

	ok, err := repo.UpdateStatus(ctx, w.ID, domain.WalletStatusActive, domain.WalletStatusFrozen)
	require.NoError(t, err)
	require.True(t, ok)

	_, applied, _ = repo.ApplyDelta(ctx, nil, w.ID, -100)
	assert.False(t, applied, "frozen wallets refuse debits")

	balance, applied, _ := repo.ApplyDelta(ctx, nil, w.ID, 100)
	assert.True(t, applied, "frozen wallets still accept credits")
	assert.Equal(t, int64(600), balance)

	ok, _ = repo.UpdateStatus(ctx, w.ID, domain.WalletStatusActive, domain.WalletStatusFrozen)
	assert.False(t, ok)
}

func TestWalletRepo_ListAfter(t *testing.T) {
	store := NewStore()
	repo := NewWalletRepo(store)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		seedWallet(t, store, 0)
	}

	first, err := repo.ListAfter(ctx, uuid.Nil, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)

	rest, err := repo.ListAfter(ctx, first[2].ID, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	seen := map[uuid.UUID]bool{}
	for _, w := range append(first, rest...) {
		assert.False(t, seen[w.ID])
		seen[w.ID] = true
	}
}

func TestLedgerRepo_IdempotencyAndOrdering(t *testing.T) {
	store := NewStore()
	repo := NewLedgerRepo(store)
	ctx := context.Background()
	walletID := uuid.New()

	insert := func(kind domain.EntryKind, ref string, amount int64) bool {
		ok, err := repo.Insert(ctx, nil, &domain.LedgerEntry{
			ID: uuid.New(), WalletID: walletID, Kind: kind, Amount: amount, ReferenceID: ref,
		})
		require.NoError(t, err)
		return ok
	}

	assert.True(t, insert(domain.EntryKindOrderCredit, "1", 100))
	assert.False(t, insert(domain.EntryKindOrderCredit, "1", 100))
	assert.True(t, insert(domain.EntryKindAdjustment, "fix", 5))
	assert.True(t, insert(domain.EntryKindAdjustment, "fix", 5))
	assert.True(t, insert(domain.EntryKindOrderCredit, "2", 200))

	entries, total, err := repo.ListByWallet(ctx, walletID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, entries, 2)
	assert.Equal(t, "2", entries[0].ReferenceID, "newest first")

	got, err := repo.GetByReference(ctx, walletID, "1", domain.EntryKindOrderCredit)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(100), got.Amount)

	all, err := repo.AllByWallet(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, "1", all[0].ReferenceID, "application order")
}

func TestPaymentRepo_MarkPaidConflicts(t *testing.T) {
	store := NewStore()
	repo := NewPaymentRepo(store)
	ctx := context.Background()

	for _, id := range []string{"500", "501"} {
		created, err := repo.Create(ctx, &domain.PaymentRecord{OrderID: id, ExpectedAmount: 10, Status: domain.PaymentStatusPending})
		require.NoError(t, err)
		require.True(t, created)
	}
	created, _ := repo.Create(ctx, &domain.PaymentRecord{OrderID: "500"})
	assert.False(t, created)

	won, err := repo.MarkPaid(ctx, nil, "500", "FT-1", time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.MarkPaid(ctx, nil, "500", "FT-2", time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	_, err = repo.MarkPaid(ctx, nil, "501", "FT-1", time.Now())
	assert.ErrorIs(t, err, domain.ErrTransactionIDUsed)

	ok, err := repo.MarkFailed(ctx, "501", "cancelled")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = repo.MarkFailed(ctx, "500", "too late")
	assert.False(t, ok)

	p, _ := repo.GetByProviderTransactionID(ctx, "FT-1")
	require.NotNil(t, p)
	assert.Equal(t, "500", p.OrderID)
}

func TestPayoutRepo_TransitionAndList(t *testing.T) {
	store := NewStore()
	repo := NewPayoutRepo(store)
	ctx := context.Background()
	walletID := uuid.New()
	base := time.Now().UTC()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		p := &domain.PayoutRequest{
			ID: uuid.New(), WalletID: walletID, Amount: 10, Status: domain.PayoutStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(ctx, p))
		ids = append(ids, p.ID)
	}

	reason := "wrong account"
	ok, err := repo.Transition(ctx, nil, ports.PayoutTransition{
		ID: ids[0], From: domain.PayoutStatusPending, To: domain.PayoutStatusRejected,
		Actor: "r-1", Reason: &reason, At: base,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = repo.Transition(ctx, nil, ports.PayoutTransition{
		ID: ids[0], From: domain.PayoutStatusPending, To: domain.PayoutStatusApproved, At: base,
	})
	assert.False(t, ok)

	got, _ := repo.GetByID(ctx, ids[0])
	assert.Equal(t, "wrong account", *got.RejectionReason)
	assert.Equal(t, "r-1", *got.ProcessedBy)

	pending := domain.PayoutStatusPending
	list, total, err := repo.List(ctx, ports.PayoutListParams{WalletID: &walletID, Status: &pending, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, ids[2], list[0].ID, "newest first")
}

func TestReviewRepo_OnePerTransaction(t *testing.T) {
	store := NewStore()
	repo := NewReviewRepo(store)
	ctx := context.Background()

	rc := &domain.ReviewCase{ID: uuid.New(), ProviderTransactionID: "FT-9", Status: domain.ReviewStatusOpen, CreatedAt: time.Now()}
	created, err := repo.Create(ctx, rc)
	require.NoError(t, err)
	assert.True(t, created)

	dup := *rc
	dup.ID = uuid.New()
	created, _ = repo.Create(ctx, &dup)
	assert.False(t, created)

	got, _ := repo.GetByTransactionID(ctx, "FT-9")
	assert.Equal(t, rc.ID, got.ID)

	ok, err := repo.Resolve(ctx, rc.ID, "refunded", "r-1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = repo.Resolve(ctx, rc.ID, "again", "r-1", time.Now())
	assert.False(t, ok)

	open := domain.ReviewStatusOpen
	list, total, _ := repo.List(ctx, &open, 1, 10)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestAuditRepo(t *testing.T) {
	repo := NewAuditRepo(NewStore())
	require.NoError(t, repo.Create(context.Background(), &domain.AuditLog{ID: uuid.New(), Action: domain.AuditActionPayoutCreated}))
	logs := repo.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditActionPayoutCreated, logs[0].Action)
}
