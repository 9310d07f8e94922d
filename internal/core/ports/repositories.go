package ports

import (
	"context"
	"time"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Balance changes only happen through ApplyDelta inside a transaction.
type WalletRepository interface {
	// Create inserts the wallet unless one already exists for (owner, role).
	// Returns false when the insert was skipped.
	Create(ctx context.Context, wallet *domain.Wallet) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, ownerID string, role domain.WalletRole) (*domain.Wallet, error)
	// ApplyDelta adds delta to the balance and the matching running total in a
	// single conditional write. The write is skipped (applied=false) when the
	// wallet does not exist, the result would be negative, or delta is a debit
	// and the wallet is not ACTIVE.
	ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta int64) (balanceAfter int64, applied bool, err error)
	// UpdateStatus moves the wallet from one status to another; false when the
	// wallet was not in the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.WalletStatus) (bool, error)
	// ListAfter pages wallets ordered by id, starting after the given id.
	ListAfter(ctx context.Context, after uuid.UUID, limit int) ([]domain.Wallet, error)
}

// LedgerRepository defines persistence operations for ledger entries.
type LedgerRepository interface {
	// Insert records the entry. Returns false when an idempotent entry with the
	// same wallet, reference and kind already exists.
	Insert(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) (bool, error)
	GetByReference(ctx context.Context, walletID uuid.UUID, referenceID string, kind domain.EntryKind) (*domain.LedgerEntry, error)
	// ListByWallet returns a page of entries, newest first, and the total count.
	ListByWallet(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error)
	// AllByWallet returns every entry of the wallet in the order they were applied.
	AllByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.LedgerEntry, error)
}

// PaymentRepository defines persistence operations for order payment records.
type PaymentRepository interface {
	// Create inserts the record unless the order already has one.
	Create(ctx context.Context, payment *domain.PaymentRecord) (bool, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.PaymentRecord, error)
	GetByProviderTransactionID(ctx context.Context, transactionID string) (*domain.PaymentRecord, error)
	// MarkPaid moves a PENDING record to PAID; false when the record was not PENDING.
	// Returns domain.ErrTransactionIDUsed if another record already holds the id.
	MarkPaid(ctx context.Context, tx pgx.Tx, orderID, transactionID string, paidAt time.Time) (bool, error)
	// MarkFailed moves a PENDING record to FAILED; false when it was not PENDING.
	MarkFailed(ctx context.Context, orderID, reason string) (bool, error)
}

// PayoutListParams holds filter + pagination for listing payout requests.
type PayoutListParams struct {
	WalletID *uuid.UUID
	Status   *domain.PayoutStatus
	Page     int
	PageSize int
}

// PayoutTransition describes one conditional payout status change.
type PayoutTransition struct {
	ID     uuid.UUID
	From   domain.PayoutStatus
	To     domain.PayoutStatus
	Actor  string
	Reason *string
	At     time.Time
}

// PayoutRepository defines persistence operations for payout requests.
type PayoutRepository interface {
	Create(ctx context.Context, payout *domain.PayoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	// Transition applies t only if the request is still in t.From. tx may be nil.
	Transition(ctx context.Context, tx pgx.Tx, t PayoutTransition) (bool, error)
	List(ctx context.Context, params PayoutListParams) ([]domain.PayoutRequest, int64, error)
}

// ReviewCaseRepository defines persistence operations for manual review cases.
type ReviewCaseRepository interface {
	// Create inserts the case unless one exists for the provider transaction.
	Create(ctx context.Context, rc *domain.ReviewCase) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ReviewCase, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.ReviewCase, error)
	// Resolve closes an OPEN case; false when it was already resolved.
	Resolve(ctx context.Context, id uuid.UUID, resolution, actor string, at time.Time) (bool, error)
	List(ctx context.Context, status *domain.ReviewStatus, page, pageSize int) ([]domain.ReviewCase, int64, error)
}

// AuditRepository persists audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
