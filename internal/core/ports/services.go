package ports

import (
	"context"

	"marketplace-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// Caller roles carried in access tokens.
const (
	RoleBuyer    = "BUYER"
	RoleSeller   = "SELLER"
	RoleCourier  = "COURIER"
	RoleReviewer = "REVIEWER"
)

// TokenClaims holds the verified caller identity.
type TokenClaims struct {
	Subject string
	Role    string
}

// TokenService validates access tokens issued by the identity provider.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// AuditService records audit entries.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Ledger ---

// AppendRequest describes one ledger movement.
type AppendRequest struct {
	WalletID    uuid.UUID
	Kind        domain.EntryKind
	Amount      int64 // signed
	ReferenceID string
	Note        string
}

// AppendResult is the recorded entry; Duplicate is set when an earlier
// identical append was found and nothing changed.
type AppendResult struct {
	Entry     *domain.LedgerEntry
	Duplicate bool
}

// LedgerService is the only writer of wallet balances.
type LedgerService interface {
	// Append records the entry and updates the balance in its own transaction.
	Append(ctx context.Context, req AppendRequest) (*AppendResult, error)
	// AppendTx records the entry inside the caller's transaction. Returns
	// domain.ErrDuplicateEntry when the idempotency key is taken; the caller
	// must then roll back.
	AppendTx(ctx context.Context, tx pgx.Tx, req AppendRequest) (*domain.LedgerEntry, error)
	ListEntries(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error)
	// ReplayBalance recomputes the wallet from its entries.
	ReplayBalance(ctx context.Context, walletID uuid.UUID) (*domain.Replay, error)
}

// --- Wallets ---

// AdjustRequest is an operator correction to a wallet.
type AdjustRequest struct {
	WalletID    uuid.UUID
	Amount      int64
	ReferenceID string
	Note        string
	Actor       string
}

// WalletAudit compares a wallet's cached figures with its ledger.
type WalletAudit struct {
	Wallet     *domain.Wallet `json:"wallet"`
	Replay     domain.Replay  `json:"replay"`
	Consistent bool           `json:"consistent"`
	ChainError string         `json:"chain_error,omitempty"`
	// Inconclusive is set when the wallet kept changing while it was audited.
	Inconclusive bool `json:"inconclusive,omitempty"`
}

// WalletService manages wallets and routes credits and debits to the ledger.
type WalletService interface {
	GetOrCreate(ctx context.Context, ownerID string, role domain.WalletRole) (*domain.Wallet, error)
	Get(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error)
	// GetByOwner never creates; an owner without a wallet is NotFound.
	GetByOwner(ctx context.Context, ownerID string, role domain.WalletRole) (*domain.Wallet, error)
	GetBalance(ctx context.Context, walletID uuid.UUID) (int64, error)
	Credit(ctx context.Context, walletID uuid.UUID, amount int64, referenceID string) (*AppendResult, error)
	Debit(ctx context.Context, walletID uuid.UUID, amount int64, referenceID string) (*AppendResult, error)
	Adjust(ctx context.Context, req AdjustRequest) (*AppendResult, error)
	SetStatus(ctx context.Context, walletID uuid.UUID, status domain.WalletStatus, actor string) (*domain.Wallet, error)
	Audit(ctx context.Context, walletID uuid.UUID) (*WalletAudit, error)
}

// --- Payments ---

// CreatePaymentRequest registers the amount due for an order.
type CreatePaymentRequest struct {
	OrderID     string
	SellerID    string
	Amount      int64
	Method      domain.PaymentMethod
	RequestedBy string
}

// CreatePaymentResult carries the record and how the buyer should pay.
type CreatePaymentResult struct {
	Payment      *domain.PaymentRecord       `json:"payment"`
	Instructions *domain.PaymentInstructions `json:"instructions,omitempty"`
}

// ReconciliationService matches provider notifications to order payments.
type ReconciliationService interface {
	// ProcessNotification is the single entry point that settles payments.
	// Business rejections are reported in the result; errors mean the outcome
	// could not be made durable.
	ProcessNotification(ctx context.Context, n domain.PaymentNotification) (*domain.ReconciliationResult, error)
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)
	GetPayment(ctx context.Context, orderID string) (*domain.PaymentRecord, error)
	FailPayment(ctx context.Context, orderID, reason, actor string) (*domain.PaymentRecord, error)
}

// ReviewService exposes the manual review queue.
type ReviewService interface {
	List(ctx context.Context, status *domain.ReviewStatus, page, pageSize int) ([]domain.ReviewCase, int64, error)
	Resolve(ctx context.Context, id uuid.UUID, resolution, actor string) (*domain.ReviewCase, error)
}

// VerificationResult is the answer to a client payment check.
type VerificationResult struct {
	OrderID   string                        `json:"order_id"`
	Matched   bool                          `json:"matched"`
	Status    domain.PaymentStatus          `json:"status"`
	Requeried bool                          `json:"requeried"`
	Outcome   *domain.ReconciliationOutcome `json:"outcome,omitempty"`
}

// VerifierService answers "has this order been paid?".
type VerifierService interface {
	CheckPayment(ctx context.Context, orderID string, requery bool) (*VerificationResult, error)
}

// --- Payouts ---

// CreatePayoutRequest asks to withdraw from a wallet.
type CreatePayoutRequest struct {
	WalletID    uuid.UUID
	Amount      int64
	Destination domain.BankDestination
	RequestedBy string
}

// PayoutService drives the withdrawal workflow.
type PayoutService interface {
	Create(ctx context.Context, req CreatePayoutRequest) (*domain.PayoutRequest, error)
	Approve(ctx context.Context, id uuid.UUID, reviewerID string) (*domain.PayoutRequest, error)
	Reject(ctx context.Context, id uuid.UUID, reviewerID, reason string) (*domain.PayoutRequest, error)
	MarkTransferred(ctx context.Context, id uuid.UUID, operatorID string) (*domain.PayoutRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	List(ctx context.Context, params PayoutListParams) ([]domain.PayoutRequest, int64, error)
}
