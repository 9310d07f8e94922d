package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletRole distinguishes the two kinds of payees a user can be.
type WalletRole string

const (
	WalletRoleSeller  WalletRole = "SELLER"
	WalletRoleCourier WalletRole = "COURIER"
)

// Valid reports whether r is a known wallet role.
func (r WalletRole) Valid() bool {
	return r == WalletRoleSeller || r == WalletRoleCourier
}

// WalletStatus represents the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "ACTIVE"
	WalletStatusFrozen WalletStatus = "FROZEN"
)

// Valid reports whether s is a known wallet status.
func (s WalletStatus) Valid() bool {
	return s == WalletStatusActive || s == WalletStatusFrozen
}

// Wallet holds the cached balance of one owner acting in one role.
// Amounts are integer minor currency units.
type Wallet struct {
	ID            uuid.UUID    `json:"id"`
	OwnerID       string       `json:"owner_id"`
	Role          WalletRole   `json:"role"`
	Status        WalletStatus `json:"status"`
	Balance       int64        `json:"balance"`
	TotalCredited int64        `json:"total_credited"`
	TotalDebited  int64        `json:"total_debited"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewWallet returns an empty active wallet for the owner and role.
func NewWallet(ownerID string, role WalletRole) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Role:      role,
		Status:    WalletStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive returns true if the wallet accepts debits.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// TotalsConsistent reports whether the cached balance matches the running totals.
func (w *Wallet) TotalsConsistent() bool {
	return w.Balance == w.TotalCredited-w.TotalDebited
}
