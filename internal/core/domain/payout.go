package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus represents the lifecycle state of a withdrawal request.
type PayoutStatus string

const (
	PayoutStatusPending     PayoutStatus = "PENDING"
	PayoutStatusApproved    PayoutStatus = "APPROVED"
	PayoutStatusRejected    PayoutStatus = "REJECTED"
	PayoutStatusTransferred PayoutStatus = "TRANSFERRED"
)

// Valid reports whether s is a known payout status.
func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusApproved, PayoutStatusRejected, PayoutStatusTransferred:
		return true
	}
	return false
}

// IsTerminal returns true once the request can no longer change.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusRejected || s == PayoutStatusTransferred
}

// CanTransition reports whether a payout may move from s to next.
// PENDING -> APPROVED -> TRANSFERRED, PENDING -> REJECTED.
func (s PayoutStatus) CanTransition(next PayoutStatus) bool {
	switch s {
	case PayoutStatusPending:
		return next == PayoutStatusApproved || next == PayoutStatusRejected
	case PayoutStatusApproved:
		return next == PayoutStatusTransferred
	}
	return false
}

// BankDestination is where approved funds are sent.
type BankDestination struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// PayoutRequest asks to move money out of a wallet to a bank account.
type PayoutRequest struct {
	ID              uuid.UUID       `json:"id"`
	WalletID        uuid.UUID       `json:"wallet_id"`
	Amount          int64           `json:"amount"`
	Destination     BankDestination `json:"destination"`
	Status          PayoutStatus    `json:"status"`
	RejectionReason *string         `json:"rejection_reason,omitempty"`
	ProcessedBy     *string         `json:"processed_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	TransferredAt   *time.Time      `json:"transferred_at,omitempty"`
}
