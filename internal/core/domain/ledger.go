package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntryKind is the closed set of ledger movements.
type EntryKind string

const (
	EntryKindOrderCredit   EntryKind = "ORDER_CREDIT"
	EntryKindWithdrawal    EntryKind = "WITHDRAWAL"
	EntryKindAdjustment    EntryKind = "ADJUSTMENT"
	EntryKindPayoutReserve EntryKind = "PAYOUT_RESERVE"
	EntryKindPayoutRelease EntryKind = "PAYOUT_RELEASE"
)

var (
	ErrUnknownEntryKind = errors.New("unknown ledger entry kind")
	ErrAmountSign       = errors.New("amount sign does not match entry kind")
	ErrMissingReference = errors.New("reference id required for this entry kind")

	// ErrDuplicateEntry is returned by in-transaction appends when an entry with
	// the same wallet, reference and kind is already recorded. The caller must
	// roll back its transaction.
	ErrDuplicateEntry = errors.New("ledger entry already recorded")

	// ErrBrokenChain means stored entries do not fold into a consistent history.
	ErrBrokenChain = errors.New("ledger chain broken")
)

// Valid reports whether k is one of the known kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindOrderCredit, EntryKindWithdrawal, EntryKindAdjustment,
		EntryKindPayoutReserve, EntryKindPayoutRelease:
		return true
	}
	return false
}

// IsIdempotent reports whether at most one entry may exist per
// (wallet, reference, kind). Adjustments are operator corrections and may repeat.
func (k EntryKind) IsIdempotent() bool {
	return k.Valid() && k != EntryKindAdjustment
}

// CheckAmount validates the signed amount against the kind's sign rule.
func (k EntryKind) CheckAmount(amount int64) error {
	switch k {
	case EntryKindOrderCredit, EntryKindPayoutRelease:
		if amount <= 0 {
			return fmt.Errorf("%s must be positive: %w", k, ErrAmountSign)
		}
	case EntryKindWithdrawal, EntryKindPayoutReserve:
		if amount >= 0 {
			return fmt.Errorf("%s must be negative: %w", k, ErrAmountSign)
		}
	case EntryKindAdjustment:
		if amount == 0 {
			return fmt.Errorf("%s must be non-zero: %w", k, ErrAmountSign)
		}
	default:
		return fmt.Errorf("%q: %w", k, ErrUnknownEntryKind)
	}
	return nil
}

// LedgerEntry is an immutable record of one balance change.
type LedgerEntry struct {
	ID            uuid.UUID `json:"id"`
	WalletID      uuid.UUID `json:"wallet_id"`
	Kind          EntryKind `json:"kind"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Replay is the result of folding a wallet's entries in creation order.
type Replay struct {
	Balance       int64 `json:"balance"`
	TotalCredited int64 `json:"total_credited"`
	TotalDebited  int64 `json:"total_debited"`
	Entries       int   `json:"entries"`
}

// ReplayEntries folds entries (oldest first) and checks that every entry's
// before/after pair chains onto the previous one.
func ReplayEntries(entries []LedgerEntry) (Replay, error) {
	var r Replay
	for i, e := range entries {
		if e.BalanceBefore != r.Balance {
			return r, fmt.Errorf("%w: entry %d (%s): balance_before %d, expected %d", ErrBrokenChain, i, e.ID, e.BalanceBefore, r.Balance)
		}
		if e.BalanceAfter != e.BalanceBefore+e.Amount {
			return r, fmt.Errorf("%w: entry %d (%s): balance_after %d != %d%+d", ErrBrokenChain, i, e.ID, e.BalanceAfter, e.BalanceBefore, e.Amount)
		}
		r.Balance += e.Amount
		if e.Amount > 0 {
			r.TotalCredited += e.Amount
		} else {
			r.TotalDebited -= e.Amount
		}
		r.Entries++
	}
	return r, nil
}
