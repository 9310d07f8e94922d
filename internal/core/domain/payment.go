package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrTransactionIDUsed is returned when a provider transaction id is already
// attached to a different payment record.
var ErrTransactionIDUsed = errors.New("provider transaction id already used")

// PaymentMethod is how the buyer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentMethodBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentMethodGatewayA       PaymentMethod = "WALLET_GATEWAY_A"
	PaymentMethodGatewayB       PaymentMethod = "WALLET_GATEWAY_B"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCashOnDelivery, PaymentMethodBankTransfer,
		PaymentMethodGatewayA, PaymentMethodGatewayB:
		return true
	}
	return false
}

// Provider returns the upstream provider that settles this method, or ""
// for cash on delivery.
func (m PaymentMethod) Provider() Provider {
	switch m {
	case PaymentMethodBankTransfer:
		return ProviderBankTransfer
	case PaymentMethodGatewayA:
		return ProviderGatewayA
	case PaymentMethodGatewayB:
		return ProviderGatewayB
	}
	return ""
}

// Provider names an inbound notification source. Values match the webhook path.
type Provider string

const (
	ProviderBankTransfer Provider = "bank-transfer"
	ProviderGatewayA     Provider = "gateway-a"
	ProviderGatewayB     Provider = "gateway-b"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderBankTransfer || p == ProviderGatewayA || p == ProviderGatewayB
}

// PaymentStatus represents the lifecycle state of an order payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// PaymentRecord is the expected payment for one order.
type PaymentRecord struct {
	OrderID               string        `json:"order_id"`
	SellerID              string        `json:"seller_id"`
	WalletID              uuid.UUID     `json:"wallet_id"`
	ExpectedAmount        int64         `json:"expected_amount"`
	Method                PaymentMethod `json:"method"`
	Status                PaymentStatus `json:"status"`
	ProviderTransactionID *string       `json:"provider_transaction_id,omitempty"`
	FailureReason         *string       `json:"failure_reason,omitempty"`
	PaidAt                *time.Time    `json:"paid_at,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// IsPending returns true while the payment can still be settled or failed.
func (p *PaymentRecord) IsPending() bool {
	return p.Status == PaymentStatusPending
}

// PaidBy reports whether the record was settled by the given provider transaction.
func (p *PaymentRecord) PaidBy(transactionID string) bool {
	return p.Status == PaymentStatusPaid &&
		p.ProviderTransactionID != nil &&
		*p.ProviderTransactionID == transactionID
}

// PaymentNotification is an inbound "money arrived" event from a provider.
type PaymentNotification struct {
	Provider      Provider  `json:"provider"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	ReferenceText string    `json:"reference_text"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ReconciliationOutcome is the result of matching one notification.
type ReconciliationOutcome string

const (
	OutcomeSettled            ReconciliationOutcome = "SETTLED"
	OutcomeDuplicate          ReconciliationOutcome = "DUPLICATE"
	OutcomeUnparsable         ReconciliationOutcome = "REJECTED_UNPARSABLE"
	OutcomeUnknownOrder       ReconciliationOutcome = "REJECTED_UNKNOWN_ORDER"
	OutcomePaymentFailed      ReconciliationOutcome = "REJECTED_PAYMENT_FAILED"
	OutcomeInvalidAmount      ReconciliationOutcome = "REJECTED_INVALID_AMOUNT"
	OutcomeAmountMismatch     ReconciliationOutcome = "REVIEW_AMOUNT_MISMATCH"
	OutcomeConflictingPayment ReconciliationOutcome = "REVIEW_CONFLICTING_PAYMENT"
	OutcomeLostRace           ReconciliationOutcome = "LOST_RACE"
)

// Credited reports whether this outcome moved money into a wallet.
func (o ReconciliationOutcome) Credited() bool {
	return o == OutcomeSettled
}

// ReconciliationResult describes what happened to a notification.
type ReconciliationResult struct {
	Outcome       ReconciliationOutcome `json:"outcome"`
	OrderID       string                `json:"order_id,omitempty"`
	TransactionID string                `json:"transaction_id"`
	PaymentStatus PaymentStatus         `json:"payment_status,omitempty"`
	ReviewCaseID  *uuid.UUID            `json:"review_case_id,omitempty"`
	LedgerEntryID *uuid.UUID            `json:"ledger_entry_id,omitempty"`
}

// PaymentInstructions tell the buyer how to pay. Empty for cash on delivery.
type PaymentInstructions struct {
	Method        PaymentMethod `json:"method"`
	BankCode      string        `json:"bank_code,omitempty"`
	AccountNumber string        `json:"account_number,omitempty"`
	AccountName   string        `json:"account_name,omitempty"`
	TransferNote  string        `json:"transfer_note,omitempty"`
	DisplayAmount string        `json:"display_amount"`
	Currency      string        `json:"currency"`
	CheckoutURL   string        `json:"checkout_url,omitempty"`
	ProviderRef   string        `json:"provider_ref,omitempty"`
}
