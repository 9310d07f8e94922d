package dto

import "time"

// CreatePaymentRequest registers the amount due for an order.
type CreatePaymentRequest struct {
	OrderID  string `json:"order_id" binding:"required,order_id"`
	SellerID string `json:"seller_id" binding:"required,max=64,safe_id"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Method   string `json:"method" binding:"required,payment_method"`
}

// VerifyPaymentRequest asks whether an order has been paid. Requery asks the
// upstream provider when the order is still pending.
type VerifyPaymentRequest struct {
	Requery bool `json:"requery"`
}

// FailPaymentRequest is an operator marking a pending payment as failed.
type FailPaymentRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// WebhookNotification is the payload every provider posts.
type WebhookNotification struct {
	TransactionID string     `json:"transactionId" binding:"required,max=128"`
	Amount        int64      `json:"amount"`
	ReferenceText string     `json:"referenceText" binding:"max=512"`
	OccurredAt    *time.Time `json:"occurredAt"`
}

// WalletQuery selects one of the caller's wallets.
type WalletQuery struct {
	Role string `form:"role" binding:"omitempty,oneof=SELLER COURIER"`
}

// PageQuery holds pagination parameters.
type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// PayoutRequest asks to withdraw wallet funds to a bank account.
type PayoutRequest struct {
	Role          string `json:"role" binding:"omitempty,oneof=SELLER COURIER"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	BankCode      string `json:"bank_code" binding:"required,max=20,safe_id"`
	AccountNumber string `json:"account_number" binding:"required,max=34,numeric"`
	AccountName   string `json:"account_name" binding:"required,max=100"`
}

// RejectPayoutRequest is the body of a payout rejection.
type RejectPayoutRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ResolveReviewRequest closes a review case.
type ResolveReviewRequest struct {
	Resolution string `json:"resolution" binding:"required,max=1000"`
}

// AdjustmentRequest is a reviewer correction to a wallet. Amount is signed.
type AdjustmentRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	Note        string `json:"note" binding:"required,max=500"`
	ReferenceID string `json:"reference_id" binding:"max=100"`
}

// WalletStatusRequest freezes or unfreezes a wallet.
type WalletStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE FROZEN"`
}

// StatusQuery filters list endpoints by status.
type StatusQuery struct {
	Status string `form:"status"`
	PageQuery
}
