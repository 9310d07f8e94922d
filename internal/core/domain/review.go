package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReviewReason explains why a notification needs an operator.
type ReviewReason string

const (
	ReviewReasonAmountMismatch     ReviewReason = "AMOUNT_MISMATCH"
	ReviewReasonConflictingPayment ReviewReason = "CONFLICTING_PAYMENT"
)

// ReviewStatus is the state of a manual review case.
type ReviewStatus string

const (
	ReviewStatusOpen     ReviewStatus = "OPEN"
	ReviewStatusResolved ReviewStatus = "RESOLVED"
)

// ReviewCase records money that arrived but could not be settled automatically.
// At most one case exists per provider transaction.
type ReviewCase struct {
	ID                    uuid.UUID    `json:"id"`
	OrderID               string       `json:"order_id"`
	Provider              Provider     `json:"provider"`
	ProviderTransactionID string       `json:"provider_transaction_id"`
	Reason                ReviewReason `json:"reason"`
	ExpectedAmount        int64        `json:"expected_amount"`
	ReceivedAmount        int64        `json:"received_amount"`
	ReferenceText         string       `json:"reference_text"`
	Status                ReviewStatus `json:"status"`
	Resolution            *string      `json:"resolution,omitempty"`
	ResolvedBy            *string      `json:"resolved_by,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	ResolvedAt            *time.Time   `json:"resolved_at,omitempty"`
}
