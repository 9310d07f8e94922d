package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionNotificationSettled   AuditAction = "NOTIFICATION_SETTLED"
	AuditActionNotificationDuplicate AuditAction = "NOTIFICATION_DUPLICATE"
	AuditActionNotificationRejected  AuditAction = "NOTIFICATION_REJECTED"
	AuditActionNotificationReview    AuditAction = "NOTIFICATION_REVIEW"
	AuditActionPaymentCreated        AuditAction = "PAYMENT_CREATED"
	AuditActionPaymentFailed         AuditAction = "PAYMENT_FAILED"
	AuditActionPayoutCreated         AuditAction = "PAYOUT_CREATED"
	AuditActionPayoutApproved        AuditAction = "PAYOUT_APPROVED"
	AuditActionPayoutRejected        AuditAction = "PAYOUT_REJECTED"
	AuditActionPayoutTransferred     AuditAction = "PAYOUT_TRANSFERRED"
	AuditActionWalletAdjusted        AuditAction = "WALLET_ADJUSTED"
	AuditActionWalletStatusChanged   AuditAction = "WALLET_STATUS_CHANGED"
	AuditActionReviewResolved        AuditAction = "REVIEW_RESOLVED"
	AuditActionBalanceMismatch       AuditAction = "BALANCE_MISMATCH"
	AuditActionAccessDenied          AuditAction = "ACCESS_DENIED"
)

// ActorSystem identifies actions taken by the service itself.
const ActorSystem = "system"

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      string      `json:"actor_id"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
