package ports

import (
	"context"

	"marketplace-settlement/internal/core/domain"
)

// GatewayPaymentRequest asks a provider to open a payment for an order.
type GatewayPaymentRequest struct {
	OrderID       string
	Amount        int64
	Description   string
	ReferenceText string
}

// GatewayPayment is the provider's answer to a payment creation.
type GatewayPayment struct {
	ProviderRef string
	CheckoutURL string
}

// PaymentGateway is the outbound side of an upstream provider.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req GatewayPaymentRequest) (*GatewayPayment, error)
	// QueryPayment asks the provider whether money arrived for the order.
	// Returns nil, nil when nothing has been received yet.
	QueryPayment(ctx context.Context, orderID string) (*domain.PaymentNotification, error)
}

// GatewayRegistry resolves the outbound gateway of a provider.
type GatewayRegistry interface {
	// For returns nil when the provider is unknown.
	For(provider domain.Provider) PaymentGateway
}
