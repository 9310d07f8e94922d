package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) ports.PaymentGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(domain.ProviderGatewayA, config.ProviderConfig{
		BaseURL: srv.URL,
		APIKey:  "key-a",
		Timeout: time.Second,
	}, zerolog.Nop())
}

func TestCreatePayment(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Equal(t, "Bearer key-a", r.Header.Get("Authorization"))

		var body createPaymentBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "500", body.OrderID)
		assert.Equal(t, int64(1000), body.Amount)
		assert.Equal(t, "PAY ORDER500", body.Reference)

		_ = json.NewEncoder(w).Encode(createPaymentResponse{ProviderRef: "GA-1", CheckoutURL: "https://pay.example/GA-1"})
	})

	got, err := gw.CreatePayment(context.Background(), ports.GatewayPaymentRequest{
		OrderID: "500", Amount: 1000, ReferenceText: "PAY ORDER500",
	})
	require.NoError(t, err)
	assert.Equal(t, "GA-1", got.ProviderRef)
	assert.Equal(t, "https://pay.example/GA-1", got.CheckoutURL)
}

func TestQueryPayment_Paid(t *testing.T) {
	paidAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "500", r.URL.Query().Get("order_id"))
		_ = json.NewEncoder(w).Encode(paymentStatusResponse{
			Status: "PAID", TransactionID: "GA-TX-1", Amount: 1000, Reference: "PAY ORDER500", PaidAt: paidAt,
		})
	})

	n, err := gw.QueryPayment(context.Background(), "500")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, domain.ProviderGatewayA, n.Provider)
	assert.Equal(t, "GA-TX-1", n.TransactionID)
	assert.Equal(t, int64(1000), n.Amount)
	assert.Equal(t, paidAt, n.OccurredAt)
}

func TestQueryPayment_NothingYet(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"pending", func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(paymentStatusResponse{Status: "PENDING"})
		}},
		{"not found", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := newTestGateway(t, tt.handler).QueryPayment(context.Background(), "500")
			require.NoError(t, err)
			assert.Nil(t, n)
		})
	}
}

func TestQueryPayment_ProviderError(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(apiError{Error: "unavailable", Message: "maintenance"})
	})

	_, err := gw.QueryPayment(context.Background(), "500")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeGatewayUnavailable))
	assert.ErrorContains(t, err, "maintenance")
}

func TestDisabledGateway(t *testing.T) {
	gw := New(domain.ProviderGatewayB, config.ProviderConfig{}, zerolog.Nop())

	_, err := gw.CreatePayment(context.Background(), ports.GatewayPaymentRequest{OrderID: "1"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = gw.QueryPayment(context.Background(), "1")
	assert.True(t, apperror.HasCode(err, apperror.CodeGatewayUnavailable))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(config.GatewaysConfig{
		GatewayA: config.ProviderConfig{BaseURL: "https://gw-a.example"},
	}, zerolog.Nop())

	assert.IsType(t, &Client{}, reg.For(domain.ProviderGatewayA))
	assert.IsType(t, disabled{}, reg.For(domain.ProviderGatewayB))
	assert.Nil(t, reg.For(domain.Provider("paypal")))
}
