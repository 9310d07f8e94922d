package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports/mocks"
	"marketplace-settlement/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type verifierTestDeps struct {
	svc      *VerifierServiceImpl
	recon    *mocks.MockReconciliationService
	gateways *mocks.MockGatewayRegistry
	gateway  *mocks.MockPaymentGateway
	throttle *mocks.MockThrottleStore
	ctrl     *gomock.Controller
}

func setupVerifierService(t *testing.T) *verifierTestDeps {
	ctrl := gomock.NewController(t)
	d := &verifierTestDeps{
		recon:    mocks.NewMockReconciliationService(ctrl),
		gateways: mocks.NewMockGatewayRegistry(ctrl),
		gateway:  mocks.NewMockPaymentGateway(ctrl),
		throttle: mocks.NewMockThrottleStore(ctrl),
		ctrl:     ctrl,
	}
	d.svc = NewVerifierService(d.recon, d.gateways, d.throttle, time.Minute, newTestLogger())
	return d
}

func recordWith(status domain.PaymentStatus, method domain.PaymentMethod) *domain.PaymentRecord {
	return &domain.PaymentRecord{OrderID: "order_500", ExpectedAmount: 70000, Method: method, Status: status}
}

func TestVerifierService_PureRead(t *testing.T) {
	d := setupVerifierService(t)
	defer d.ctrl.Finish()

	d.recon.EXPECT().GetPayment(gomock.Any(), "order_500").Return(recordWith(domain.PaymentStatusPaid, domain.PaymentMethodBankTransfer), nil)

	res, err := d.svc.CheckPayment(context.Background(), "order_500", false)
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, domain.PaymentStatusPaid, res.Status)
	assert.False(t, res.Requeried)
}

func TestVerifierService_NoRequeryWhenNotApplicable(t *testing.T) {
	tests := []struct {
		name   string
		record *domain.PaymentRecord
	}{
		{"already paid", recordWith(domain.PaymentStatusPaid, domain.PaymentMethodGatewayA)},
		{"failed", recordWith(domain.PaymentStatusFailed, domain.PaymentMethodGatewayA)},
		{"cash on delivery", recordWith(domain.PaymentStatusPending, domain.PaymentMethodCashOnDelivery)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupVerifierService(t)
			defer d.ctrl.Finish()

			d.recon.EXPECT().GetPayment(gomock.Any(), "order_500").Return(tt.record, nil)

			res, err := d.svc.CheckPayment(context.Background(), "order_500", true)
			require.NoError(t, err)
			assert.False(t, res.Requeried)
			assert.Equal(t, tt.record.Status, res.Status)
		})
	}
}

func TestVerifierService_RequerySettles(t *testing.T) {
	d := setupVerifierService(t)
	defer d.ctrl.Finish()

	n := &domain.PaymentNotification{TransactionID: "ga-77", Amount: 70000, ReferenceText: "order_500"}
	gomock.InOrder(
		d.recon.EXPECT().GetPayment(gomock.Any(), "order_500").Return(recordWith(domain.PaymentStatusPending, domain.PaymentMethodGatewayA), nil),
		d.gateways.EXPECT().For(domain.ProviderGatewayA).Return(d.gateway),
		d.throttle.EXPECT().Acquire(gomock.Any(), "requery:order_500", time.Minute).Return(true, nil),
		d.gateway.EXPECT().QueryPayment(gomock.Any(), "order_500").Return(n, nil),
		d.recon.EXPECT().ProcessNotification(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, got domain.PaymentNotification) (*domain.ReconciliationResult, error) {
				assert.Equal(t, domain.ProviderGatewayA, got.Provider)
				assert.Equal(t, "ga-77", got.TransactionID)
				return &domain.ReconciliationResult{Outcome: domain.OutcomeSettled, OrderID: "order_500"}, nil
			},
		),
		d.recon.EXPECT().GetPayment(gomock.Any(), "order_500").Return(recordWith(domain.PaymentStatusPaid, domain.PaymentMethodGatewayA), nil),
	)

	res, err := d.svc.CheckPayment(context.Background(), "order_500", true)
	require.NoError(t, err)
	assert.True(t, res.Requeried)
	assert.True(t, res.Matched)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, domain.OutcomeSettled, *res.Outcome)
}

func TestVerifierService_RequeryFindsNothing(t *testing.T) {
	d := setupVerifierService(t)
	defer d.ctrl.Finish()

	d.recon.EXPECT().GetPayment(gomock.Any(), "order_500").Return(recordWith(domain.PaymentStatusPending, domain.PaymentMethodBankTransfer), nil)
	d.gateways.EXPECT().For(domain.ProviderBankTransfer).Return(d.gateway)
	d.throttle.EXPECT().Acquire(gomock.Any(), "requery:order_500", time.Minute).Return(true, nil)
	d.gateway.EXPECT().QueryPayment(gomock.Any(), "order_500").Return(nil, nil)

	res, err := d.svc.CheckPayment(context.Background(), "order_500", true)
	require.NoError(t, err)
	assert.True(t, res.Requeried)
	assert.False(t, res.Matched)
	assert.Nil(t, res.Outcome)
}

func TestVerifierService_Throttled(t *testing.T) {
	d := setupVerifierService(t)
	defer d.ctrl.Finish()

	d.recon.EXPECT().GetPayment(gomock.Any(), "order_500").Return(recordWith(domain.PaymentStatusPending, domain.PaymentMethodGatewayB), nil)
	d.gateways.EXPECT().For(domain.ProviderGatewayB).Return(d.gateway)
	d.throttle.EXPECT().Acquire(gomock.Any(), "requery:order_500", time.Minute).Return(false, nil)

	res, err := d.svc.CheckPayment(context.Background(), "order_500", true)
	require.NoError(t, err)
	assert.False(t, res.Requeried)
	assert.Equal(t, domain.PaymentStatusPending, res.Status)
}

func TestVerifierService_ThrottleUnavailable(t *testing.T) {
	d := setupVerifierService(t)
	defer d.ctrl.Finish()

	d.recon.EXPECT().GetPayment(gomock.Any(), "order_500").Return(recordWith(domain.PaymentStatusPending, domain.PaymentMethodGatewayB), nil)
	d.gateways.EXPECT().For(domain.ProviderGatewayB).Return(d.gateway)
	d.throttle.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	res, err := d.svc.CheckPayment(context.Background(), "order_500", true)
	require.NoError(t, err)
	assert.False(t, res.Requeried)
}

func TestVerifierService_GatewayError(t *testing.T) {
	d := setupVerifierService(t)
	defer d.ctrl.Finish()

	d.recon.EXPECT().GetPayment(gomock.Any(), "order_500").Return(recordWith(domain.PaymentStatusPending, domain.PaymentMethodGatewayA), nil)
	d.gateways.EXPECT().For(domain.ProviderGatewayA).Return(d.gateway)
	d.throttle.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	d.gateway.EXPECT().QueryPayment(gomock.Any(), "order_500").Return(nil, apperror.ErrGatewayUnavailable(errors.New("timeout")))

	_, err := d.svc.CheckPayment(context.Background(), "order_500", true)
	assert.True(t, apperror.HasCode(err, apperror.CodeGatewayUnavailable))
}

func TestVerifierService_UnknownOrder(t *testing.T) {
	d := setupVerifierService(t)
	defer d.ctrl.Finish()

	d.recon.EXPECT().GetPayment(gomock.Any(), "order_9").Return(nil, apperror.ErrNotFound("payment"))

	_, err := d.svc.CheckPayment(context.Background(), "order_9", true)
	assert.True(t, apperror.HasCode(err, apperror.CodeNotFound))
}
