package service

import (
	"context"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/metrics"
	"marketplace-settlement/pkg/tracing"

	"github.com/rs/zerolog"
)

const defaultRequeryInterval = 30 * time.Second

// VerifierServiceImpl implements ports.VerifierService.
type VerifierServiceImpl struct {
	recon    ports.ReconciliationService
	gateways ports.GatewayRegistry
	throttle ports.ThrottleStore
	interval time.Duration
	log      zerolog.Logger
}

// NewVerifierService creates a new VerifierServiceImpl. requeryInterval is the
// minimum spacing between upstream queries for one order.
func NewVerifierService(
	recon ports.ReconciliationService,
	gateways ports.GatewayRegistry,
	throttle ports.ThrottleStore,
	requeryInterval time.Duration,
	log zerolog.Logger,
) *VerifierServiceImpl {
	if requeryInterval <= 0 {
		requeryInterval = defaultRequeryInterval
	}
	return &VerifierServiceImpl{
		recon:    recon,
		gateways: gateways,
		throttle: throttle,
		interval: requeryInterval,
		log:      log,
	}
}

// CheckPayment reports whether the order has been paid. With requery set, a
// PENDING non-cash order is looked up at its provider and anything found goes
// through ProcessNotification like a webhook would.
func (s *VerifierServiceImpl) CheckPayment(ctx context.Context, orderID string, requery bool) (res *ports.VerificationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "verifier.check", tracing.OrderID(orderID))
	defer func() { tracing.End(span, err) }()
	defer metrics.ObserveOp("verifier_check")()

	rec, err := s.recon.GetPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	res = verification(rec)

	provider := rec.Method.Provider()
	if !requery || !rec.IsPending() || provider == "" {
		return res, nil
	}

	gw := s.gateways.For(provider)
	if gw == nil {
		return res, nil
	}

	acquired, err := s.throttle.Acquire(ctx, "requery:"+rec.OrderID, s.interval)
	if err != nil {
		// Without the shared throttle every instance could hammer the provider.
		s.log.Warn().Err(err).Str("order_id", rec.OrderID).Msg("requery throttle unavailable, serving stored status")
		return res, nil
	}
	if !acquired {
		return res, nil
	}

	res.Requeried = true
	n, err := gw.QueryPayment(ctx, rec.OrderID)
	if err != nil {
		return nil, err
	}
	if n == nil {
		s.log.Debug().Str("order_id", rec.OrderID).Str("provider", string(provider)).Msg("requery found nothing")
		return res, nil
	}
	if n.Provider == "" {
		n.Provider = provider
	}

	outcome, err := s.recon.ProcessNotification(ctx, *n)
	if err != nil {
		return nil, err
	}

	latest, err := s.recon.GetPayment(ctx, rec.OrderID)
	if err != nil {
		return nil, err
	}
	res = verification(latest)
	res.Requeried = true
	res.Outcome = &outcome.Outcome

	s.log.Info().
		Str("order_id", rec.OrderID).
		Str("provider", string(provider)).
		Str("transaction_id", n.TransactionID).
		Str("outcome", string(outcome.Outcome)).
		Msg("payment requeried")
	return res, nil
}

func verification(rec *domain.PaymentRecord) *ports.VerificationResult {
	return &ports.VerificationResult{
		OrderID: rec.OrderID,
		Matched: rec.Status == domain.PaymentStatusPaid,
		Status:  rec.Status,
	}
}
