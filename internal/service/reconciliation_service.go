package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/metrics"
	"marketplace-settlement/pkg/tracing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ReconciliationServiceImpl implements ports.ReconciliationService.
type ReconciliationServiceImpl struct {
	paymentRepo ports.PaymentRepository
	reviewRepo  ports.ReviewCaseRepository
	ledger      ports.LedgerService
	wallets     ports.WalletService
	transactor  ports.DBTransactor
	idempCache  ports.IdempotencyCache
	gateways    ports.GatewayRegistry
	auditSvc    ports.AuditService
	cfg         config.SettlementConfig
	log         zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	paymentRepo ports.PaymentRepository,
	reviewRepo ports.ReviewCaseRepository,
	ledger ports.LedgerService,
	wallets ports.WalletService,
	transactor ports.DBTransactor,
	idempCache ports.IdempotencyCache,
	gateways ports.GatewayRegistry,
	auditSvc ports.AuditService,
	cfg config.SettlementConfig,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	return &ReconciliationServiceImpl{
		paymentRepo: paymentRepo,
		reviewRepo:  reviewRepo,
		ledger:      ledger,
		wallets:     wallets,
		transactor:  transactor,
		idempCache:  idempCache,
		gateways:    gateways,
		auditSvc:    auditSvc,
		cfg:         cfg,
		log:         log,
	}
}

// ProcessNotification matches one provider notification against the order it
// references and settles it at most once.
//
// Flow:
//  1. Redis fast path: a notification already settled returns DUPLICATE.
//  2. Parse the order reference; load the payment record.
//  3. PAID / FAILED records and amount mismatches never credit; anything
//     needing a human opens a review case.
//  4. One DB transaction: conditional PENDING -> PAID, then ORDER_CREDIT.
func (s *ReconciliationServiceImpl) ProcessNotification(ctx context.Context, n domain.PaymentNotification) (res *domain.ReconciliationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "reconciliation.process_notification",
		tracing.Provider(string(n.Provider)), tracing.TransactionID(n.TransactionID), tracing.Amount(n.Amount))
	defer func() { tracing.End(span, err) }()
	defer metrics.ObserveOp("process_notification")()

	if !n.Provider.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown provider %q", n.Provider))
	}
	if n.TransactionID == "" {
		return nil, apperror.Validation("transaction id is required")
	}
	if n.Amount <= 0 {
		// Acknowledged so the provider stops redelivering; nothing can settle on it.
		res = &domain.ReconciliationResult{TransactionID: n.TransactionID, Outcome: domain.OutcomeInvalidAmount}
		if orderID, ok := domain.ParseOrderReference(n.ReferenceText); ok {
			res.OrderID = orderID
		}
		s.finish(ctx, n, res)
		return res, nil
	}

	cacheKey := notificationKey(n)
	if cached := s.cachedResult(ctx, cacheKey); cached != nil {
		cached.Outcome = domain.OutcomeDuplicate
		s.finish(ctx, n, cached)
		return cached, nil
	}

	res, err = s.reconcile(ctx, n)
	if err != nil {
		s.log.Error().Err(err).
			Str("provider", string(n.Provider)).
			Str("transaction_id", n.TransactionID).
			Msg("notification processing failed")
		return nil, err
	}

	s.finish(ctx, n, res)
	if res.Outcome == domain.OutcomeSettled || res.Outcome == domain.OutcomeDuplicate {
		s.cacheResult(ctx, cacheKey, res)
	}
	return res, nil
}

func (s *ReconciliationServiceImpl) reconcile(ctx context.Context, n domain.PaymentNotification) (*domain.ReconciliationResult, error) {
	res := &domain.ReconciliationResult{TransactionID: n.TransactionID}

	orderID, ok := domain.ParseOrderReference(n.ReferenceText)
	if !ok {
		res.Outcome = domain.OutcomeUnparsable
		return res, nil
	}
	res.OrderID = orderID

	rec, err := s.paymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment record: %w", err))
	}
	if rec == nil {
		res.Outcome = domain.OutcomeUnknownOrder
		return res, nil
	}
	res.PaymentStatus = rec.Status

	switch rec.Status {
	case domain.PaymentStatusPaid:
		if rec.PaidBy(n.TransactionID) {
			res.Outcome = domain.OutcomeDuplicate
			return res, nil
		}
		res.Outcome = domain.OutcomeConflictingPayment
		return s.openReview(ctx, n, rec, domain.ReviewReasonConflictingPayment, res)
	case domain.PaymentStatusFailed:
		res.Outcome = domain.OutcomePaymentFailed
		return s.openReview(ctx, n, rec, domain.ReviewReasonConflictingPayment, res)
	}

	if n.Amount != rec.ExpectedAmount {
		res.Outcome = domain.OutcomeAmountMismatch
		return s.openReview(ctx, n, rec, domain.ReviewReasonAmountMismatch, res)
	}

	return s.settle(ctx, n, rec, res)
}

// settle marks the record paid and credits the seller in one transaction.
func (s *ReconciliationServiceImpl) settle(ctx context.Context, n domain.PaymentNotification, rec *domain.PaymentRecord, res *domain.ReconciliationResult) (*domain.ReconciliationResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	won, err := s.paymentRepo.MarkPaid(ctx, dbTx, rec.OrderID, n.TransactionID, time.Now().UTC())
	if errors.Is(err, domain.ErrTransactionIDUsed) {
		_ = dbTx.Rollback(ctx)
		res.Outcome = domain.OutcomeConflictingPayment
		return s.openReview(ctx, n, rec, domain.ReviewReasonConflictingPayment, res)
	}
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark payment paid: %w", err))
	}
	if !won {
		_ = dbTx.Rollback(ctx)
		return s.lostRace(ctx, n, rec, res)
	}

	entry, err := s.ledger.AppendTx(ctx, dbTx, ports.AppendRequest{
		WalletID:    rec.WalletID,
		Kind:        domain.EntryKindOrderCredit,
		Amount:      n.Amount,
		ReferenceID: rec.OrderID,
		Note:        fmt.Sprintf("%s %s", n.Provider, n.TransactionID),
	})
	if errors.Is(err, domain.ErrDuplicateEntry) {
		return nil, apperror.InternalError(fmt.Errorf("order %s credited while still pending: %w", rec.OrderID, err))
	}
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	res.Outcome = domain.OutcomeSettled
	res.PaymentStatus = domain.PaymentStatusPaid
	res.LedgerEntryID = &entry.ID
	return res, nil
}

// lostRace reports a notification whose record left PENDING under us.
// Money that did not settle the order goes to review.
func (s *ReconciliationServiceImpl) lostRace(ctx context.Context, n domain.PaymentNotification, rec *domain.PaymentRecord, res *domain.ReconciliationResult) (*domain.ReconciliationResult, error) {
	latest, err := s.paymentRepo.GetByOrderID(ctx, rec.OrderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("reload payment record: %w", err))
	}
	if latest == nil {
		return nil, apperror.InternalError(fmt.Errorf("payment record %s disappeared", rec.OrderID))
	}

	res.PaymentStatus = latest.Status
	if latest.PaidBy(n.TransactionID) {
		res.Outcome = domain.OutcomeDuplicate
		return res, nil
	}
	res.Outcome = domain.OutcomeLostRace
	return s.openReview(ctx, n, latest, domain.ReviewReasonConflictingPayment, res)
}

// openReview records the notification for an operator. Redelivery of the same
// provider transaction reuses the existing case.
func (s *ReconciliationServiceImpl) openReview(ctx context.Context, n domain.PaymentNotification, rec *domain.PaymentRecord,
	reason domain.ReviewReason, res *domain.ReconciliationResult) (*domain.ReconciliationResult, error) {
	rc := &domain.ReviewCase{
		ID:                    uuid.New(),
		OrderID:               rec.OrderID,
		Provider:              n.Provider,
		ProviderTransactionID: n.TransactionID,
		Reason:                reason,
		ExpectedAmount:        rec.ExpectedAmount,
		ReceivedAmount:        n.Amount,
		ReferenceText:         n.ReferenceText,
		Status:                domain.ReviewStatusOpen,
		CreatedAt:             time.Now().UTC(),
	}

	created, err := s.reviewRepo.Create(ctx, rc)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create review case: %w", err))
	}
	if !created {
		existing, err := s.reviewRepo.GetByTransactionID(ctx, n.TransactionID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get review case: %w", err))
		}
		if existing != nil {
			rc = existing
		}
	} else {
		s.log.Warn().
			Str("order_id", rec.OrderID).
			Str("transaction_id", n.TransactionID).
			Str("reason", string(reason)).
			Int64("expected", rec.ExpectedAmount).
			Int64("received", n.Amount).
			Msg("review case opened")
	}

	res.ReviewCaseID = &rc.ID
	return res, nil
}

// finish records metrics, logs and the audit trail for a result.
func (s *ReconciliationServiceImpl) finish(ctx context.Context, n domain.PaymentNotification, res *domain.ReconciliationResult) {
	metrics.NotificationsTotal.WithLabelValues(string(n.Provider), string(res.Outcome)).Inc()

	s.log.Info().
		Str("provider", string(n.Provider)).
		Str("transaction_id", n.TransactionID).
		Str("order_id", res.OrderID).
		Int64("amount", n.Amount).
		Str("outcome", string(res.Outcome)).
		Msg("notification processed")

	action := domain.AuditActionNotificationRejected
	switch {
	case res.ReviewCaseID != nil:
		action = domain.AuditActionNotificationReview
	case res.Outcome == domain.OutcomeSettled:
		action = domain.AuditActionNotificationSettled
	case res.Outcome == domain.OutcomeDuplicate:
		action = domain.AuditActionNotificationDuplicate
	}

	resourceID := res.OrderID
	if resourceID == "" {
		resourceID = n.TransactionID
	}
	details := map[string]any{
		"provider":       n.Provider,
		"transaction_id": n.TransactionID,
		"amount":         n.Amount,
		"reference_text": n.ReferenceText,
		"outcome":        res.Outcome,
	}
	if res.ReviewCaseID != nil {
		details["review_case_id"] = res.ReviewCaseID.String()
	}
	audit(ctx, s.auditSvc, domain.ActorSystem, action, "payment", resourceID, details)
}

func notificationKey(n domain.PaymentNotification) string {
	return string(n.Provider) + ":" + n.TransactionID
}

// cachedResult reads the Redis fast path. Failures fall through to the DB.
func (s *ReconciliationServiceImpl) cachedResult(ctx context.Context, key string) *domain.ReconciliationResult {
	if s.idempCache == nil {
		return nil
	}
	raw, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if raw == nil {
		return nil
	}
	var res domain.ReconciliationResult
	if err := json.Unmarshal(raw, &res); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached outcome")
		return nil
	}
	return &res
}

func (s *ReconciliationServiceImpl) cacheResult(ctx context.Context, key string, res *domain.ReconciliationResult) {
	if s.idempCache == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, key, raw, s.cfg.IdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache notification outcome")
	}
}

// CreatePayment registers what an order owes. Repeating the same request
// returns the existing record; a different amount, seller or method conflicts.
func (s *ReconciliationServiceImpl) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (res *ports.CreatePaymentResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "reconciliation.create_payment", tracing.OrderID(req.OrderID), tracing.Amount(req.Amount))
	defer func() { tracing.End(span, err) }()

	orderID, ok := domain.NormalizeOrderID(req.OrderID)
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("invalid order id %q", req.OrderID))
	}
	if req.SellerID == "" {
		return nil, apperror.Validation("seller id is required")
	}
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Method.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown payment method %q", req.Method))
	}
	req.OrderID = orderID

	existing, err := s.paymentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment record: %w", err))
	}
	if existing != nil {
		return s.existingPayment(ctx, existing, req)
	}

	wallet, err := s.wallets.GetOrCreate(ctx, req.SellerID, domain.WalletRoleSeller)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &domain.PaymentRecord{
		OrderID:        orderID,
		SellerID:       req.SellerID,
		WalletID:       wallet.ID,
		ExpectedAmount: req.Amount,
		Method:         req.Method,
		Status:         domain.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Remote calls happen before anything is persisted.
	instructions, err := s.instructions(ctx, rec)
	if err != nil {
		return nil, err
	}

	created, err := s.paymentRepo.Create(ctx, rec)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment record: %w", err))
	}
	if !created {
		existing, err := s.paymentRepo.GetByOrderID(ctx, orderID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get payment record: %w", err))
		}
		if existing == nil {
			return nil, apperror.InternalError(fmt.Errorf("payment record %s missing after conflicting insert", orderID))
		}
		return s.existingPayment(ctx, existing, req)
	}

	s.log.Info().
		Str("order_id", orderID).
		Str("seller_id", req.SellerID).
		Int64("amount", req.Amount).
		Str("method", string(req.Method)).
		Msg("payment registered")
	audit(ctx, s.auditSvc, actorOr(req.RequestedBy), domain.AuditActionPaymentCreated, "payment", orderID, map[string]any{
		"seller_id": req.SellerID,
		"amount":    req.Amount,
		"method":    req.Method,
	})

	return &ports.CreatePaymentResult{Payment: rec, Instructions: instructions}, nil
}

func (s *ReconciliationServiceImpl) existingPayment(ctx context.Context, rec *domain.PaymentRecord, req ports.CreatePaymentRequest) (*ports.CreatePaymentResult, error) {
	if rec.SellerID != req.SellerID || rec.ExpectedAmount != req.Amount || rec.Method != req.Method {
		return nil, apperror.Conflict(fmt.Sprintf("order %s already has a different payment", rec.OrderID))
	}
	result := &ports.CreatePaymentResult{Payment: rec}
	if !rec.IsPending() {
		return result, nil
	}
	instructions, err := s.instructions(ctx, rec)
	if err != nil {
		return nil, err
	}
	result.Instructions = instructions
	return result, nil
}

// instructions tells the buyer how to pay. Cash on delivery has none.
func (s *ReconciliationServiceImpl) instructions(ctx context.Context, rec *domain.PaymentRecord) (*domain.PaymentInstructions, error) {
	if rec.Method == domain.PaymentMethodCashOnDelivery {
		return nil, nil
	}

	in := &domain.PaymentInstructions{
		Method:        rec.Method,
		TransferNote:  domain.TransferNote(s.cfg.TransferPrefix, rec.OrderID),
		DisplayAmount: s.displayAmount(rec.ExpectedAmount),
		Currency:      s.cfg.Currency,
	}

	if rec.Method == domain.PaymentMethodBankTransfer {
		in.BankCode = s.cfg.BankAccount.BankCode
		in.AccountNumber = s.cfg.BankAccount.AccountNumber
		in.AccountName = s.cfg.BankAccount.AccountName
		return in, nil
	}

	provider := rec.Method.Provider()
	gw := s.gateways.For(provider)
	if gw == nil {
		return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("no gateway for %s", provider))
	}
	gp, err := gw.CreatePayment(ctx, ports.GatewayPaymentRequest{
		OrderID:       rec.OrderID,
		Amount:        rec.ExpectedAmount,
		Description:   "Payment for " + rec.OrderID,
		ReferenceText: in.TransferNote,
	})
	if err != nil {
		return nil, err
	}
	in.CheckoutURL = gp.CheckoutURL
	in.ProviderRef = gp.ProviderRef
	return in, nil
}

// displayAmount renders minor units with the configured number of decimals.
func (s *ReconciliationServiceImpl) displayAmount(amount int64) string {
	return decimal.New(amount, -s.cfg.MinorUnitScale).StringFixed(s.cfg.MinorUnitScale)
}

// GetPayment returns the record of an order.
func (s *ReconciliationServiceImpl) GetPayment(ctx context.Context, orderID string) (*domain.PaymentRecord, error) {
	normalized, ok := domain.NormalizeOrderID(orderID)
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("invalid order id %q", orderID))
	}
	rec, err := s.paymentRepo.GetByOrderID(ctx, normalized)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment record: %w", err))
	}
	if rec == nil {
		return nil, apperror.ErrNotFound("payment")
	}
	return rec, nil
}

// FailPayment closes a PENDING payment on an operator's decision.
func (s *ReconciliationServiceImpl) FailPayment(ctx context.Context, orderID, reason, actor string) (*domain.PaymentRecord, error) {
	if reason == "" {
		return nil, apperror.Validation("reason is required")
	}
	rec, err := s.GetPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !rec.IsPending() {
		return nil, apperror.ErrIllegalTransition("payment", string(rec.Status), string(domain.PaymentStatusFailed))
	}

	ok, err := s.paymentRepo.MarkFailed(ctx, rec.OrderID, reason)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark payment failed: %w", err))
	}

	latest, err := s.GetPayment(ctx, rec.OrderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrIllegalTransition("payment", string(latest.Status), string(domain.PaymentStatusFailed))
	}

	s.log.Info().Str("order_id", rec.OrderID).Str("actor", actor).Str("reason", reason).Msg("payment failed")
	audit(ctx, s.auditSvc, actor, domain.AuditActionPaymentFailed, "payment", rec.OrderID, map[string]any{
		"reason": reason,
	})
	return latest, nil
}

func actorOr(actor string) string {
	if actor == "" {
		return domain.ActorSystem
	}
	return actor
}
