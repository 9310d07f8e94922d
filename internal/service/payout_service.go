package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/metrics"
	"marketplace-settlement/pkg/tracing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PayoutServiceImpl implements ports.PayoutService.
type PayoutServiceImpl struct {
	payoutRepo ports.PayoutRepository
	walletRepo ports.WalletRepository
	ledger     ports.LedgerService
	transactor ports.DBTransactor
	auditSvc   ports.AuditService
	log        zerolog.Logger
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	payoutRepo ports.PayoutRepository,
	walletRepo ports.WalletRepository,
	ledger ports.LedgerService,
	transactor ports.DBTransactor,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *PayoutServiceImpl {
	return &PayoutServiceImpl{
		payoutRepo: payoutRepo,
		walletRepo: walletRepo,
		ledger:     ledger,
		transactor: transactor,
		auditSvc:   auditSvc,
		log:        log,
	}
}

// Create records a PENDING withdrawal request. Funds are checked but not held;
// the reservation happens at approval.
func (s *PayoutServiceImpl) Create(ctx context.Context, req ports.CreatePayoutRequest) (*domain.PayoutRequest, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Destination.BankCode == "" || req.Destination.AccountNumber == "" || req.Destination.AccountName == "" {
		return nil, apperror.Validation("destination bank code, account number and account name are required")
	}

	wallet, err := s.walletRepo.GetByID(ctx, req.WalletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !wallet.IsActive() {
		return nil, apperror.ErrWalletFrozen()
	}
	if req.Amount > wallet.Balance {
		return nil, apperror.ErrInsufficientFunds()
	}

	p := &domain.PayoutRequest{
		ID:          uuid.New(),
		WalletID:    req.WalletID,
		Amount:      req.Amount,
		Destination: req.Destination,
		Status:      domain.PayoutStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.payoutRepo.Create(ctx, p); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payout request: %w", err))
	}

	metrics.PayoutTransitionsTotal.WithLabelValues(string(domain.PayoutStatusPending)).Inc()
	s.log.Info().
		Str("payout_id", p.ID.String()).
		Str("wallet_id", p.WalletID.String()).
		Int64("amount", p.Amount).
		Msg("payout requested")
	audit(ctx, s.auditSvc, actorOr(req.RequestedBy), domain.AuditActionPayoutCreated, "payout", p.ID.String(), map[string]any{
		"wallet_id": p.WalletID.String(),
		"amount":    p.Amount,
		"bank_code": p.Destination.BankCode,
	})
	return p, nil
}

// Approve reserves the funds and moves the request to APPROVED in one
// transaction. If either step fails nothing is written and the request stays
// PENDING.
func (s *PayoutServiceImpl) Approve(ctx context.Context, id uuid.UUID, reviewerID string) (p *domain.PayoutRequest, err error) {
	ctx, span := tracing.StartSpan(ctx, "payout.approve", tracing.PayoutID(id.String()))
	defer func() { tracing.End(span, err) }()
	defer metrics.ObserveOp("payout_approve")()

	p, err = s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(domain.PayoutStatusApproved) {
		return nil, apperror.ErrIllegalTransition("payout", string(p.Status), string(domain.PayoutStatusApproved))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	won, err := s.payoutRepo.Transition(ctx, dbTx, ports.PayoutTransition{
		ID:    id,
		From:  domain.PayoutStatusPending,
		To:    domain.PayoutStatusApproved,
		Actor: reviewerID,
		At:    now,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("approve payout: %w", err))
	}
	if !won {
		_ = dbTx.Rollback(ctx)
		return nil, s.lostTransition(ctx, id, domain.PayoutStatusApproved)
	}

	entry, err := s.ledger.AppendTx(ctx, dbTx, ports.AppendRequest{
		WalletID:    p.WalletID,
		Kind:        domain.EntryKindPayoutReserve,
		Amount:      -p.Amount,
		ReferenceID: id.String(),
		Note:        "payout " + id.String(),
	})
	if errors.Is(err, domain.ErrDuplicateEntry) {
		return nil, apperror.InternalError(fmt.Errorf("payout %s already reserved: %w", id, err))
	}
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	p.Status = domain.PayoutStatusApproved
	p.ProcessedBy = &reviewerID
	p.ProcessedAt = &now

	metrics.PayoutTransitionsTotal.WithLabelValues(string(domain.PayoutStatusApproved)).Inc()
	s.log.Info().
		Str("payout_id", id.String()).
		Str("wallet_id", p.WalletID.String()).
		Int64("amount", p.Amount).
		Int64("balance_after", entry.BalanceAfter).
		Str("reviewer", reviewerID).
		Msg("payout approved")
	audit(ctx, s.auditSvc, reviewerID, domain.AuditActionPayoutApproved, "payout", id.String(), map[string]any{
		"amount":        p.Amount,
		"ledger_entry":  entry.ID.String(),
		"balance_after": entry.BalanceAfter,
		"wallet_id":     p.WalletID.String(),
	})
	return p, nil
}

// Reject closes a PENDING request. Nothing was reserved, so there is no ledger effect.
func (s *PayoutServiceImpl) Reject(ctx context.Context, id uuid.UUID, reviewerID, reason string) (*domain.PayoutRequest, error) {
	if reason == "" {
		return nil, apperror.Validation("rejection reason is required")
	}

	p, err := s.transition(ctx, id, domain.PayoutStatusRejected, reviewerID, &reason)
	if err != nil {
		return nil, err
	}
	audit(ctx, s.auditSvc, reviewerID, domain.AuditActionPayoutRejected, "payout", id.String(), map[string]any{
		"reason": reason,
	})
	return p, nil
}

// MarkTransferred records that the bank transfer went out. The funds were
// already debited at approval.
func (s *PayoutServiceImpl) MarkTransferred(ctx context.Context, id uuid.UUID, operatorID string) (*domain.PayoutRequest, error) {
	p, err := s.transition(ctx, id, domain.PayoutStatusTransferred, operatorID, nil)
	if err != nil {
		return nil, err
	}
	audit(ctx, s.auditSvc, operatorID, domain.AuditActionPayoutTransferred, "payout", id.String(), map[string]any{
		"amount": p.Amount,
	})
	return p, nil
}

// transition applies a status change that has no ledger effect.
func (s *PayoutServiceImpl) transition(ctx context.Context, id uuid.UUID, to domain.PayoutStatus, actor string, reason *string) (*domain.PayoutRequest, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransition(to) {
		return nil, apperror.ErrIllegalTransition("payout", string(p.Status), string(to))
	}

	now := time.Now().UTC()
	won, err := s.payoutRepo.Transition(ctx, nil, ports.PayoutTransition{
		ID:     id,
		From:   p.Status,
		To:     to,
		Actor:  actor,
		Reason: reason,
		At:     now,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("transition payout: %w", err))
	}
	if !won {
		return nil, s.lostTransition(ctx, id, to)
	}

	p.Status = to
	if to == domain.PayoutStatusTransferred {
		p.TransferredAt = &now
	} else {
		p.ProcessedBy = &actor
		p.ProcessedAt = &now
		p.RejectionReason = reason
	}

	metrics.PayoutTransitionsTotal.WithLabelValues(string(to)).Inc()
	s.log.Info().
		Str("payout_id", id.String()).
		Str("status", string(to)).
		Str("actor", actor).
		Msg("payout status changed")
	return p, nil
}

// lostTransition builds the error for a conditional update that matched no row.
func (s *PayoutServiceImpl) lostTransition(ctx context.Context, id uuid.UUID, to domain.PayoutStatus) error {
	latest, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return apperror.ErrIllegalTransition("payout", string(latest.Status), string(to))
}

func (s *PayoutServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	p, err := s.payoutRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payout request: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("payout request")
	}
	return p, nil
}

// List pages payout requests, newest first, by wallet and/or status.
func (s *PayoutServiceImpl) List(ctx context.Context, params ports.PayoutListParams) ([]domain.PayoutRequest, int64, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown payout status %q", *params.Status))
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	payouts, total, err := s.payoutRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list payouts: %w", err))
	}
	return payouts, total, nil
}
