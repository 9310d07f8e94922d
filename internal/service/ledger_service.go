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
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		transactor: transactor,
		log:        log,
	}
}

// Append records one movement and updates the wallet in a single transaction.
// Repeating an idempotent append returns the entry recorded the first time.
func (s *LedgerServiceImpl) Append(ctx context.Context, req ports.AppendRequest) (res *ports.AppendResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.append",
		tracing.WalletID(req.WalletID.String()), tracing.Kind(string(req.Kind)), tracing.Amount(req.Amount))
	defer func() { tracing.End(span, err) }()
	defer metrics.ObserveOp("ledger_append")()

	if err := validateAppend(req); err != nil {
		return nil, err
	}

	// Fast path: a retry of something already recorded never touches the wallet row.
	if req.Kind.IsIdempotent() {
		existing, err := s.ledgerRepo.GetByReference(ctx, req.WalletID, req.ReferenceID, req.Kind)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lookup ledger reference: %w", err))
		}
		if existing != nil {
			metrics.LedgerAppendsTotal.WithLabelValues(string(req.Kind), "duplicate").Inc()
			return &ports.AppendResult{Entry: existing, Duplicate: true}, nil
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := s.AppendTx(ctx, dbTx, req)
	if errors.Is(err, domain.ErrDuplicateEntry) {
		// Lost to a concurrent append with the same key.
		_ = dbTx.Rollback(ctx)
		existing, lookupErr := s.ledgerRepo.GetByReference(ctx, req.WalletID, req.ReferenceID, req.Kind)
		if lookupErr != nil {
			return nil, apperror.InternalError(fmt.Errorf("lookup ledger reference: %w", lookupErr))
		}
		if existing == nil {
			return nil, apperror.InternalError(fmt.Errorf("duplicate entry for %s/%s vanished", req.ReferenceID, req.Kind))
		}
		return &ports.AppendResult{Entry: existing, Duplicate: true}, nil
	}
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("wallet_id", req.WalletID.String()).
		Str("kind", string(req.Kind)).
		Int64("amount", req.Amount).
		Int64("balance_after", entry.BalanceAfter).
		Str("reference_id", req.ReferenceID).
		Msg("ledger entry appended")

	return &ports.AppendResult{Entry: entry}, nil
}

// AppendTx applies the balance change and inserts the entry inside tx.
// The balance update is a single conditional write; nothing is read first.
func (s *LedgerServiceImpl) AppendTx(ctx context.Context, tx pgx.Tx, req ports.AppendRequest) (*domain.LedgerEntry, error) {
	if err := validateAppend(req); err != nil {
		return nil, err
	}

	after, applied, err := s.walletRepo.ApplyDelta(ctx, tx, req.WalletID, req.Amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("apply balance delta: %w", err))
	}
	if !applied {
		refusal := s.refusal(ctx, req)
		metrics.LedgerAppendsTotal.WithLabelValues(string(req.Kind), "refused").Inc()
		return nil, refusal
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		WalletID:      req.WalletID,
		Kind:          req.Kind,
		Amount:        req.Amount,
		BalanceBefore: after - req.Amount,
		BalanceAfter:  after,
		ReferenceID:   req.ReferenceID,
		Note:          req.Note,
		CreatedAt:     time.Now().UTC(),
	}

	inserted, err := s.ledgerRepo.Insert(ctx, tx, entry)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("insert ledger entry: %w", err))
	}
	if !inserted {
		metrics.LedgerAppendsTotal.WithLabelValues(string(req.Kind), "duplicate").Inc()
		return nil, domain.ErrDuplicateEntry
	}

	metrics.LedgerAppendsTotal.WithLabelValues(string(req.Kind), "recorded").Inc()
	return entry, nil
}

// refusal explains why ApplyDelta skipped the write.
func (s *LedgerServiceImpl) refusal(ctx context.Context, req ports.AppendRequest) error {
	wallet, err := s.walletRepo.GetByID(ctx, req.WalletID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return apperror.ErrNotFound("wallet")
	}
	if req.Amount < 0 && !wallet.IsActive() {
		return apperror.ErrWalletFrozen()
	}
	return apperror.ErrInsufficientFunds()
}

// ListEntries returns a page of the wallet's entries, newest first.
func (s *LedgerServiceImpl) ListEntries(ctx context.Context, walletID uuid.UUID, page, pageSize int) ([]domain.LedgerEntry, int64, error) {
	page, pageSize = normalizePage(page, pageSize)

	entries, total, err := s.ledgerRepo.ListByWallet(ctx, walletID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list ledger entries: %w", err))
	}
	return entries, total, nil
}

// ReplayBalance folds every entry of the wallet in the order it was applied.
// A broken before/after chain is reported as an error wrapping
// domain.ErrBrokenChain together with the figures folded so far.
func (s *LedgerServiceImpl) ReplayBalance(ctx context.Context, walletID uuid.UUID) (*domain.Replay, error) {
	entries, err := s.ledgerRepo.AllByWallet(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load ledger entries: %w", err))
	}

	replay, err := domain.ReplayEntries(entries)
	if err != nil {
		s.log.Error().Err(err).Str("wallet_id", walletID.String()).Msg("ledger replay failed")
		return &replay, fmt.Errorf("replay wallet %s: %w", walletID, err)
	}
	return &replay, nil
}

func validateAppend(req ports.AppendRequest) error {
	if req.WalletID == uuid.Nil {
		return apperror.Validation("wallet id is required")
	}
	if err := req.Kind.CheckAmount(req.Amount); err != nil {
		return apperror.Validation(err.Error())
	}
	if req.Kind.IsIdempotent() && req.ReferenceID == "" {
		return apperror.Validation(domain.ErrMissingReference.Error())
	}
	return nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
