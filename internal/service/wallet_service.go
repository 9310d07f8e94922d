package service

import (
	"context"
	"errors"
	"fmt"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	ledger     ports.LedgerService
	auditSvc   ports.AuditService
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	ledger ports.LedgerService,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		ledger:     ledger,
		auditSvc:   auditSvc,
		log:        log,
	}
}

// GetOrCreate returns the owner's wallet for role, creating it on first use.
// Concurrent first calls converge on the same row.
func (s *WalletServiceImpl) GetOrCreate(ctx context.Context, ownerID string, role domain.WalletRole) (*domain.Wallet, error) {
	if ownerID == "" {
		return nil, apperror.Validation("owner id is required")
	}
	if !role.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown wallet role %q", role))
	}

	wallet, err := s.walletRepo.GetByOwner(ctx, ownerID, role)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet by owner: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet = domain.NewWallet(ownerID, role)
	created, err := s.walletRepo.Create(ctx, wallet)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}
	if created {
		s.log.Info().
			Str("wallet_id", wallet.ID.String()).
			Str("owner_id", ownerID).
			Str("role", string(role)).
			Msg("wallet created")
		return wallet, nil
	}

	// Someone else created it between our read and insert.
	wallet, err = s.walletRepo.GetByOwner(ctx, ownerID, role)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet by owner: %w", err))
	}
	if wallet == nil {
		return nil, apperror.InternalError(fmt.Errorf("wallet for %s/%s missing after conflicting insert", ownerID, role))
	}
	return wallet, nil
}

// Get returns a wallet by id.
func (s *WalletServiceImpl) Get(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// GetByOwner looks up an existing wallet without creating one.
func (s *WalletServiceImpl) GetByOwner(ctx context.Context, ownerID string, role domain.WalletRole) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByOwner(ctx, ownerID, role)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet by owner: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

func (s *WalletServiceImpl) GetBalance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	wallet, err := s.Get(ctx, walletID)
	if err != nil {
		return 0, err
	}
	return wallet.Balance, nil
}

// Credit records order revenue. amount is positive.
func (s *WalletServiceImpl) Credit(ctx context.Context, walletID uuid.UUID, amount int64, referenceID string) (*ports.AppendResult, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	return s.ledger.Append(ctx, ports.AppendRequest{
		WalletID:    walletID,
		Kind:        domain.EntryKindOrderCredit,
		Amount:      amount,
		ReferenceID: referenceID,
	})
}

// Debit records a withdrawal. amount is positive; the entry is negative.
func (s *WalletServiceImpl) Debit(ctx context.Context, walletID uuid.UUID, amount int64, referenceID string) (*ports.AppendResult, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	return s.ledger.Append(ctx, ports.AppendRequest{
		WalletID:    walletID,
		Kind:        domain.EntryKindWithdrawal,
		Amount:      -amount,
		ReferenceID: referenceID,
	})
}

// Adjust applies an operator correction of either sign.
func (s *WalletServiceImpl) Adjust(ctx context.Context, req ports.AdjustRequest) (*ports.AppendResult, error) {
	if req.Amount == 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Note == "" {
		return nil, apperror.Validation("note is required for adjustments")
	}
	if req.Actor == "" {
		return nil, apperror.Validation("actor is required for adjustments")
	}

	res, err := s.ledger.Append(ctx, ports.AppendRequest{
		WalletID:    req.WalletID,
		Kind:        domain.EntryKindAdjustment,
		Amount:      req.Amount,
		ReferenceID: req.ReferenceID,
		Note:        req.Note,
	})
	if err != nil {
		return nil, err
	}

	audit(ctx, s.auditSvc, req.Actor, domain.AuditActionWalletAdjusted, "wallet", req.WalletID.String(), map[string]any{
		"entry_id":      res.Entry.ID.String(),
		"amount":        req.Amount,
		"note":          req.Note,
		"reference_id":  req.ReferenceID,
		"balance_after": res.Entry.BalanceAfter,
	})
	return res, nil
}

// SetStatus freezes or unfreezes a wallet. Setting the current status is a no-op.
func (s *WalletServiceImpl) SetStatus(ctx context.Context, walletID uuid.UUID, status domain.WalletStatus, actor string) (*domain.Wallet, error) {
	if !status.Valid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown wallet status %q", status))
	}

	wallet, err := s.Get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if wallet.Status == status {
		return wallet, nil
	}

	ok, err := s.walletRepo.UpdateStatus(ctx, walletID, wallet.Status, status)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update wallet status: %w", err))
	}

	updated, err := s.Get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if updated.Status == status {
			return updated, nil
		}
		return nil, apperror.Conflict("wallet status changed concurrently")
	}

	s.log.Info().
		Str("wallet_id", walletID.String()).
		Str("from", string(wallet.Status)).
		Str("to", string(status)).
		Str("actor", actor).
		Msg("wallet status changed")
	audit(ctx, s.auditSvc, actor, domain.AuditActionWalletStatusChanged, "wallet", walletID.String(), map[string]any{
		"from": wallet.Status,
		"to":   status,
	})
	return updated, nil
}

// Audit replays the wallet's ledger and compares it with the cached figures.
// A broken entry chain is reported in the result rather than as an error.
func (s *WalletServiceImpl) Audit(ctx context.Context, walletID uuid.UUID) (*ports.WalletAudit, error) {
	wallet, err := s.Get(ctx, walletID)
	if err != nil {
		return nil, err
	}
	return auditWallet(ctx, s.walletRepo, s.ledger, wallet)
}

// auditAttempts bounds how often a wallet that keeps changing is re-read.
const auditAttempts = 3

// auditWallet compares wallet with a replay of its ledger. The row and the
// entries are read separately, so a mismatch is only trusted once a re-read
// shows the row did not move around the replay. Every append rewrites the
// row's totals in the same transaction, and totals only grow.
func auditWallet(ctx context.Context, walletRepo ports.WalletRepository, ledger ports.LedgerService, wallet *domain.Wallet) (*ports.WalletAudit, error) {
	for attempt := 1; ; attempt++ {
		res, err := compareWithLedger(ctx, ledger, wallet)
		if err != nil || res.Consistent {
			return res, err
		}

		current, err := walletRepo.GetByID(ctx, wallet.ID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("reload wallet %s: %w", wallet.ID, err))
		}
		if current == nil || sameFigures(current, wallet) {
			return res, nil
		}
		if attempt == auditAttempts {
			res.Wallet = current
			res.Inconclusive = true
			return res, nil
		}
		wallet = current
	}
}

func compareWithLedger(ctx context.Context, ledger ports.LedgerService, wallet *domain.Wallet) (*ports.WalletAudit, error) {
	result := &ports.WalletAudit{Wallet: wallet}
	replay, err := ledger.ReplayBalance(ctx, wallet.ID)
	switch {
	case errors.Is(err, domain.ErrBrokenChain):
		result.ChainError = err.Error()
	case err != nil:
		return nil, err
	}
	if replay != nil {
		result.Replay = *replay
	}

	result.Consistent = result.ChainError == "" &&
		wallet.TotalsConsistent() &&
		wallet.Balance == result.Replay.Balance &&
		wallet.TotalCredited == result.Replay.TotalCredited &&
		wallet.TotalDebited == result.Replay.TotalDebited
	return result, nil
}

func sameFigures(a, b *domain.Wallet) bool {
	return a.Balance == b.Balance &&
		a.TotalCredited == b.TotalCredited &&
		a.TotalDebited == b.TotalDebited
}
