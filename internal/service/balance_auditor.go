package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultAuditInterval = 10 * time.Minute
	defaultAuditPageSize = 200
)

// AuditSweep summarizes one pass over all wallets.
type AuditSweep struct {
	Wallets    int
	Mismatched []uuid.UUID
	// Unsettled wallets changed on every re-read and were not judged.
	Unsettled int
}

// BalanceAuditor periodically replays every wallet's ledger and reports
// wallets whose cached balance disagrees with it. It never writes balances.
type BalanceAuditor struct {
	walletRepo ports.WalletRepository
	ledger     ports.LedgerService
	auditSvc   ports.AuditService
	interval   time.Duration
	pageSize   int
	log        zerolog.Logger
	running    atomic.Bool

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewBalanceAuditor creates a new BalanceAuditor.
func NewBalanceAuditor(
	walletRepo ports.WalletRepository,
	ledger ports.LedgerService,
	auditSvc ports.AuditService,
	interval time.Duration,
	pageSize int,
	log zerolog.Logger,
) *BalanceAuditor {
	if interval <= 0 {
		interval = defaultAuditInterval
	}
	if pageSize <= 0 {
		pageSize = defaultAuditPageSize
	}
	return &BalanceAuditor{
		walletRepo: walletRepo,
		ledger:     ledger,
		auditSvc:   auditSvc,
		interval:   interval,
		pageSize:   pageSize,
		log:        log,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Running reports whether the sweep loop is active.
func (a *BalanceAuditor) Running() bool {
	return a.running.Load()
}

// Start runs the sweep every interval until ctx is done or Stop is called.
// Call in a goroutine. Start after Stop, or a second Start, returns at once.
func (a *BalanceAuditor) Start(ctx context.Context) {
	a.mu.Lock()
	if a.started || a.stopped {
		a.mu.Unlock()
		return
	}
	a.started = true
	a.mu.Unlock()
	defer close(a.done)

	a.running.Store(true)
	defer a.running.Store(false)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case <-ticker.C:
			a.safeRun(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for a sweep in progress to finish,
// so no audit entry is submitted after Stop returns.
func (a *BalanceAuditor) Stop() {
	a.mu.Lock()
	first := !a.stopped
	a.stopped = true
	started := a.started
	a.mu.Unlock()

	if first {
		close(a.stop)
	}
	if started {
		<-a.done
	}
}

func (a *BalanceAuditor) safeRun(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Str("panic", fmt.Sprint(r)).Msg("panic in balance audit")
		}
	}()

	if _, err := a.RunOnce(ctx); err != nil {
		a.log.Warn().Err(err).Msg("balance audit failed")
	}
}

// RunOnce checks every wallet, page by page in id order.
func (a *BalanceAuditor) RunOnce(ctx context.Context) (*AuditSweep, error) {
	defer metrics.ObserveOp("balance_audit")()

	sweep := &AuditSweep{}
	after := uuid.Nil
	for {
		wallets, err := a.walletRepo.ListAfter(ctx, after, a.pageSize)
		if err != nil {
			return sweep, fmt.Errorf("list wallets after %s: %w", after, err)
		}

		for i := range wallets {
			w := &wallets[i]
			res, err := auditWallet(ctx, a.walletRepo, a.ledger, w)
			if err != nil {
				return sweep, fmt.Errorf("audit wallet %s: %w", w.ID, err)
			}
			sweep.Wallets++
			if res.Inconclusive {
				sweep.Unsettled++
				a.log.Warn().Str("wallet_id", w.ID.String()).Msg("wallet changed throughout audit, skipped")
				continue
			}
			if !res.Consistent {
				sweep.Mismatched = append(sweep.Mismatched, w.ID)
				a.report(ctx, res)
			}
		}

		if len(wallets) < a.pageSize {
			break
		}
		after = wallets[len(wallets)-1].ID
	}

	metrics.BalanceAuditWallets.Set(float64(sweep.Wallets))
	metrics.BalanceAuditMismatches.Set(float64(len(sweep.Mismatched)))
	a.log.Info().
		Int("wallets", sweep.Wallets).
		Int("mismatched", len(sweep.Mismatched)).
		Int("unsettled", sweep.Unsettled).
		Msg("balance audit complete")
	return sweep, nil
}

func (a *BalanceAuditor) report(ctx context.Context, res *ports.WalletAudit) {
	w := res.Wallet
	a.log.Error().
		Str("wallet_id", w.ID.String()).
		Int64("balance", w.Balance).
		Int64("replayed_balance", res.Replay.Balance).
		Int64("total_credited", w.TotalCredited).
		Int64("total_debited", w.TotalDebited).
		Str("chain_error", res.ChainError).
		Msg("wallet balance disagrees with ledger")

	details := map[string]any{
		"balance":                 w.Balance,
		"total_credited":          w.TotalCredited,
		"total_debited":           w.TotalDebited,
		"replayed_balance":        res.Replay.Balance,
		"replayed_total_credited": res.Replay.TotalCredited,
		"replayed_total_debited":  res.Replay.TotalDebited,
	}
	if res.ChainError != "" {
		details["chain_error"] = res.ChainError
	}
	audit(ctx, a.auditSvc, domain.ActorSystem, domain.AuditActionBalanceMismatch, "wallet", w.ID.String(), details)
}
