package main

import (
	"context"
	"fmt"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/adapter/storage/memory"
	pgStorage "marketplace-settlement/internal/adapter/storage/postgres"
	"marketplace-settlement/internal/core/ports"

	"github.com/rs/zerolog"
)

// repositories is the persistence layer selected by storage.driver.
type repositories struct {
	wallets    ports.WalletRepository
	ledger     ports.LedgerRepository
	payments   ports.PaymentRepository
	payouts    ports.PayoutRepository
	reviews    ports.ReviewCaseRepository
	audits     ports.AuditRepository
	transactor ports.DBTransactor
	health     ports.HealthChecker
	close      func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	switch cfg.Storage.Driver {
	case "", "postgres":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return &repositories{
			wallets:    pgStorage.NewWalletRepo(pool),
			ledger:     pgStorage.NewLedgerRepo(pool),
			payments:   pgStorage.NewPaymentRepo(pool),
			payouts:    pgStorage.NewPayoutRepo(pool),
			reviews:    pgStorage.NewReviewRepo(pool),
			audits:     pgStorage.NewAuditRepo(pool),
			transactor: pgStorage.NewTransactor(pool),
			health:     pgStorage.NewHealthCheck(pool),
			close:      pool.Close,
		}, nil

	case "memory":
		log.Warn().Msg("using in-memory storage, all data is lost on exit")
		store := memory.NewStore()
		return &repositories{
			wallets:    memory.NewWalletRepo(store),
			ledger:     memory.NewLedgerRepo(store),
			payments:   memory.NewPaymentRepo(store),
			payouts:    memory.NewPayoutRepo(store),
			reviews:    memory.NewReviewRepo(store),
			audits:     memory.NewAuditRepo(store),
			transactor: store,
			health:     store,
			close:      func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
