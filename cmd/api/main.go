package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/docs/api"
	"marketplace-settlement/internal/adapter/gateway"
	httpHandler "marketplace-settlement/internal/adapter/http/handler"
	redisStorage "marketplace-settlement/internal/adapter/storage/redis"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/internal/service"
	"marketplace-settlement/pkg/logger"
	"marketplace-settlement/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("STL_CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	serviceName := cfg.Tracing.ServiceName
	if serviceName == "" {
		serviceName = "settlement-api"
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty, serviceName)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting marketplace settlement")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Options{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: serviceName,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Core services
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(repos.audits, log)
	gateways := gateway.NewRegistry(cfg.Gateways, log)

	// Settlement services
	ledgerSvc := service.NewLedgerService(repos.wallets, repos.ledger, repos.transactor, log)
	walletSvc := service.NewWalletService(repos.wallets, ledgerSvc, auditSvc, log)
	reconSvc := service.NewReconciliationService(
		repos.payments,
		repos.reviews,
		ledgerSvc,
		walletSvc,
		repos.transactor,
		redisStorage.NewIdempotencyCache(rdb),
		gateways,
		auditSvc,
		cfg.Settlement,
		log,
	)
	verifierSvc := service.NewVerifierService(reconSvc, gateways, redisStorage.NewThrottleStore(rdb), cfg.Settlement.RequeryInterval, log)
	payoutSvc := service.NewPayoutService(repos.payouts, repos.wallets, ledgerSvc, repos.transactor, auditSvc, log)
	reviewSvc := service.NewReviewService(repos.reviews, auditSvc, log)

	auditor := service.NewBalanceAuditor(repos.wallets, ledgerSvc, auditSvc, cfg.Settlement.AuditInterval, cfg.Settlement.AuditPageSize, log)
	go auditor.Start(ctx)

	httpHandler.SetSwaggerSpec(api.Spec)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Reconciliation: reconSvc,
		Verifier:       verifierSvc,
		Wallets:        walletSvc,
		Ledger:         ledgerSvc,
		Payouts:        payoutSvc,
		Reviews:        reviewSvc,
		TokenSvc:       tokenSvc,
		SigSvc:         sigSvc,
		NonceStore:     redisStorage.NewNonceStore(rdb),
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		AuditSvc:       auditSvc,
		HealthCheckers: []ports.HealthChecker{repos.health, redisStorage.NewHealthCheck(rdb)},
		Jobs:           map[string]httpHandler.BackgroundJob{"balance_audit": auditor},
		Gateways:       cfg.Gateways,
		Webhook:        cfg.Webhook,
		Mode:           cfg.Server.Mode,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	auditor.Stop()
	if err := auditSvc.Flush(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Audit log flush incomplete")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Tracing shutdown failed")
	}

	log.Info().Msg("Server exited")
}
