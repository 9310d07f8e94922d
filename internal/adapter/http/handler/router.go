package handler

import (
	"marketplace-settlement/config"
	"marketplace-settlement/internal/adapter/http/middleware"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxRequestBody = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Reconciliation ports.ReconciliationService
	Verifier       ports.VerifierService
	Wallets        ports.WalletService
	Ledger         ports.LedgerService
	Payouts        ports.PayoutService
	Reviews        ports.ReviewService
	TokenSvc       ports.TokenService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	AuditSvc       ports.AuditService   // nil = denied-access auditing disabled
	HealthCheckers []ports.HealthChecker
	Jobs           map[string]BackgroundJob
	Gateways       config.GatewaysConfig
	Webhook        config.WebhookConfig
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(maxRequestBody))
	r.Use(middleware.AuditContext())
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditDenied(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.Jobs, deps.HealthCheckers...))
	r.GET("/metrics", metrics.Handler())

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Provider webhooks (HMAC signed) ---
	webhookHandler := NewWebhookHandler(deps.Reconciliation, deps.Logger)
	webhookAuth := middleware.WebhookSignature(deps.Gateways, deps.Webhook, deps.SigSvc, deps.NonceStore, deps.Logger)
	v1.POST("/webhooks/:provider", webhookAuth, rl("webhooks"), webhookHandler.Receive)

	// --- Client routes (JWT) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	reviewerOnly := middleware.RequireRole(ports.RoleReviewer)

	paymentHandler := NewPaymentHandler(deps.Reconciliation, deps.Verifier)
	walletHandler := NewWalletHandler(deps.Wallets, deps.Ledger, deps.Payouts)
	payoutHandler := NewPayoutHandler(deps.Payouts)
	reviewHandler := NewReviewHandler(deps.Reviews)

	payments := v1.Group("/payments", jwtAuth)
	{
		payments.POST("", rl("payments"), paymentHandler.Create)
		payments.GET("/:orderId", rl("verify"), paymentHandler.Get)
		payments.POST("/:orderId/verify", rl("verify"), paymentHandler.Verify)
		payments.POST("/:orderId/fail", reviewerOnly, rl("review"), paymentHandler.Fail)
	}

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("wallet"), walletHandler.GetWallet)
		wallet.GET("/ledger", rl("wallet"), walletHandler.ListLedger)
		wallet.GET("/payouts", rl("wallet"), walletHandler.ListPayouts)
		wallet.POST("/payout", rl("payouts"), walletHandler.RequestPayout)
	}

	// --- Reviewer routes ---
	payouts := v1.Group("/payouts", jwtAuth, reviewerOnly, rl("review"))
	{
		payouts.GET("", payoutHandler.List)
		payouts.GET("/:id", payoutHandler.Get)
		payouts.POST("/:id/approve", payoutHandler.Approve)
		payouts.POST("/:id/reject", payoutHandler.Reject)
		payouts.POST("/:id/transferred", payoutHandler.MarkTransferred)
	}

	reviews := v1.Group("/reviews", jwtAuth, reviewerOnly, rl("review"))
	{
		reviews.GET("", reviewHandler.List)
		reviews.POST("/:id/resolve", reviewHandler.Resolve)
	}

	wallets := v1.Group("/wallets", jwtAuth, reviewerOnly, rl("review"))
	{
		wallets.POST("/:id/adjustments", walletHandler.Adjust)
		wallets.POST("/:id/status", walletHandler.SetStatus)
		wallets.GET("/:id/audit", walletHandler.Audit)
	}

	return r
}
