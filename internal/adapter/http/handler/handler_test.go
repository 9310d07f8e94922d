package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"marketplace-settlement/internal/adapter/http/middleware"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/internal/core/ports/mocks"
	"marketplace-settlement/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// authAs stands in for JWTAuth.
func authAs(subject, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CtxSubject, subject)
		c.Set(middleware.CtxRole, role)
	}
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

// --- Payment Handler Tests ---

func TestPaymentCreate_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRecon := mocks.NewMockReconciliationService(ctrl)
	h := NewPaymentHandler(mockRecon, mocks.NewMockVerifierService(ctrl))

	mockRecon.EXPECT().CreatePayment(gomock.Any(), ports.CreatePaymentRequest{
		OrderID:     "order_500",
		SellerID:    "seller-1",
		Amount:      70000,
		Method:      domain.PaymentMethodBankTransfer,
		RequestedBy: "buyer-1",
	}).Return(&ports.CreatePaymentResult{
		Payment: &domain.PaymentRecord{OrderID: "order_500", Status: domain.PaymentStatusPending, ExpectedAmount: 70000},
		Instructions: &domain.PaymentInstructions{
			Method:       domain.PaymentMethodBankTransfer,
			TransferNote: "PAY order_500",
		},
	}, nil)

	r := gin.New()
	r.POST("/payments", authAs("buyer-1", "BUYER"), h.Create)

	w := doJSON(r, http.MethodPost, "/payments",
		`{"order_id":"order_500","seller_id":"seller-1","amount":70000,"method":"BANK_TRANSFER"}`)

	require.Equal(t, http.StatusCreated, w.Code)
	data := dataOf(t, w)
	instructions := data["instructions"].(map[string]any)
	assert.Equal(t, "PAY order_500", instructions["transfer_note"])
}

func TestPaymentCreate_ValidationErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewPaymentHandler(mocks.NewMockReconciliationService(ctrl), mocks.NewMockVerifierService(ctrl))
	r := gin.New()
	r.POST("/payments", authAs("buyer-1", "BUYER"), h.Create)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"zero amount", `{"order_id":"order_1","seller_id":"s","amount":0,"method":"BANK_TRANSFER"}`},
		{"bad order id", `{"order_id":"abc","seller_id":"s","amount":10,"method":"BANK_TRANSFER"}`},
		{"unknown method", `{"order_id":"order_1","seller_id":"s","amount":10,"method":"CRYPTO"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/payments", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestPaymentCreate_RequiresCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewPaymentHandler(mocks.NewMockReconciliationService(ctrl), mocks.NewMockVerifierService(ctrl))
	r := gin.New()
	r.POST("/payments", h.Create)

	w := doJSON(r, http.MethodPost, "/payments", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentVerify_EmptyBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockVerifier := mocks.NewMockVerifierService(ctrl)
	h := NewPaymentHandler(mocks.NewMockReconciliationService(ctrl), mockVerifier)

	mockVerifier.EXPECT().CheckPayment(gomock.Any(), "order_500", false).
		Return(&ports.VerificationResult{OrderID: "order_500", Status: domain.PaymentStatusPending}, nil)

	r := gin.New()
	r.POST("/payments/:orderId/verify", h.Verify)

	w := doJSON(r, http.MethodPost, "/payments/order_500/verify", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, dataOf(t, w)["matched"])
}

func TestPaymentVerify_Requery(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockVerifier := mocks.NewMockVerifierService(ctrl)
	h := NewPaymentHandler(mocks.NewMockReconciliationService(ctrl), mockVerifier)

	outcome := domain.OutcomeSettled
	mockVerifier.EXPECT().CheckPayment(gomock.Any(), "order_500", true).
		Return(&ports.VerificationResult{OrderID: "order_500", Matched: true, Status: domain.PaymentStatusPaid, Requeried: true, Outcome: &outcome}, nil)

	r := gin.New()
	r.POST("/payments/:orderId/verify", h.Verify)

	w := doJSON(r, http.MethodPost, "/payments/order_500/verify", `{"requery":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataOf(t, w)
	assert.Equal(t, true, data["matched"])
	assert.Equal(t, "SETTLED", data["outcome"])
}

func TestPaymentGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRecon := mocks.NewMockReconciliationService(ctrl)
	h := NewPaymentHandler(mockRecon, mocks.NewMockVerifierService(ctrl))
	mockRecon.EXPECT().GetPayment(gomock.Any(), "order_9").Return(nil, apperror.ErrNotFound("payment"))

	r := gin.New()
	r.GET("/payments/:orderId", h.Get)

	w := doJSON(r, http.MethodGet, "/payments/order_9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentFail_PassesReviewer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRecon := mocks.NewMockReconciliationService(ctrl)
	h := NewPaymentHandler(mockRecon, mocks.NewMockVerifierService(ctrl))
	mockRecon.EXPECT().FailPayment(gomock.Any(), "order_500", "buyer cancelled", "reviewer-1").
		Return(&domain.PaymentRecord{OrderID: "order_500", Status: domain.PaymentStatusFailed}, nil)

	r := gin.New()
	r.POST("/payments/:orderId/fail", authAs("reviewer-1", ports.RoleReviewer), h.Fail)

	w := doJSON(r, http.MethodPost, "/payments/order_500/fail", `{"reason":"buyer cancelled"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FAILED", dataOf(t, w)["status"])
}

// --- Webhook Handler Tests ---

func TestWebhookReceive_ReturnsOutcome(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRecon := mocks.NewMockReconciliationService(ctrl)
	h := NewWebhookHandler(mockRecon, zerolog.Nop())

	mockRecon.EXPECT().ProcessNotification(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n domain.PaymentNotification) (*domain.ReconciliationResult, error) {
			assert.Equal(t, domain.ProviderBankTransfer, n.Provider)
			assert.Equal(t, "FT1", n.TransactionID)
			assert.Equal(t, int64(65000), n.Amount)
			assert.False(t, n.OccurredAt.IsZero())
			return &domain.ReconciliationResult{
				Outcome:       domain.OutcomeAmountMismatch,
				OrderID:       "order_500",
				TransactionID: n.TransactionID,
			}, nil
		})

	r := gin.New()
	r.POST("/webhooks/:provider", h.Receive)

	w := doJSON(r, http.MethodPost, "/webhooks/bank-transfer",
		`{"transactionId":"FT1","amount":65000,"referenceText":"PAY order_500"}`)

	require.Equal(t, http.StatusOK, w.Code, "business rejections are acknowledged")
	assert.Equal(t, "REVIEW_AMOUNT_MISMATCH", dataOf(t, w)["outcome"])
}

func TestWebhookReceive_StorageFailureAsksForRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRecon := mocks.NewMockReconciliationService(ctrl)
	h := NewWebhookHandler(mockRecon, zerolog.Nop())
	mockRecon.EXPECT().ProcessNotification(gomock.Any(), gomock.Any()).
		Return(nil, apperror.InternalError(errors.New("connection refused")))

	r := gin.New()
	r.POST("/webhooks/:provider", h.Receive)

	w := doJSON(r, http.MethodPost, "/webhooks/gateway-a", `{"transactionId":"T1","amount":100}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookReceive_BadPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWebhookHandler(mocks.NewMockReconciliationService(ctrl), zerolog.Nop())
	r := gin.New()
	r.POST("/webhooks/:provider", h.Receive)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/webhooks/bank-transfer", `{"amount":1}`).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodPost, "/webhooks/paypal", `{}`).Code)
}

// --- Wallet Handler Tests ---

func TestGetWallet_DefaultsToTokenRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallets := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallets, mocks.NewMockLedgerService(ctrl), mocks.NewMockPayoutService(ctrl))

	w := domain.NewWallet("courier-1", domain.WalletRoleCourier)
	mockWallets.EXPECT().GetOrCreate(gomock.Any(), "courier-1", domain.WalletRoleCourier).Return(w, nil)

	r := gin.New()
	r.GET("/wallet", authAs("courier-1", ports.RoleCourier), h.GetWallet)

	resp := doJSON(r, http.MethodGet, "/wallet", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, w.ID.String(), dataOf(t, resp)["id"])
}

func TestGetWallet_BuyerMustNameRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), mocks.NewMockLedgerService(ctrl), mocks.NewMockPayoutService(ctrl))
	r := gin.New()
	r.GET("/wallet", authAs("buyer-1", ports.RoleBuyer), h.GetWallet)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/wallet", "").Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/wallet?role=ADMIN", "").Code)
}

func TestListLedger_Paginates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallets := mocks.NewMockWalletService(ctrl)
	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockWallets, mockLedger, mocks.NewMockPayoutService(ctrl))

	w := domain.NewWallet("seller-1", domain.WalletRoleSeller)
	mockWallets.EXPECT().GetOrCreate(gomock.Any(), "seller-1", domain.WalletRoleSeller).Return(w, nil)
	mockLedger.EXPECT().ListEntries(gomock.Any(), w.ID, 2, 5).
		Return([]domain.LedgerEntry{{ID: uuid.New(), WalletID: w.ID, Amount: 100}}, int64(6), nil)

	r := gin.New()
	r.GET("/wallet/ledger", authAs("seller-1", ports.RoleSeller), h.ListLedger)

	resp := doJSON(r, http.MethodGet, "/wallet/ledger?page=2&limit=5", "")
	require.Equal(t, http.StatusOK, resp.Code)
	data := dataOf(t, resp)
	assert.Equal(t, float64(6), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
	assert.Len(t, data["items"], 1)
}

func TestRequestPayout_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallets := mocks.NewMockWalletService(ctrl)
	mockPayouts := mocks.NewMockPayoutService(ctrl)
	h := NewWalletHandler(mockWallets, mocks.NewMockLedgerService(ctrl), mockPayouts)

	w := domain.NewWallet("seller-1", domain.WalletRoleSeller)
	mockWallets.EXPECT().GetOrCreate(gomock.Any(), "seller-1", domain.WalletRoleSeller).Return(w, nil)
	mockPayouts.EXPECT().Create(gomock.Any(), ports.CreatePayoutRequest{
		WalletID: w.ID,
		Amount:   150000,
		Destination: domain.BankDestination{
			BankCode:      "VCB",
			AccountNumber: "0123456789",
			AccountName:   "Seller One",
		},
		RequestedBy: "seller-1",
	}).Return(nil, apperror.ErrInsufficientFunds())

	r := gin.New()
	r.POST("/wallet/payout", authAs("seller-1", ports.RoleSeller), h.RequestPayout)

	resp := doJSON(r, http.MethodPost, "/wallet/payout",
		`{"amount":150000,"bank_code":"VCB","account_number":"0123456789","account_name":"Seller One"}`)
	assert.Equal(t, http.StatusPaymentRequired, resp.Code)
	assert.Contains(t, resp.Body.String(), "FUNDS_001")
}

func TestRequestPayout_RejectsBadAccountNumber(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockWalletService(ctrl), mocks.NewMockLedgerService(ctrl), mocks.NewMockPayoutService(ctrl))
	r := gin.New()
	r.POST("/wallet/payout", authAs("seller-1", ports.RoleSeller), h.RequestPayout)

	resp := doJSON(r, http.MethodPost, "/wallet/payout",
		`{"amount":100,"bank_code":"VCB","account_number":"12-34","account_name":"Seller One"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAdjust_SignedAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallets := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallets, mocks.NewMockLedgerService(ctrl), mocks.NewMockPayoutService(ctrl))

	walletID := uuid.New()
	entry := &domain.LedgerEntry{ID: uuid.New(), WalletID: walletID, Kind: domain.EntryKindAdjustment, Amount: -5000}
	mockWallets.EXPECT().Adjust(gomock.Any(), ports.AdjustRequest{
		WalletID:    walletID,
		Amount:      -5000,
		ReferenceID: "case-7",
		Note:        "refund shipping",
		Actor:       "reviewer-1",
	}).Return(&ports.AppendResult{Entry: entry}, nil)

	r := gin.New()
	r.POST("/wallets/:id/adjustments", authAs("reviewer-1", ports.RoleReviewer), h.Adjust)

	resp := doJSON(r, http.MethodPost, "/wallets/"+walletID.String()+"/adjustments",
		`{"amount":-5000,"note":"refund shipping","reference_id":"case-7"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, entry.ID.String(), dataOf(t, resp)["id"])

	bad := doJSON(r, http.MethodPost, "/wallets/not-a-uuid/adjustments", `{"amount":1,"note":"x"}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestSetStatus_Freeze(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallets := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallets, mocks.NewMockLedgerService(ctrl), mocks.NewMockPayoutService(ctrl))

	w := domain.NewWallet("seller-1", domain.WalletRoleSeller)
	frozen := *w
	frozen.Status = domain.WalletStatusFrozen
	mockWallets.EXPECT().SetStatus(gomock.Any(), w.ID, domain.WalletStatusFrozen, "reviewer-1").Return(&frozen, nil)

	r := gin.New()
	r.POST("/wallets/:id/status", authAs("reviewer-1", ports.RoleReviewer), h.SetStatus)

	resp := doJSON(r, http.MethodPost, "/wallets/"+w.ID.String()+"/status", `{"status":"FROZEN"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "FROZEN", dataOf(t, resp)["status"])

	assert.Equal(t, http.StatusBadRequest,
		doJSON(r, http.MethodPost, "/wallets/"+w.ID.String()+"/status", `{"status":"CLOSED"}`).Code)
}

// --- Payout Handler Tests ---

func TestPayoutApprove(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPayouts := mocks.NewMockPayoutService(ctrl)
	h := NewPayoutHandler(mockPayouts)

	id := uuid.New()
	mockPayouts.EXPECT().Approve(gomock.Any(), id, "reviewer-1").
		Return(&domain.PayoutRequest{ID: id, Status: domain.PayoutStatusApproved}, nil)

	r := gin.New()
	r.POST("/payouts/:id/approve", authAs("reviewer-1", ports.RoleReviewer), h.Approve)

	resp := doJSON(r, http.MethodPost, "/payouts/"+id.String()+"/approve", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "APPROVED", dataOf(t, resp)["status"])
}

func TestPayoutReject_AfterApprovalConflicts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPayouts := mocks.NewMockPayoutService(ctrl)
	h := NewPayoutHandler(mockPayouts)

	id := uuid.New()
	mockPayouts.EXPECT().Reject(gomock.Any(), id, "reviewer-1", "duplicate request").
		Return(nil, apperror.ErrIllegalTransition("payout", "APPROVED", "REJECTED"))

	r := gin.New()
	r.POST("/payouts/:id/reject", authAs("reviewer-1", ports.RoleReviewer), h.Reject)

	resp := doJSON(r, http.MethodPost, "/payouts/"+id.String()+"/reject", `{"reason":"duplicate request"}`)
	assert.Equal(t, http.StatusConflict, resp.Code)

	missing := doJSON(r, http.MethodPost, "/payouts/"+id.String()+"/reject", `{}`)
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestPayoutList_StatusFilter(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPayouts := mocks.NewMockPayoutService(ctrl)
	h := NewPayoutHandler(mockPayouts)

	mockPayouts.EXPECT().List(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p ports.PayoutListParams) ([]domain.PayoutRequest, int64, error) {
			require.NotNil(t, p.Status)
			assert.Equal(t, domain.PayoutStatusPending, *p.Status)
			assert.Nil(t, p.WalletID)
			assert.Equal(t, defaultPage, p.Page)
			assert.Equal(t, defaultLimit, p.PageSize)
			return []domain.PayoutRequest{}, 0, nil
		})

	r := gin.New()
	r.GET("/payouts", h.List)

	resp := doJSON(r, http.MethodGet, "/payouts?status=PENDING", "")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestPayoutMarkTransferred(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockPayouts := mocks.NewMockPayoutService(ctrl)
	h := NewPayoutHandler(mockPayouts)

	id := uuid.New()
	mockPayouts.EXPECT().MarkTransferred(gomock.Any(), id, "ops-1").
		Return(&domain.PayoutRequest{ID: id, Status: domain.PayoutStatusTransferred}, nil)

	r := gin.New()
	r.POST("/payouts/:id/transferred", authAs("ops-1", ports.RoleReviewer), h.MarkTransferred)

	resp := doJSON(r, http.MethodPost, "/payouts/"+id.String()+"/transferred", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "TRANSFERRED", dataOf(t, resp)["status"])
}

// --- Review Handler Tests ---

func TestReviewList_OpenCases(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReviews := mocks.NewMockReviewService(ctrl)
	h := NewReviewHandler(mockReviews)

	open := domain.ReviewStatusOpen
	mockReviews.EXPECT().List(gomock.Any(), &open, 1, 20).Return([]domain.ReviewCase{{
		ID:             uuid.New(),
		OrderID:        "order_500",
		Reason:         domain.ReviewReasonAmountMismatch,
		ExpectedAmount: 70000,
		ReceivedAmount: 65000,
		Status:         domain.ReviewStatusOpen,
	}}, int64(1), nil)

	r := gin.New()
	r.GET("/reviews", h.List)

	resp := doJSON(r, http.MethodGet, "/reviews?status=OPEN", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, float64(1), dataOf(t, resp)["total"])
}

func TestReviewResolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReviews := mocks.NewMockReviewService(ctrl)
	h := NewReviewHandler(mockReviews)

	id := uuid.New()
	mockReviews.EXPECT().Resolve(gomock.Any(), id, "refunded buyer", "reviewer-1").
		Return(&domain.ReviewCase{ID: id, Status: domain.ReviewStatusResolved}, nil)

	r := gin.New()
	r.POST("/reviews/:id/resolve", authAs("reviewer-1", ports.RoleReviewer), h.Resolve)

	resp := doJSON(r, http.MethodPost, "/reviews/"+id.String()+"/resolve", `{"resolution":"refunded buyer"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "RESOLVED", dataOf(t, resp)["status"])
}

// --- Health Tests ---

type stubJob bool

func (j stubJob) Running() bool { return bool(j) }

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pg := mocks.NewMockHealthChecker(ctrl)
	pg.EXPECT().Name().Return("postgresql").AnyTimes()
	rdb := mocks.NewMockHealthChecker(ctrl)
	rdb.EXPECT().Name().Return("redis").AnyTimes()

	t.Run("healthy", func(t *testing.T) {
		pg.EXPECT().Ping(gomock.Any()).Return(nil)
		rdb.EXPECT().Ping(gomock.Any()).Return(nil)

		r := gin.New()
		r.GET("/health", HealthCheck(map[string]BackgroundJob{"balance_audit": stubJob(true)}, pg, rdb))

		w := doJSON(r, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	})

	t.Run("redis down", func(t *testing.T) {
		pg.EXPECT().Ping(gomock.Any()).Return(nil)
		rdb.EXPECT().Ping(gomock.Any()).Return(errors.New("dial tcp: connection refused"))

		r := gin.New()
		r.GET("/health", HealthCheck(nil, pg, rdb))

		w := doJSON(r, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "connection refused")
	})

	t.Run("auditor stopped", func(t *testing.T) {
		r := gin.New()
		r.GET("/health", HealthCheck(map[string]BackgroundJob{"balance_audit": stubJob(false)}))

		w := doJSON(r, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"balance_audit":"stopped"`)
	})
}

func TestSwaggerSpec(t *testing.T) {
	r := gin.New()
	r.GET("/swagger/spec", SwaggerSpec)

	SetSwaggerSpec(nil)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/swagger/spec", "").Code)

	SetSwaggerSpec([]byte("openapi: 3.0.3\n"))
	defer SetSwaggerSpec(nil)
	w := doJSON(r, http.MethodGet, "/swagger/spec", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")
}
