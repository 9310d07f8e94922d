package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/internal/core/ports/mocks"
	"marketplace-settlement/internal/service"
	"marketplace-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testWebhookSecret = "whsec_test"

func testGateways() config.GatewaysConfig {
	return config.GatewaysConfig{
		BankTransfer: config.ProviderConfig{WebhookSecret: testWebhookSecret},
		GatewayA:     config.ProviderConfig{},
	}
}

func webhookRouter(nonceStore ports.NonceStore) *gin.Engine {
	r := gin.New()
	mw := WebhookSignature(testGateways(), config.WebhookConfig{MaxTimestampDrift: time.Minute, NonceTTL: time.Minute},
		service.NewHMACSignatureService(), nonceStore, zerolog.Nop())
	r.POST("/api/v1/webhooks/:provider", mw, func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{"provider": c.GetString(CtxProvider), "body": string(body)})
	})
	return r
}

func signedWebhook(path, body string, ts int64, nonce string) *http.Request {
	sig := service.NewHMACSignatureService()
	canonical := sig.BuildCanonicalString(http.MethodPost, path, ts, nonce, body)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set(HeaderSignature, "sha256="+sig.Sign(testWebhookSecret, canonical))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderNonce, nonce)
	return req
}

// ==================== WebhookSignature ====================

func TestWebhookSignature_Valid(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), "webhook:bank-transfer", "n-1", time.Minute).Return(true, nil)

	body := `{"transactionId":"FT1","amount":70000}`
	w := httptest.NewRecorder()
	webhookRouter(nonceStore).ServeHTTP(w, signedWebhook("/api/v1/webhooks/bank-transfer", body, time.Now().Unix(), "n-1"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bank-transfer", resp["provider"])
	assert.Equal(t, body, resp["body"], "body must be readable after verification")
}

func TestWebhookSignature_Rejections(t *testing.T) {
	path := "/api/v1/webhooks/bank-transfer"
	now := time.Now().Unix()

	tests := []struct {
		name     string
		req      func() *http.Request
		wantCode int
	}{
		{"missing headers", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString("{}"))
		}, http.StatusUnauthorized},
		{"expired timestamp", func() *http.Request {
			return signedWebhook(path, "{}", now-600, "n-2")
		}, http.StatusForbidden},
		{"non-numeric timestamp", func() *http.Request {
			req := signedWebhook(path, "{}", now, "n-3")
			req.Header.Set(HeaderTimestamp, "yesterday")
			return req
		}, http.StatusForbidden},
		{"tampered body", func() *http.Request {
			req := signedWebhook(path, `{"amount":1}`, now, "n-4")
			req.Body = io.NopCloser(bytes.NewBufferString(`{"amount":999999}`))
			return req
		}, http.StatusUnauthorized},
		{"unknown provider", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paypal", nil)
		}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			w := httptest.NewRecorder()
			webhookRouter(mocks.NewMockNonceStore(ctrl)).ServeHTTP(w, tt.req())
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestWebhookSignature_ReplayedNonce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), "n-5", gomock.Any()).Return(false, nil)

	w := httptest.NewRecorder()
	webhookRouter(nonceStore).ServeHTTP(w, signedWebhook("/api/v1/webhooks/bank-transfer", "{}", time.Now().Unix(), "n-5"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "SEC_004")
}

func TestWebhookSignature_NonceStoreDownAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	nonceStore := mocks.NewMockNonceStore(ctrl)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	w := httptest.NewRecorder()
	webhookRouter(nonceStore).ServeHTTP(w, signedWebhook("/api/v1/webhooks/bank-transfer", "{}", time.Now().Unix(), "n-6"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookSignature_NoSecretConfigured(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/gateway-a", bytes.NewBufferString("{}"))
	webhookRouter(mocks.NewMockNonceStore(ctrl)).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// ==================== JWTAuth / RequireRole ====================

func TestJWTAuth(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("good").Return(&ports.TokenClaims{Subject: "seller-1", Role: ports.RoleSeller}, nil).AnyTimes()
	tokenSvc.EXPECT().Validate("bad").Return(nil, errors.New("signature is invalid")).AnyTimes()

	r := gin.New()
	r.GET("/me", JWTAuth(tokenSvc, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": c.GetString(CtxSubject), "role": c.GetString(CtxRole)})
	})

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"valid", "Bearer good", http.StatusOK},
		{"invalid", "Bearer bad", http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.JSONEq(t, `{"subject":"seller-1","role":"SELLER"}`, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/reviewer", func(c *gin.Context) {
		c.Set(CtxRole, c.GetHeader("X-Role"))
	}, RequireRole(ports.RoleReviewer), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for role, want := range map[string]int{
		ports.RoleReviewer: http.StatusNoContent,
		ports.RoleSeller:   http.StatusForbidden,
		"":                 http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/reviewer", nil)
		req.Header.Set("X-Role", role)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "role %q", role)
	}
}

// ==================== RequestID / Recovery ====================

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) { response.OK(c, nil) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.NotEmpty(t, generated)
	assert.Contains(t, w.Body.String(), generated)

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SYS_001")
}

func TestRequestLoggerAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), RequestLogger(zerolog.New(&buf)), Metrics())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, buf.String(), `"path":"/ok"`)
	assert.Contains(t, buf.String(), `"request_id"`)
}
