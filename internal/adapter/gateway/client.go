// Package gateway talks to upstream payment providers over their JSON APIs.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/core/domain"
	"marketplace-settlement/internal/core/ports"
	"marketplace-settlement/pkg/apperror"
	"marketplace-settlement/pkg/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// maxResponseBytes caps how much of a provider response is read.
const maxResponseBytes = 1 << 20

// ErrNotConfigured is returned by providers without a base URL.
var ErrNotConfigured = errors.New("payment provider not configured")

// HTTPClient is the part of *http.Client the gateway needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a ports.PaymentGateway for one provider.
type Client struct {
	provider domain.Provider
	baseURL  string
	apiKey   string
	http     HTTPClient
	log      zerolog.Logger
}

// New returns the gateway for provider. A provider without a base URL gets a
// gateway that fails every call with ErrNotConfigured.
func New(provider domain.Provider, cfg config.ProviderConfig, log zerolog.Logger) ports.PaymentGateway {
	if cfg.BaseURL == "" {
		return disabled{provider: provider}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewWithHTTPClient(provider, cfg, &http.Client{Timeout: timeout}, log)
}

// NewWithHTTPClient is New with a caller-supplied transport.
func NewWithHTTPClient(provider domain.Provider, cfg config.ProviderConfig, hc HTTPClient, log zerolog.Logger) *Client {
	return &Client{
		provider: provider,
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		http:     hc,
		log:      log.With().Str("provider", string(provider)).Logger(),
	}
}

type createPaymentBody struct {
	OrderID     string `json:"order_id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

type createPaymentResponse struct {
	ProviderRef string `json:"provider_ref"`
	CheckoutURL string `json:"checkout_url"`
}

// CreatePayment opens a payment at the provider.
func (c *Client) CreatePayment(ctx context.Context, req ports.GatewayPaymentRequest) (*ports.GatewayPayment, error) {
	body := createPaymentBody{
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Description: req.Description,
		Reference:   req.ReferenceText,
	}

	var resp createPaymentResponse
	if _, err := c.do(ctx, http.MethodPost, "/v1/payments", nil, body, &resp); err != nil {
		return nil, err
	}
	return &ports.GatewayPayment{ProviderRef: resp.ProviderRef, CheckoutURL: resp.CheckoutURL}, nil
}

type paymentStatusResponse struct {
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	Reference     string    `json:"reference"`
	PaidAt        time.Time `json:"paid_at"`
}

// QueryPayment asks the provider whether money arrived for orderID. A 404 or
// a non-PAID status means nothing has been received yet.
func (c *Client) QueryPayment(ctx context.Context, orderID string) (*domain.PaymentNotification, error) {
	q := url.Values{}
	q.Set("order_id", orderID)

	var resp paymentStatusResponse
	status, err := c.do(ctx, http.MethodGet, "/v1/payments", q, nil, &resp)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resp.Status != "PAID" || resp.TransactionID == "" {
		return nil, nil
	}

	occurred := resp.PaidAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return &domain.PaymentNotification{
		Provider:      c.provider,
		TransactionID: resp.TransactionID,
		Amount:        resp.Amount,
		ReferenceText: resp.Reference,
		OccurredAt:    occurred,
	}, nil
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// do sends one request and decodes a 2xx JSON body into out. It returns the
// HTTP status it saw, 0 if none.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (status int, err error) {
	ctx, span := tracing.StartSpan(ctx, "gateway "+method+" "+path, tracing.Provider(string(c.provider)))
	defer func() { tracing.End(span, err) }()

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return 0, fmt.Errorf("invalid provider URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("provider request failed")
		return 0, apperror.ErrGatewayUnavailable(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, apperror.ErrGatewayUnavailable(fmt.Errorf("read response: %w", err))
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("provider call")

	if resp.StatusCode >= 400 {
		msg := string(respBody)
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return resp.StatusCode, apperror.ErrGatewayUnavailable(fmt.Errorf("provider error (%d): %s", resp.StatusCode, msg))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, apperror.ErrGatewayUnavailable(fmt.Errorf("decode response: %w", err))
		}
	}
	return resp.StatusCode, nil
}

// disabled stands in for providers without configuration.
type disabled struct {
	provider domain.Provider
}

func (d disabled) CreatePayment(context.Context, ports.GatewayPaymentRequest) (*ports.GatewayPayment, error) {
	return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("%s: %w", d.provider, ErrNotConfigured))
}

func (d disabled) QueryPayment(context.Context, string) (*domain.PaymentNotification, error) {
	return nil, apperror.ErrGatewayUnavailable(fmt.Errorf("%s: %w", d.provider, ErrNotConfigured))
}

// Registry maps providers to their gateways.
type Registry map[domain.Provider]ports.PaymentGateway

// NewRegistry builds a gateway for every configured provider.
func NewRegistry(cfg config.GatewaysConfig, log zerolog.Logger) Registry {
	reg := Registry{}
	for _, p := range []domain.Provider{domain.ProviderBankTransfer, domain.ProviderGatewayA, domain.ProviderGatewayB} {
		pc, _ := cfg.Provider(string(p))
		reg[p] = New(p, pc, log)
	}
	return reg
}

// For returns the gateway of provider, or nil when unknown.
func (r Registry) For(provider domain.Provider) ports.PaymentGateway {
	return r[provider]
}
