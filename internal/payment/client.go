// Package payment integrates the external payment gateway. The gateway
// protocol is three sequential calls, each returning an opaque token or id
// consumed by the next: auth token → gateway order → payment key.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mfreiras/menuflow/internal/domain"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a gateway client. The http.Client must carry a bounded
// timeout; timeouts surface as ExternalServiceError, never silently retried.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type authRequest struct {
	APIKey string `json:"api_key"`
}

type authResponse struct {
	Token string `json:"token"`
}

type gatewayOrderRequest struct {
	AuthToken       string `json:"auth_token"`
	AmountCents     int64  `json:"amount_cents"`
	MerchantOrderID string `json:"merchant_order_id"`
	Currency        string `json:"currency"`
}

type gatewayOrderResponse struct {
	ID int64 `json:"id"`
}

type paymentKeyRequest struct {
	AuthToken   string `json:"auth_token"`
	OrderID     int64  `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type paymentKeyResponse struct {
	Token string `json:"token"`
}

// PaymentKey runs the full three-step chain and returns the key the client
// uses to complete payment. If a later step fails, earlier side effects on
// the gateway (the created gateway order) are not reversed.
func (c *Client) PaymentKey(ctx context.Context, amount decimal.Decimal, merchantRef string) (string, error) {
	amountCents := amount.Mul(decimal.NewFromInt(100)).IntPart()

	var auth authResponse
	if err := c.post(ctx, "/auth/tokens", authRequest{APIKey: c.apiKey}, &auth); err != nil {
		return "", err
	}

	var order gatewayOrderResponse
	err := c.post(ctx, "/ecommerce/orders", gatewayOrderRequest{
		AuthToken:       auth.Token,
		AmountCents:     amountCents,
		MerchantOrderID: merchantRef,
		Currency:        "EGP",
	}, &order)
	if err != nil {
		return "", err
	}

	var key paymentKeyResponse
	err = c.post(ctx, "/acceptance/payment_keys", paymentKeyRequest{
		AuthToken:   auth.Token,
		OrderID:     order.ID,
		AmountCents: amountCents,
		Currency:    "EGP",
	}, &key)
	if err != nil {
		return "", err
	}

	return key.Token, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.ExternalServiceError{Service: "payment gateway", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ExternalServiceError{
			Service: "payment gateway",
			Err:     fmt.Errorf("%s returned status %d", path, resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.ExternalServiceError{
			Service: "payment gateway",
			Err:     fmt.Errorf("decode %s response: %w", path, err),
		}
	}

	return nil
}
