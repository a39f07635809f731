package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mayank-tagline555/sooq-billing/internal/billing"
)

// Provider is the payment gateway surface the billing and reconciliation
// services depend on.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResponse, error)
	OrderStatus(ctx context.Context, orderID string) (StatusResponse, error)
}

// ChargeRequest creates a gateway order for a billing cycle or deposit.
type ChargeRequest struct {
	OrderID     string          `json:"order_id"`
	MerchantRef string          `json:"merchant_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
}

// ChargeResponse is the gateway's acknowledgment of a new order.
type ChargeResponse struct {
	OrderID       string `json:"order_id"`
	Result        string `json:"result"`
	PaymentStatus string `json:"payment_status"`
}

// StatusResponse is the gateway's view of an existing order.
type StatusResponse struct {
	OrderID       string `json:"order_id"`
	Result        string `json:"result"`
	PaymentStatus string `json:"payment_status"`
}

// Client talks to the payment gateway over HTTP with basic auth. Every call
// is bounded by the client timeout on top of the caller's context.
type Client struct {
	baseURL    string
	merchantID string
	username   string
	password   string
	httpClient *http.Client
}

func NewClient(baseURL, merchantID, username, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		merchantID: merchantID,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Charge(ctx context.Context, req ChargeRequest) (ChargeResponse, error) {
	var resp ChargeResponse
	body, err := json.Marshal(req)
	if err != nil {
		return resp, fmt.Errorf("encode charge request: %w", err)
	}
	url := fmt.Sprintf("%s/charge/%s", c.baseURL, c.merchantID)
	if err := c.do(ctx, http.MethodPost, url, bytes.NewReader(body), &resp); err != nil {
		return resp, err
	}
	if resp.OrderID == "" {
		resp.OrderID = req.OrderID
	}
	return resp, nil
}

func (c *Client) OrderStatus(ctx context.Context, orderID string) (StatusResponse, error) {
	var resp StatusResponse
	url := fmt.Sprintf("%s/order-status/%s/%s", c.baseURL, c.merchantID, orderID)
	err := c.do(ctx, http.MethodGet, url, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &billing.TransientGatewayError{Op: method + " " + url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &billing.TransientGatewayError{Op: url, Err: fmt.Errorf("gateway returned %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway rejected request: %d %s", resp.StatusCode, string(payload))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &billing.TransientGatewayError{Op: url, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
