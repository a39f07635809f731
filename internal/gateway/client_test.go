package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayank-tagline555/sooq-billing/internal/billing"
)

func TestOrderStatusRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order-status/merchant-1/ord-42", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "api-user", user)
		assert.Equal(t, "api-pass", pass)
		json.NewEncoder(w).Encode(StatusResponse{OrderID: "ord-42", Result: "SUCCESS", PaymentStatus: "CAPTURED"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "merchant-1", "api-user", "api-pass", 0)
	resp, err := c.OrderStatus(context.Background(), "ord-42")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS", resp.Result)
	assert.Equal(t, "CAPTURED", resp.PaymentStatus)
}

func TestChargePostsOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/charge/merchant-1", r.URL.Path)
		var req ChargeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ord-7", req.OrderID)
		assert.True(t, req.Amount.Equal(decimal.NewFromInt(230)))
		json.NewEncoder(w).Encode(ChargeResponse{OrderID: "ord-7", Result: "SUCCESS", PaymentStatus: "AUTHORIZED"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "merchant-1", "u", "p", 0)
	resp, err := c.Charge(context.Background(), ChargeRequest{
		OrderID:  "ord-7",
		Amount:   decimal.NewFromInt(230),
		Currency: "SAR",
	})
	require.NoError(t, err)
	assert.Equal(t, "ord-7", resp.OrderID)
	assert.Equal(t, "AUTHORIZED", resp.PaymentStatus)
}

func TestServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "merchant-1", "u", "p", 0)
	_, err := c.OrderStatus(context.Background(), "ord-1")
	var transient *billing.TransientGatewayError
	assert.ErrorAs(t, err, &transient)
}

func TestClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown order", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "merchant-1", "u", "p", 0)
	_, err := c.OrderStatus(context.Background(), "missing")
	require.Error(t, err)
	var transient *billing.TransientGatewayError
	assert.False(t, errors.As(err, &transient), "4xx must not be transient")
}
