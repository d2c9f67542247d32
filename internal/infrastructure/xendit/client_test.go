package xendit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, SecretKey: "xnd_test_secret"}, nil)
}

func TestCreateInvoice(t *testing.T) {
	var got map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/invoices", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "xnd_test_secret", user)
		assert.Empty(t, pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "inv_123",
			"external_id": "coffeerealmpos_1",
			"status": "PENDING",
			"amount": 665.28,
			"invoice_url": "https://checkout.xendit.co/web/inv_123",
			"expiry_date": "2025-03-15T09:00:00.000Z"
		}`))
	})

	inv, err := c.CreateInvoice(context.Background(), domain.InvoiceRequest{
		ExternalID:         "coffeerealmpos_1",
		Amount:             decimal.RequireFromString("665.28"),
		Description:        "Coffee Realm POS - 2 item(s)",
		Customer:           domain.Customer{Name: "Ana", Email: "ana@example.com"},
		SuccessRedirectURL: "http://pos.local/pos?payment=success",
		FailureRedirectURL: "http://pos.local/pos?payment=failed",
	})
	require.NoError(t, err)

	assert.Equal(t, "inv_123", inv.ID)
	assert.Equal(t, domain.InvoicePending, inv.Status)
	assert.Equal(t, "https://checkout.xendit.co/web/inv_123", inv.CheckoutURL)
	assert.True(t, inv.Amount.Equal(decimal.RequireFromString("665.28")))
	assert.Equal(t, 2025, inv.ExpiresAt.Year())

	assert.Equal(t, "coffeerealmpos_1", got["external_id"])
	assert.EqualValues(t, 665.28, got["amount"])
	assert.Equal(t, "PHP", got["currency"])
	assert.EqualValues(t, 86400, got["invoice_duration"])
	assert.Equal(t, "Ana", got["customer_name"])
	assert.Equal(t, "ana@example.com", got["payer_email"])
	assert.NotContains(t, got, "customer_phone")
	assert.Equal(t, "http://pos.local/pos?payment=success", got["success_redirect_url"])
}

func TestCreateInvoiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"forbidden", 403, `{"message":"nope"}`, msgForbidden},
		{"unauthorized", 401, `{}`, msgUnauthorized},
		{"bad request", 400, `{"error_code":"API_VALIDATION_ERROR","message":"amount must be positive"}`, "Bad request: amount must be positive"},
		{"bad request without message", 400, ``, "Bad request: Invalid request parameters"},
		{"channel mismatch", 400, `{"message":"The payment method choices did not match"}`, msgChannelMissing},
		{"provider message", 500, `{"message":"Internal error at provider"}`, "Internal error at provider"},
		{"unknown", 502, `<html>`, msgUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.CreateInvoice(context.Background(), domain.InvoiceRequest{ExternalID: "x", Amount: decimal.NewFromInt(1)})
			require.Error(t, err)

			var gwErr *domain.GatewayError
			require.True(t, errors.As(err, &gwErr))
			assert.Equal(t, tt.status, gwErr.StatusCode)
			assert.Equal(t, tt.want, domain.DisplayMessage(err))
		})
	}
}

func TestCreateInvoiceNetworkError(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", HTTPClient: &http.Client{Timeout: time.Second}}, nil)

	_, err := c.CreateInvoice(context.Background(), domain.InvoiceRequest{ExternalID: "x", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.Equal(t, msgUnavailable, domain.DisplayMessage(err))
}

func TestInvoiceStatus(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/invoices/inv_123", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"inv_123","status":"settled"}`))
	})

	status, err := c.InvoiceStatus(context.Background(), "inv_123")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceSettled, status)
}

func TestInvoiceStatusFailure(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":"INVOICE_NOT_FOUND_ERROR","message":"Invoice not found"}`))
	})

	_, err := c.InvoiceStatus(context.Background(), "inv_404")
	require.Error(t, err)
	assert.Equal(t, "Invoice not found", err.Error())

	_, err = c.InvoiceStatus(context.Background(), "")
	assert.Error(t, err)
}

func TestDemoGateway(t *testing.T) {
	ctx := context.Background()
	g := NewDemoGateway("")

	inv, err := g.CreateInvoice(ctx, domain.InvoiceRequest{ExternalID: "e", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	assert.Contains(t, inv.ID, DemoPrefix)
	assert.Equal(t, domain.InvoicePending, inv.Status)

	status, err := g.InvoiceStatus(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, status.Confirmed())

	_, err = g.InvoiceStatus(ctx, "unknown")
	assert.Error(t, err)
}
