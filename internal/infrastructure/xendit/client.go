// Package xendit talks to the Xendit invoice API that hosts the card checkout page.
package xendit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	peer               = "xendit"
	endpointCreate     = "create_invoice"
	endpointGet        = "get_invoice"
	invoicesPath       = "/v2/invoices"
	defaultBaseURL     = "https://api.xendit.co"
	defaultCurrency    = "PHP"
	defaultDuration    = 24 * time.Hour
	defaultHTTPTimeout = 15 * time.Second
	maxErrorBody       = 64 << 10
)

const (
	msgForbidden      = "API key does not have permission to create invoices. Please check your Xendit dashboard settings."
	msgUnauthorized   = "Invalid API key. Please verify your Xendit credentials."
	msgChannelMissing = "Selected payment method is not available in your Xendit account. Please enable GCash, GrabPay, or PayMaya in your Xendit dashboard under Payment Channels."
	msgUnavailable    = "Payment service unavailable. Please try again."
	msgInvalidRequest = "Invalid request parameters"
	channelMismatch   = "payment method choices did not match"
)

type Config struct {
	BaseURL         string
	SecretKey       string
	Currency        string
	InvoiceDuration time.Duration
	HTTPClient      *http.Client
}

// Client implements payment.Gateway over the Xendit REST API.
type Client struct {
	baseURL   string
	secretKey string
	currency  string
	duration  time.Duration
	http      *http.Client

	tracer       observability.Tracer
	log          observability.Logger
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

var _ domain.Gateway = (*Client)(nil)

func New(cfg Config, tel observability.Observability) *Client {
	if tel == nil {
		tel = observability.Nop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	if cfg.InvoiceDuration <= 0 {
		cfg.InvoiceDuration = defaultDuration
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:    cfg.SecretKey,
		currency:     cfg.Currency,
		duration:     cfg.InvoiceDuration,
		http:         cfg.HTTPClient,
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("component", "xendit_client")),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

type createInvoiceRequest struct {
	ExternalID         string      `json:"external_id"`
	Amount             json.Number `json:"amount"`
	Description        string      `json:"description"`
	InvoiceDuration    int         `json:"invoice_duration"`
	Currency           string      `json:"currency"`
	CustomerName       string      `json:"customer_name,omitempty"`
	PayerEmail         string      `json:"payer_email,omitempty"`
	CustomerPhone      string      `json:"customer_phone,omitempty"`
	SuccessRedirectURL string      `json:"success_redirect_url,omitempty"`
	FailureRedirectURL string      `json:"failure_redirect_url,omitempty"`
}

type invoiceResponse struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	InvoiceURL string          `json:"invoice_url"`
	ExpiryDate time.Time       `json:"expiry_date"`
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (c *Client) CreateInvoice(ctx context.Context, req domain.InvoiceRequest) (*domain.Invoice, error) {
	body := createInvoiceRequest{
		ExternalID:         req.ExternalID,
		Amount:             json.Number(req.Amount.StringFixed(2)),
		Description:        req.Description,
		InvoiceDuration:    int(c.duration / time.Second),
		Currency:           c.currency,
		CustomerName:       req.Customer.Name,
		PayerEmail:         req.Customer.Email,
		CustomerPhone:      req.Customer.Phone,
		SuccessRedirectURL: req.SuccessRedirectURL,
		FailureRedirectURL: req.FailureRedirectURL,
	}

	var out invoiceResponse
	status, errBody, err := c.do(ctx, endpointCreate, http.MethodPost, invoicesPath, body, &out,
		attribute.String("payment.external_id", req.ExternalID),
	)
	if err != nil {
		return nil, &domain.GatewayError{Message: msgUnavailable, Err: err}
	}
	if status >= 300 {
		return nil, createError(status, errBody)
	}
	return out.toDomain(), nil
}

func (c *Client) InvoiceStatus(ctx context.Context, invoiceID string) (domain.InvoiceStatus, error) {
	if invoiceID == "" {
		return "", errors.New("xendit: invoice id is required")
	}
	var out invoiceResponse
	status, errBody, err := c.do(ctx, endpointGet, http.MethodGet, invoicesPath+"/"+url.PathEscape(invoiceID), nil, &out,
		attribute.String("payment.invoice_id", invoiceID),
	)
	if err != nil {
		return "", fmt.Errorf("xendit: get invoice: %w", err)
	}
	if status >= 300 {
		return "", readableError(status, errBody)
	}
	return domain.InvoiceStatus(strings.ToUpper(out.Status)), nil
}

// do performs one API call with span and RED metrics. Non-2xx responses are
// returned as status plus decoded error body, not as err.
func (c *Client) do(ctx context.Context, endpoint, method, path string, in, out any, attrs ...attribute.KeyValue) (_ int, _ errorResponse, err error) {
	ctx, span := c.tracer.Start(ctx, "Xendit."+endpoint, append(attrs,
		attribute.String("peer.service", peer),
		attribute.String("http.method", method),
	)...)
	start := time.Now()
	outcome := "success"
	statusCode := 0

	defer func() {
		c.extCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
		c.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
		)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
		if err != nil || statusCode >= 300 {
			if err != nil {
				span.RecordError(err)
			}
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, outcome)
		}
		span.End()
	}()

	var reader io.Reader
	if in != nil {
		raw, mErr := json.Marshal(in)
		if mErr != nil {
			outcome = "error"
			return 0, errorResponse{}, fmt.Errorf("xendit: encode: %w", mErr)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		outcome = "error"
		return 0, errorResponse{}, fmt.Errorf("xendit: build request: %w", err)
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "error"
		if ctx.Err() != nil {
			outcome = "canceled"
		}
		logctx.FromOr(ctx, c.log).Warn("xendit_request_failed",
			observability.F("endpoint", endpoint),
			observability.F("error", err),
		)
		return 0, errorResponse{}, err
	}
	defer resp.Body.Close()
	statusCode = resp.StatusCode

	if resp.StatusCode >= 300 {
		outcome = "error"
		var e errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(raw, &e)
		logctx.FromOr(ctx, c.log).Warn("xendit_request_rejected",
			observability.F("endpoint", endpoint),
			observability.F("status", resp.StatusCode),
			observability.F("error_code", e.ErrorCode),
			observability.F("message", e.Message),
		)
		return resp.StatusCode, e, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		outcome = "error"
		return resp.StatusCode, errorResponse{}, fmt.Errorf("xendit: decode: %w", err)
	}
	return resp.StatusCode, errorResponse{}, nil
}

func (r invoiceResponse) toDomain() *domain.Invoice {
	return &domain.Invoice{
		ID:          r.ID,
		ExternalID:  r.ExternalID,
		Amount:      r.Amount,
		Status:      domain.InvoiceStatus(strings.ToUpper(r.Status)),
		CheckoutURL: r.InvoiceURL,
		ExpiresAt:   r.ExpiryDate,
	}
}

// createError maps a rejected invoice creation to a cashier facing message.
func createError(status int, body errorResponse) *domain.GatewayError {
	switch status {
	case http.StatusForbidden:
		return &domain.GatewayError{StatusCode: status, Message: msgForbidden}
	case http.StatusUnauthorized:
		return &domain.GatewayError{StatusCode: status, Message: msgUnauthorized}
	case http.StatusBadRequest:
		msg := body.Message
		if msg == "" {
			msg = msgInvalidRequest
		}
		if strings.Contains(msg, channelMismatch) {
			return &domain.GatewayError{StatusCode: status, Message: msgChannelMissing}
		}
		return &domain.GatewayError{StatusCode: status, Message: "Bad request: " + msg}
	}
	return readableError(status, body)
}

func readableError(status int, body errorResponse) *domain.GatewayError {
	if body.Message != "" {
		return &domain.GatewayError{StatusCode: status, Message: body.Message}
	}
	switch status {
	case http.StatusForbidden:
		return &domain.GatewayError{StatusCode: status, Message: "API permissions insufficient. Please check Xendit dashboard settings."}
	case http.StatusUnauthorized:
		return &domain.GatewayError{StatusCode: status, Message: "Invalid API key. Please check your Xendit credentials."}
	}
	return &domain.GatewayError{StatusCode: status, Message: msgUnavailable}
}
