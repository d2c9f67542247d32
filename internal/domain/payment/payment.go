// Package payment models a hosted checkout attempt: the provider invoice, the
// local dialog state and the hand-off snapshot kept across the redirect.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	"github.com/shopspring/decimal"
)

var (
	ErrCustomerNameRequired = errors.New("Customer name is required")
	ErrNotIdle              = errors.New("payment: an attempt is already in progress")
	ErrNotReady             = errors.New("payment: checkout is not ready")
	ErrNotFailed            = errors.New("payment: only a failed attempt can be retried")
	ErrDialogClosed         = errors.New("payment: dialog is not open")
	ErrEmptyCheckout        = errors.New("payment: nothing to pay for")
)

const (
	// MessageExpired is shown when the provider reports the invoice expired.
	MessageExpired = "Payment expired"
	// MessageCreateFailed is shown when invoice creation fails without a provider message.
	MessageCreateFailed = "Failed to create payment"
)

// InvoiceStatus mirrors the provider's status. Failed is local only.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "PENDING"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceSettled InvoiceStatus = "SETTLED"
	InvoiceExpired InvoiceStatus = "EXPIRED"
	InvoiceFailed  InvoiceStatus = "failed"
)

// Confirmed reports whether the provider considers the money received.
func (s InvoiceStatus) Confirmed() bool {
	return s == InvoicePaid || s == InvoiceSettled
}

// Invoice is the provider owned record of one attempt. It is never mutated locally.
type Invoice struct {
	ID          string          `json:"id"`
	ExternalID  string          `json:"external_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      InvoiceStatus   `json:"status"`
	CheckoutURL string          `json:"invoice_url"`
	ExpiresAt   time.Time       `json:"expiry_date"`
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// InvoiceRequest asks the provider for a hosted checkout page.
type InvoiceRequest struct {
	ExternalID         string
	Amount             decimal.Decimal
	Description        string
	Customer           Customer
	SuccessRedirectURL string
	FailureRedirectURL string
}

// Gateway is the hosted payment provider.
type Gateway interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
	InvoiceStatus(ctx context.Context, invoiceID string) (InvoiceStatus, error)
}

// GatewayError carries a message fit for display to the cashier. StatusCode
// is zero when the provider was never reached.
type GatewayError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string { return e.Message }

func (e *GatewayError) Unwrap() error { return e.Err }

// DisplayMessage returns the text shown for a failed creation.
func DisplayMessage(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return MessageCreateFailed
}

// State is the dialog's lifecycle for a single attempt.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateReady      State = "ready"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

// Totals is what the terminal showed when the dialog opened.
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// Checkout is the cart content a dialog session is paying for.
type Checkout struct {
	Lines  []cart.Line
	Totals Totals
}
