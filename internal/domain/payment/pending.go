package payment

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	"github.com/shopspring/decimal"
)

// MailboxKey names the single slot that survives the redirect to the provider.
const MailboxKey = "pendingXenditOrder"

// ReturnParam is the query parameter the provider appends on redirect.
const ReturnParam = "payment"

// ReturnOutcome is the value of ReturnParam.
type ReturnOutcome string

const (
	ReturnSuccess ReturnOutcome = "success"
	ReturnFailed  ReturnOutcome = "failed"
)

// PendingCheckout is written just before leaving for the hosted page and read
// once on return.
type PendingCheckout struct {
	Items         []cart.Line     `json:"items"`
	CustomerName  string          `json:"customerName,omitempty"`
	CustomerEmail string          `json:"customerEmail,omitempty"`
	CustomerPhone string          `json:"customerPhone,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Tax           decimal.Decimal `json:"tax"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	Timestamp     time.Time       `json:"timestamp"`
}

func NewPendingCheckout(c Checkout, customer Customer, now time.Time) PendingCheckout {
	items := make([]cart.Line, len(c.Lines))
	copy(items, c.Lines)
	return PendingCheckout{
		Items:         items,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		CustomerPhone: customer.Phone,
		Total:         c.Totals.Subtotal,
		Tax:           c.Totals.Tax,
		GrandTotal:    c.Totals.GrandTotal,
		Timestamp:     now,
	}
}

// Mailbox is durable single slot storage. Save overwrites; Take reads and
// deletes in one step and returns nil when the slot is empty.
type Mailbox interface {
	Save(ctx context.Context, p PendingCheckout) error
	Take(ctx context.Context) (*PendingCheckout, error)
	Clear(ctx context.Context) error
}
