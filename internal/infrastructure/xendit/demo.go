package xendit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
)

// DemoPrefix marks invoices issued by DemoGateway.
const DemoPrefix = "demo_invoice_"

// DemoGateway stands in for Xendit when no secret key is configured. Every
// invoice reports PAID on its first status check.
type DemoGateway struct {
	baseURL string
	seq     atomic.Uint64

	mu       sync.Mutex
	invoices map[string]domain.InvoiceStatus
}

var _ domain.Gateway = (*DemoGateway)(nil)

func NewDemoGateway(checkoutBaseURL string) *DemoGateway {
	if checkoutBaseURL == "" {
		checkoutBaseURL = "https://checkout-staging.xendit.co/web"
	}
	return &DemoGateway{baseURL: checkoutBaseURL, invoices: make(map[string]domain.InvoiceStatus)}
}

func (d *DemoGateway) CreateInvoice(ctx context.Context, req domain.InvoiceRequest) (*domain.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := fmt.Sprintf("%s%d", DemoPrefix, d.seq.Add(1))

	d.mu.Lock()
	d.invoices[id] = domain.InvoicePending
	d.mu.Unlock()

	return &domain.Invoice{
		ID:          id,
		ExternalID:  req.ExternalID,
		Amount:      req.Amount,
		Status:      domain.InvoicePending,
		CheckoutURL: d.baseURL + "/" + id,
		ExpiresAt:   time.Now().Add(defaultDuration),
	}, nil
}

func (d *DemoGateway) InvoiceStatus(ctx context.Context, invoiceID string) (domain.InvoiceStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.invoices[invoiceID]; !ok {
		return "", &domain.GatewayError{StatusCode: 404, Message: "invoice not found"}
	}
	d.invoices[invoiceID] = domain.InvoicePaid
	return domain.InvoicePaid, nil
}
