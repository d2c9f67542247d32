package payment

import (
	"context"
	"fmt"
	"net/url"

	domorder "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	dompay "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"
)

const (
	// ResumeNote is attached to orders recorded after a hosted checkout.
	ResumeNote = "Xendit Payment - Completed via checkout"
	// ResumeCustomer names the customer when the snapshot carried no name.
	ResumeCustomer = "Xendit Customer"
)

// ResumeResult describes what a return from the hosted page did.
type ResumeResult struct {
	// Handled is false when the query carried no payment marker.
	Handled bool
	Outcome dompay.ReturnOutcome
	// OrderID is empty when there was nothing to record.
	OrderID      string
	FromSnapshot bool
}

// Resumer reconciles a return from the hosted checkout page into an order.
// The mailbox Take is a read and delete, so a snapshot is used at most once.
type Resumer struct {
	mailbox dompay.Mailbox
	orders  OrderRecorder
	cart    CartStore
	log     observability.Logger
}

func NewResumer(mailbox dompay.Mailbox, orders OrderRecorder, cart CartStore, tel observability.Observability) *Resumer {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Resumer{
		mailbox: mailbox,
		orders:  orders,
		cart:    cart,
		log:     tel.Logger().With(observability.F("service", paymentService), observability.F("component", "resumer")),
	}
}

// Resume inspects the redirect query and records the paid order.
func (r *Resumer) Resume(ctx context.Context, query url.Values) (ResumeResult, error) {
	logger := logctx.FromOr(ctx, r.log)

	switch dompay.ReturnOutcome(query.Get(dompay.ReturnParam)) {
	case dompay.ReturnSuccess:
		return r.resumeSuccess(ctx, logger)
	case dompay.ReturnFailed:
		if err := r.mailbox.Clear(ctx); err != nil {
			logger.Warn("pending_checkout_clear_failed", observability.F("error", err))
		}
		logger.Info("payment_return_failed")
		return ResumeResult{Handled: true, Outcome: dompay.ReturnFailed}, nil
	default:
		return ResumeResult{}, nil
	}
}

func (r *Resumer) resumeSuccess(ctx context.Context, logger observability.Logger) (ResumeResult, error) {
	res := ResumeResult{Handled: true, Outcome: dompay.ReturnSuccess}

	pending, err := r.mailbox.Take(ctx)
	if err != nil {
		logger.Warn("pending_checkout_unreadable", observability.F("error", err))
		pending = nil
	}

	if pending != nil && len(pending.Items) > 0 {
		name := pending.CustomerName
		if name == "" {
			name = ResumeCustomer
		}
		id, err := r.orders.CreateOrder(ctx, pending.Items, domorder.Details{
			CustomerName:  name,
			PaymentMethod: domorder.PaymentCard,
			Notes:         ResumeNote,
		})
		if err != nil {
			return res, fmt.Errorf("payment: record returned order: %w", err)
		}
		res.OrderID, res.FromSnapshot = id, true
		logger.Info("payment_return_recorded", observability.F("order_id", id), observability.F("source", "snapshot"))
		return res, nil
	}

	live, err := r.cart.Snapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("payment: read cart: %w", err)
	}
	if live.IsEmpty() {
		logger.Warn("payment_return_nothing_to_record")
		return res, nil
	}
	id, err := r.orders.CreateOrder(ctx, live.Lines(), domorder.Details{
		PaymentMethod: domorder.PaymentCard,
		Notes:         ResumeNote,
	})
	if err != nil {
		return res, fmt.Errorf("payment: record returned order: %w", err)
	}
	res.OrderID = id
	if err := r.cart.Clear(ctx); err != nil {
		logger.Warn("cart_clear_failed", observability.F("error", err))
	}
	logger.Info("payment_return_recorded", observability.F("order_id", id), observability.F("source", "cart"))
	return res, nil
}
