// Package terminal wires the stores and the payment dialog into the cashier's
// flow: pick items, check out by cash or card, and reconcile card returns.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	apppayment "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/payment"
	domcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	dompay "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"
)

var ErrEmptyCart = errors.New("terminal: cart is empty")

const (
	titlePaymentSuccess = "Payment Successful!"
	titlePaymentFailed  = "Payment Failed"
	titleOrderCreated   = "Order Created"

	msgReturnSuccess = "Your order has been processed."
	msgReturnFailed  = "Please try again or use a different payment method."
)

type Inventory interface {
	Item(ctx context.Context, id string) (dominv.Item, error)
	Offerable(ctx context.Context, category string) ([]dominv.Item, error)
	Categories(ctx context.Context) ([]string, error)
}

type Cart interface {
	AddItem(ctx context.Context, p domcart.Product) error
	RemoveItem(ctx context.Context, id string) error
	UpdateQuantity(ctx context.Context, id string, qty int) error
	Clear(ctx context.Context) error
	ClearIfHolds(ctx context.Context, lines []domcart.Line) (bool, error)
	Snapshot(ctx context.Context) (*domcart.Cart, error)
}

type Orders interface {
	CreateOrder(ctx context.Context, lines []domcart.Line, d domorder.Details) (string, error)
}

// Dialog is the payment dialog as the terminal drives it.
type Dialog interface {
	Open(checkout dompay.Checkout, onSuccess apppayment.SuccessFunc) error
	Close()
	Submit(ctx context.Context, customer dompay.Customer) error
	Retry() error
	ProceedToCheckout(ctx context.Context) (string, error)
	State() apppayment.View
}

type Resumer interface {
	Resume(ctx context.Context, query url.Values) (apppayment.ResumeResult, error)
}

// CheckoutResult tells the caller whether an order was recorded or the card dialog opened.
type CheckoutResult struct {
	OrderID    string
	DialogOpen bool
}

type Workflow struct {
	inventory Inventory
	cart      Cart
	orders    Orders
	dialog    Dialog
	resumer   Resumer
	notifier  *Notifier
	log       observability.Logger
}

func NewWorkflow(inv Inventory, cart Cart, orders Orders, dialog Dialog, resumer Resumer, notifier *Notifier, tel observability.Observability) *Workflow {
	if tel == nil {
		tel = observability.Nop()
	}
	if notifier == nil {
		notifier = NewNotifier(DefaultNotificationTTL)
	}
	return &Workflow{
		inventory: inv,
		cart:      cart,
		orders:    orders,
		dialog:    dialog,
		resumer:   resumer,
		notifier:  notifier,
		log:       tel.Logger().With(observability.F("component", "terminal")),
	}
}

func (w *Workflow) Notifier() *Notifier { return w.notifier }

// AddToCart adds one unit of an offerable item.
func (w *Workflow) AddToCart(ctx context.Context, itemID string) error {
	it, err := w.inventory.Item(ctx, itemID)
	if err != nil {
		return err
	}
	if !it.Offerable() {
		return dominv.ErrNotOfferable
	}
	return w.cart.AddItem(ctx, domcart.Product{
		ID:       it.ID,
		Name:     it.Name,
		Price:    it.Price,
		Category: it.Category,
		Image:    it.Image,
	})
}

func (w *Workflow) RemoveFromCart(ctx context.Context, itemID string) error {
	return w.cart.RemoveItem(ctx, itemID)
}

func (w *Workflow) UpdateQuantity(ctx context.Context, itemID string, qty int) error {
	return w.cart.UpdateQuantity(ctx, itemID, qty)
}

func (w *Workflow) ClearCart(ctx context.Context) error {
	return w.cart.Clear(ctx)
}

// Checkout records a non-card order right away, or opens the card dialog.
func (w *Workflow) Checkout(ctx context.Context, method domorder.PaymentMethod) (CheckoutResult, error) {
	if method == "" {
		method = domorder.PaymentCash
	}
	if !method.Valid() {
		return CheckoutResult{}, domorder.ErrInvalidPayment
	}

	c, err := w.cart.Snapshot(ctx)
	if err != nil {
		return CheckoutResult{}, err
	}
	if c.IsEmpty() {
		return CheckoutResult{}, ErrEmptyCart
	}

	if method == domorder.PaymentCard {
		checkout := checkoutOf(c)
		if err := w.dialog.Open(checkout, w.onCardPaid(checkout.Lines)); err != nil {
			return CheckoutResult{}, err
		}
		return CheckoutResult{DialogOpen: true}, nil
	}

	id, err := w.orders.CreateOrder(ctx, c.Lines(), domorder.Details{PaymentMethod: method})
	if err != nil {
		return CheckoutResult{}, err
	}
	if err := w.cart.Clear(ctx); err != nil {
		return CheckoutResult{OrderID: id}, err
	}
	w.notifier.Show(KindSuccess, titleOrderCreated, fmt.Sprintf("Cash order created successfully! Order ID: %s", ShortID(id)))
	return CheckoutResult{OrderID: id}, nil
}

// onCardPaid records the order for an in-dialog confirmation. The live cart
// is cleared only while it still holds the paid lines.
func (w *Workflow) onCardPaid(lines []domcart.Line) apppayment.SuccessFunc {
	return func(ctx context.Context, invoiceID string) {
		logger := logctx.FromOr(ctx, w.log).With(observability.F("invoice_id", invoiceID))
		id, err := w.orders.CreateOrder(ctx, lines, domorder.Details{
			PaymentMethod: domorder.PaymentCard,
			Notes:         "Xendit Payment - Invoice: " + invoiceID,
		})
		if err != nil {
			logger.Error("paid_order_not_recorded", observability.F("error", err))
			return
		}
		if cleared, err := w.cart.ClearIfHolds(ctx, lines); err != nil {
			logger.Warn("cart_clear_failed", observability.F("error", err))
		} else if !cleared {
			logger.Info("cart_kept_for_next_sale")
		}
		w.notifier.Show(KindSuccess, titlePaymentSuccess, fmt.Sprintf("Payment successful! Order ID: %s", ShortID(id)))
	}
}

func (w *Workflow) SubmitPayment(ctx context.Context, customer dompay.Customer) error {
	return w.dialog.Submit(ctx, customer)
}

func (w *Workflow) RetryPayment() error { return w.dialog.Retry() }

func (w *Workflow) ClosePayment() { w.dialog.Close() }

func (w *Workflow) Payment() apppayment.View { return w.dialog.State() }

// ProceedToCheckout hands the attempt to the hosted page. The live cart is
// cleared: the saved snapshot is what the return path records.
func (w *Workflow) ProceedToCheckout(ctx context.Context) (string, error) {
	u, err := w.dialog.ProceedToCheckout(ctx)
	if err != nil {
		return "", err
	}
	if err := w.cart.Clear(ctx); err != nil {
		logctx.FromOr(ctx, w.log).Warn("cart_clear_failed", observability.F("error", err))
	}
	return u, nil
}

// HandleReturn processes a redirect back from the hosted page and reports
// whether the query carried a payment marker.
func (w *Workflow) HandleReturn(ctx context.Context, query url.Values) (bool, error) {
	res, err := w.resumer.Resume(ctx, query)
	if err != nil {
		return res.Handled, err
	}
	switch {
	case !res.Handled:
		return false, nil
	case res.Outcome == dompay.ReturnSuccess:
		w.notifier.Show(KindSuccess, titlePaymentSuccess, msgReturnSuccess)
	default:
		w.notifier.Show(KindError, titlePaymentFailed, msgReturnFailed)
	}
	return true, nil
}

// SignOut ends the cashier's session on this terminal.
func (w *Workflow) SignOut(ctx context.Context) {
	w.dialog.Close()
	logctx.FromOr(ctx, w.log).Info("terminal_signed_out")
}

// ShortID is the tail of an order id shown to the cashier.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

func checkoutOf(c *domcart.Cart) dompay.Checkout {
	subtotal := c.Subtotal()
	tax := domorder.Tax(subtotal)
	return dompay.Checkout{
		Lines: c.Lines(),
		Totals: dompay.Totals{
			Subtotal:   subtotal,
			Tax:        tax,
			GrandTotal: subtotal.Add(tax),
		},
	}
}
