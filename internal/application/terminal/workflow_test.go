package terminal

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	appcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/cart"
	appinv "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/order"
	apppayment "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/payment"
	dominv "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	dompay "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%08d", s.prefix, s.n)
}

type numbers struct{}

func (numbers) NewNumber(now time.Time) string {
	return domorder.NewNumber(now, func(int) int { return 0 })
}

type paidGateway struct{ status dompay.InvoiceStatus }

func (g paidGateway) CreateInvoice(_ context.Context, req dompay.InvoiceRequest) (*dompay.Invoice, error) {
	return &dompay.Invoice{ID: "inv_1", ExternalID: req.ExternalID, Amount: req.Amount, Status: dompay.InvoicePending, CheckoutURL: "https://checkout.test/inv_1"}, nil
}

func (g paidGateway) InvoiceStatus(context.Context, string) (dompay.InvoiceStatus, error) {
	return g.status, nil
}

type fixture struct {
	workflow  *Workflow
	inventory *appinv.Service
	orders    *apporder.Service
	carts     *appcart.Service
	mailbox   *memory.Mailbox
	dialog    *apppayment.Controller
}

var fastTiming = apppayment.Timing{
	PollInterval: 15 * time.Millisecond,
	SettleDelay:  5 * time.Millisecond,
	SuccessDelay: 10 * time.Millisecond,
}

func newFixture(t *testing.T, status dompay.InvoiceStatus) fixture {
	t.Helper()
	return newFixtureWithTiming(t, status, fastTiming)
}

func newFixtureWithTiming(t *testing.T, status dompay.InvoiceStatus, timing apppayment.Timing) fixture {
	t.Helper()
	ctx := context.Background()

	inv := appinv.NewService(memory.NewInventoryRepository(), &seqIDs{prefix: "item"}, nil, nil)
	for _, d := range []dominv.Draft{
		{Name: "Espresso", Category: "Coffee", Price: decimal.RequireFromString("3.50"), Stock: 10, LowStockThreshold: 2, IsActive: true},
		{Name: "Croissant", Category: "Pastries", Price: decimal.RequireFromString("3.25"), Stock: 0, LowStockThreshold: 2, IsActive: true},
		{Name: "Seasonal Tea", Category: "Tea", Price: decimal.RequireFromString("2.00"), Stock: 5, LowStockThreshold: 1, IsActive: false},
	} {
		_, err := inv.AddItem(ctx, d)
		require.NoError(t, err)
	}

	orderRepo := memory.NewOrderRepository()
	orders := apporder.NewService(orderRepo,
		apporder.NewCreateOrderUseCase(orderRepo, &seqIDs{prefix: "order"}, numbers{}, nil, nil),
		nil, domorder.Permissive, nil)
	carts := appcart.NewService(memory.NewCartRepository(), nil)
	mailbox := memory.NewMailbox()

	gw := paidGateway{status: status}
	uc := apppayment.NewCreateInvoiceUseCase(gw, &seqIDs{prefix: "ref"}, apppayment.InvoiceConfig{ReturnURL: "http://pos.test/pos"}, nil)
	dialog := apppayment.NewController(uc, gw, mailbox, timing, nil)
	t.Cleanup(dialog.Shutdown)

	resumer := apppayment.NewResumer(mailbox, orders, carts, nil)
	return fixture{
		workflow:  NewWorkflow(inv, carts, orders, dialog, resumer, NewNotifier(time.Minute), nil),
		inventory: inv,
		orders:    orders,
		carts:     carts,
		mailbox:   mailbox,
		dialog:    dialog,
	}
}

func TestAddToCartGuardsOfferable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dompay.InvoicePending)

	require.NoError(t, f.workflow.AddToCart(ctx, "item-00000001"))
	require.NoError(t, f.workflow.AddToCart(ctx, "item-00000001"))
	assert.ErrorIs(t, f.workflow.AddToCart(ctx, "item-00000002"), dominv.ErrNotOfferable, "out of stock")
	assert.ErrorIs(t, f.workflow.AddToCart(ctx, "item-00000003"), dominv.ErrNotOfferable, "inactive")
	assert.ErrorIs(t, f.workflow.AddToCart(ctx, "nope"), dominv.ErrNotFound)

	v, err := f.workflow.View(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, v.ItemCount)
	assert.Equal(t, "7.00", v.Totals.Subtotal.StringFixed(2))
	assert.Equal(t, "0.56", v.Totals.Tax.StringFixed(2))
	assert.Equal(t, "7.56", v.Totals.GrandTotal.StringFixed(2))
	require.Len(t, v.Items, 1, "only offerable items are listed")
	assert.Equal(t, "All", v.Categories[0])
}

func TestCashCheckoutRecordsOrderAndClearsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dompay.InvoicePending)

	_, err := f.workflow.Checkout(ctx, domorder.PaymentCash)
	assert.ErrorIs(t, err, ErrEmptyCart)

	require.NoError(t, f.workflow.AddToCart(ctx, "item-00000001"))
	res, err := f.workflow.Checkout(ctx, domorder.PaymentCash)
	require.NoError(t, err)
	assert.False(t, res.DialogOpen)

	o, err := f.orders.OrderByID(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domorder.PaymentCash, o.PaymentMethod)
	assert.Equal(t, domorder.CustomerWalkIn, o.CustomerType)

	c, err := f.carts.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	note, ok := f.workflow.Notifier().Active()
	require.True(t, ok)
	assert.Contains(t, note.Message, "00000001")
}

func TestCardCheckoutInDialogSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dompay.InvoicePaid)
	require.NoError(t, f.workflow.AddToCart(ctx, "item-00000001"))

	res, err := f.workflow.Checkout(ctx, domorder.PaymentCard)
	require.NoError(t, err)
	assert.True(t, res.DialogOpen)
	require.NoError(t, f.workflow.SubmitPayment(ctx, dompay.Customer{Name: "Ana"}))

	require.Eventually(t, func() bool {
		all, err := f.orders.Orders(ctx)
		return err == nil && len(all) == 1
	}, 2*time.Second, 5*time.Millisecond)

	all, err := f.orders.Orders(ctx)
	require.NoError(t, err)
	assert.Equal(t, domorder.PaymentCard, all[0].PaymentMethod)
	assert.Equal(t, "Xendit Payment - Invoice: inv_1", all[0].Notes)

	require.Eventually(t, func() bool {
		c, err := f.carts.Snapshot(ctx)
		return err == nil && c.IsEmpty() && !f.dialog.State().Open
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLateCardSuccessKeepsNextSale(t *testing.T) {
	ctx := context.Background()
	f := newFixtureWithTiming(t, dompay.InvoicePaid, apppayment.Timing{
		PollInterval: 10 * time.Millisecond,
		SettleDelay:  time.Hour,
		SuccessDelay: 300 * time.Millisecond,
	})
	require.NoError(t, f.workflow.AddToCart(ctx, "item-00000001"))
	_, err := f.workflow.Checkout(ctx, domorder.PaymentCard)
	require.NoError(t, err)
	require.NoError(t, f.workflow.SubmitPayment(ctx, dompay.Customer{Name: "Ana"}))
	require.Eventually(t, func() bool { return f.dialog.State().State == dompay.StateSuccess }, 2*time.Second, 5*time.Millisecond)

	f.workflow.ClosePayment()
	require.NoError(t, f.workflow.ClearCart(ctx))
	require.NoError(t, f.workflow.AddToCart(ctx, "item-00000001"))
	require.NoError(t, f.workflow.AddToCart(ctx, "item-00000001"))

	require.Eventually(t, func() bool {
		all, err := f.orders.Orders(ctx)
		return err == nil && len(all) == 1
	}, 2*time.Second, 5*time.Millisecond)

	c, err := f.carts.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, c.ItemCount(), "the next sale's cart survives the late confirmation")

	all, err := f.orders.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, all[0].Items, 1)
	assert.Equal(t, 1, all[0].Items[0].Quantity)
}

func TestCardCheckoutRedirectRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dompay.InvoicePending)
	require.NoError(t, f.workflow.AddToCart(ctx, "item-00000001"))

	_, err := f.workflow.Checkout(ctx, domorder.PaymentCard)
	require.NoError(t, err)
	require.NoError(t, f.workflow.SubmitPayment(ctx, dompay.Customer{Name: "Ana"}))
	require.Eventually(t, func() bool { return f.dialog.State().State == dompay.StateReady }, 2*time.Second, 5*time.Millisecond)

	u, err := f.workflow.ProceedToCheckout(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/inv_1", u)
	c, err := f.carts.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	handled, err := f.workflow.HandleReturn(ctx, url.Values{"payment": []string{"success"}})
	require.NoError(t, err)
	assert.True(t, handled)

	all, err := f.orders.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Ana", all[0].CustomerName)
	assert.Equal(t, apppayment.ResumeNote, all[0].Notes)

	note, ok := f.workflow.Notifier().Active()
	require.True(t, ok)
	assert.Equal(t, KindSuccess, note.Kind)

	handled, err = f.workflow.HandleReturn(ctx, url.Values{})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestHandleReturnFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dompay.InvoicePending)

	handled, err := f.workflow.HandleReturn(ctx, url.Values{"payment": []string{"failed"}})
	require.NoError(t, err)
	assert.True(t, handled)

	note, ok := f.workflow.Notifier().Active()
	require.True(t, ok)
	assert.Equal(t, KindError, note.Kind)
	assert.Equal(t, "Payment Failed", note.Title)
}

func TestSignOutClosesDialog(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, dompay.InvoicePending)
	require.NoError(t, f.workflow.AddToCart(ctx, "item-00000001"))
	_, err := f.workflow.Checkout(ctx, domorder.PaymentCard)
	require.NoError(t, err)
	require.True(t, f.dialog.State().Open)

	f.workflow.SignOut(ctx)
	assert.False(t, f.dialog.State().Open)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", ShortID("abc"))
	assert.Equal(t, "56789abc", ShortID("0123456789abc"))
}
