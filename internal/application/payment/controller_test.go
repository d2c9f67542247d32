package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	dompay "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeGateway struct {
	mu        sync.Mutex
	createErr error
	status    dompay.InvoiceStatus
	statusErr error
	requests  []dompay.InvoiceRequest
	polls     int
	hold      chan struct{}
}

func (g *fakeGateway) CreateInvoice(ctx context.Context, req dompay.InvoiceRequest) (*dompay.Invoice, error) {
	g.mu.Lock()
	hold := g.hold
	g.mu.Unlock()
	if hold != nil {
		<-hold
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	n := len(g.requests)
	return &dompay.Invoice{
		ID:          fmt.Sprintf("inv_%d", n),
		ExternalID:  req.ExternalID,
		Amount:      req.Amount,
		Status:      dompay.InvoicePending,
		CheckoutURL: fmt.Sprintf("https://checkout.test/inv_%d", n),
	}, nil
}

func (g *fakeGateway) InvoiceStatus(ctx context.Context, id string) (dompay.InvoiceStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.polls++
	if g.statusErr != nil {
		return "", g.statusErr
	}
	return g.status, nil
}

func (g *fakeGateway) set(status dompay.InvoiceStatus, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status, g.statusErr = status, err
}

func (g *fakeGateway) pollCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.polls
}

func (g *fakeGateway) requestCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type seqRefs struct{ n atomic.Int64 }

func (s *seqRefs) NewID() string { return fmt.Sprintf("coffeerealmpos_%d", s.n.Add(1)) }

func checkout() dompay.Checkout {
	return dompay.Checkout{
		Lines: []domcart.Line{
			{ID: "1", Name: "Espresso", Price: decimal.RequireFromString("3.50"), Quantity: 2, Category: "Coffee"},
			{ID: "5", Name: "Croissant", Price: decimal.RequireFromString("3.25"), Quantity: 1, Category: "Pastries"},
		},
		Totals: dompay.Totals{
			Subtotal:   decimal.RequireFromString("10.25"),
			Tax:        decimal.RequireFromString("0.82"),
			GrandTotal: decimal.RequireFromString("11.07"),
		},
	}
}

var fastTiming = Timing{
	PollInterval: 20 * time.Millisecond,
	SettleDelay:  10 * time.Millisecond,
	SuccessDelay: 150 * time.Millisecond,
}

func newController(t *testing.T, gw *fakeGateway, mailbox dompay.Mailbox) *Controller {
	t.Helper()
	uc := NewCreateInvoiceUseCase(gw, &seqRefs{}, InvoiceConfig{
		ReturnURL: "http://pos.test/pos",
		Convert:   func(usd decimal.Decimal) decimal.Decimal { return usd.Mul(decimal.NewFromInt(56)).Round(2) },
	}, nil)
	c := NewController(uc, gw, mailbox, fastTiming, nil)
	t.Cleanup(c.Shutdown)
	return c
}

func TestInvoiceRequestShape(t *testing.T) {
	gw := &fakeGateway{}
	uc := NewCreateInvoiceUseCase(gw, &seqRefs{}, InvoiceConfig{
		ReturnURL: "http://pos.test/pos",
		Convert:   func(usd decimal.Decimal) decimal.Decimal { return usd.Mul(decimal.NewFromInt(56)).Round(2) },
	}, nil)

	req := uc.Request(CreateInvoiceInput{Checkout: checkout(), Customer: dompay.Customer{Name: "Ana"}})
	assert.Equal(t, "Coffee Realm POS - 2 item(s)", req.Description)
	assert.Equal(t, "619.92", req.Amount.StringFixed(2))
	assert.Equal(t, "http://pos.test/pos?payment=success", req.SuccessRedirectURL)
	assert.Equal(t, "http://pos.test/pos?payment=failed", req.FailureRedirectURL)

	again := uc.Request(CreateInvoiceInput{Checkout: checkout()})
	assert.NotEqual(t, req.ExternalID, again.ExternalID)
}

func TestSubmitRequiresCustomerName(t *testing.T) {
	gw := &fakeGateway{}
	c := newController(t, gw, memory.NewMailbox())
	require.NoError(t, c.Open(checkout(), nil))

	err := c.Submit(context.Background(), dompay.Customer{Name: "   "})
	assert.ErrorIs(t, err, dompay.ErrCustomerNameRequired)

	v := c.State()
	assert.Equal(t, dompay.StateIdle, v.State)
	assert.Equal(t, "Customer name is required", v.Error)
	assert.Zero(t, gw.requestCount())
}

func TestSubmitWithoutDialog(t *testing.T) {
	c := newController(t, &fakeGateway{}, memory.NewMailbox())
	assert.ErrorIs(t, c.Submit(context.Background(), dompay.Customer{Name: "Ana"}), dompay.ErrDialogClosed)
	assert.ErrorIs(t, c.Open(dompay.Checkout{}, nil), dompay.ErrEmptyCheckout)
}

func TestCreateFailureShowsProviderMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"provider message", &dompay.GatewayError{StatusCode: 400, Message: "Bad request: amount too small"}, "Bad request: amount too small"},
		{"no message", errors.New("boom"), "Failed to create payment"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := &fakeGateway{createErr: tc.err}
			c := newController(t, gw, memory.NewMailbox())
			require.NoError(t, c.Open(checkout(), nil))

			require.NoError(t, c.Submit(context.Background(), dompay.Customer{Name: "Ana"}))
			v := c.State()
			assert.Equal(t, dompay.StateFailed, v.State)
			assert.Equal(t, tc.want, v.Error)

			require.NoError(t, c.Retry())
			v = c.State()
			assert.Equal(t, dompay.StateIdle, v.State)
			assert.Empty(t, v.Error)
		})
	}
}

func TestHappyPathFiresSuccessOnce(t *testing.T) {
	gw := &fakeGateway{status: dompay.InvoicePending}
	c := newController(t, gw, memory.NewMailbox())

	var calls atomic.Int32
	var paid atomic.Value
	require.NoError(t, c.Open(checkout(), func(_ context.Context, invoiceID string) {
		calls.Add(1)
		paid.Store(invoiceID)
	}))

	require.NoError(t, c.Submit(context.Background(), dompay.Customer{Name: "Ana"}))
	assert.Contains(t, []dompay.State{dompay.StateProcessing, dompay.StateReady}, c.State().State)
	assert.ErrorIs(t, c.Submit(context.Background(), dompay.Customer{Name: "Ana"}), dompay.ErrNotIdle)

	require.Eventually(t, func() bool { return c.State().State == dompay.StateReady }, waitFor, tick)
	v := c.State()
	assert.Equal(t, "https://checkout.test/inv_1", v.CheckoutURL)
	require.Eventually(t, func() bool { return gw.pollCount() >= 2 }, waitFor, tick)

	gw.set(dompay.InvoicePaid, nil)
	require.Eventually(t, func() bool { return c.State().State == dompay.StateSuccess }, waitFor, tick)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, waitFor, tick)
	assert.Equal(t, "inv_1", paid.Load())

	require.Eventually(t, func() bool { return !c.State().Open }, waitFor, tick)
	polls := gw.pollCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, polls, gw.pollCount(), "polling stops after success")
	assert.EqualValues(t, 1, calls.Load())
}

func TestPollErrorsAreIgnored(t *testing.T) {
	gw := &fakeGateway{statusErr: errors.New("timeout")}
	c := newController(t, gw, memory.NewMailbox())
	done := make(chan string, 1)
	require.NoError(t, c.Open(checkout(), func(_ context.Context, id string) { done <- id }))
	require.NoError(t, c.Submit(context.Background(), dompay.Customer{Name: "Ana"}))

	require.Eventually(t, func() bool { return gw.pollCount() >= 3 }, waitFor, tick)
	assert.NotEqual(t, dompay.StateFailed, c.State().State)

	gw.set(dompay.InvoiceSettled, nil)
	select {
	case id := <-done:
		assert.Equal(t, "inv_1", id)
	case <-time.After(waitFor):
		t.Fatal("success callback not called")
	}
}

func TestExpiredInvoiceFails(t *testing.T) {
	gw := &fakeGateway{status: dompay.InvoiceExpired}
	c := newController(t, gw, memory.NewMailbox())
	require.NoError(t, c.Open(checkout(), func(context.Context, string) { t.Error("unexpected success") }))
	require.NoError(t, c.Submit(context.Background(), dompay.Customer{Name: "Ana"}))

	require.Eventually(t, func() bool { return c.State().State == dompay.StateFailed }, waitFor, tick)
	assert.Equal(t, "Payment expired", c.State().Error)

	polls := gw.pollCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, polls, gw.pollCount())
}

func TestCloseDiscardsInFlightCreation(t *testing.T) {
	gw := &fakeGateway{hold: make(chan struct{})}
	c := newController(t, gw, memory.NewMailbox())
	require.NoError(t, c.Open(checkout(), nil))

	errc := make(chan error, 1)
	go func() { errc <- c.Submit(context.Background(), dompay.Customer{Name: "Ana"}) }()
	require.Eventually(t, func() bool { return c.State().State == dompay.StateProcessing }, waitFor, tick)

	c.Close()
	close(gw.hold)

	assert.ErrorIs(t, <-errc, dompay.ErrDialogClosed)
	assert.False(t, c.State().Open)
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, gw.pollCount(), "a discarded attempt never polls")
}

func TestCloseStopsPolling(t *testing.T) {
	gw := &fakeGateway{status: dompay.InvoicePending}
	c := newController(t, gw, memory.NewMailbox())
	require.NoError(t, c.Open(checkout(), nil))
	require.NoError(t, c.Submit(context.Background(), dompay.Customer{Name: "Ana"}))
	require.Eventually(t, func() bool { return gw.pollCount() >= 1 }, waitFor, tick)

	c.Close()
	time.Sleep(30 * time.Millisecond)
	polls := gw.pollCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, polls, gw.pollCount())
}

func TestProceedToCheckoutHandsOff(t *testing.T) {
	gw := &fakeGateway{status: dompay.InvoicePending}
	mailbox := memory.NewMailbox()
	c := newController(t, gw, mailbox)
	require.NoError(t, c.Open(checkout(), nil))

	_, err := c.ProceedToCheckout(context.Background())
	assert.ErrorIs(t, err, dompay.ErrNotReady)

	require.NoError(t, c.Submit(context.Background(), dompay.Customer{Name: "Ana", Email: "ana@example.com"}))
	require.Eventually(t, func() bool { return c.State().State == dompay.StateReady }, waitFor, tick)

	url, err := c.ProceedToCheckout(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/inv_1", url)
	assert.False(t, c.State().Open)

	p, err := mailbox.Take(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Ana", p.CustomerName)
	assert.Equal(t, "ana@example.com", p.CustomerEmail)
	assert.Len(t, p.Items, 2)
	assert.Equal(t, "11.07", p.GrandTotal.StringFixed(2))
}

func TestOpenReplacesSession(t *testing.T) {
	gw := &fakeGateway{status: dompay.InvoicePending}
	c := newController(t, gw, memory.NewMailbox())
	require.NoError(t, c.Open(checkout(), nil))
	require.NoError(t, c.Submit(context.Background(), dompay.Customer{Name: "Ana"}))

	require.NoError(t, c.Open(checkout(), nil))
	v := c.State()
	assert.True(t, v.Open)
	assert.Equal(t, dompay.StateIdle, v.State)
	assert.Nil(t, v.Invoice)
}

func TestRetryOnlyFromFailed(t *testing.T) {
	gw := &fakeGateway{status: dompay.InvoicePending}
	c := newController(t, gw, memory.NewMailbox())
	require.NoError(t, c.Open(checkout(), nil))
	assert.ErrorIs(t, c.Retry(), dompay.ErrNotFailed)

	require.NoError(t, c.Submit(context.Background(), dompay.Customer{Name: "Ana"}))
	require.Eventually(t, func() bool { return c.State().State == dompay.StateReady }, waitFor, tick)
	assert.ErrorIs(t, c.Retry(), dompay.ErrNotFailed)
	assert.Equal(t, dompay.StateReady, c.State().State)
}

func TestShutdownWaitsForPendingSuccess(t *testing.T) {
	gw := &fakeGateway{status: dompay.InvoicePaid}
	uc := NewCreateInvoiceUseCase(gw, &seqRefs{}, InvoiceConfig{ReturnURL: "http://pos.test/pos"}, nil)
	c := NewController(uc, gw, memory.NewMailbox(), Timing{
		PollInterval: 10 * time.Millisecond,
		SettleDelay:  time.Hour,
		SuccessDelay: time.Hour,
	}, nil)

	var calls atomic.Int32
	require.NoError(t, c.Open(checkout(), func(context.Context, string) {
		time.Sleep(20 * time.Millisecond)
		calls.Add(1)
	}))
	require.NoError(t, c.Submit(context.Background(), dompay.Customer{Name: "Ana"}))
	require.Eventually(t, func() bool { return c.State().State == dompay.StateSuccess }, waitFor, tick)

	c.Shutdown()
	assert.EqualValues(t, 1, calls.Load(), "the paid order is recorded before shutdown returns")
}
