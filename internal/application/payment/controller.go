package payment

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/application"
	dompay "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultSettleDelay  = 2 * time.Second
	DefaultSuccessDelay = 2 * time.Second
)

// Timing controls the dialog's timers.
type Timing struct {
	PollInterval time.Duration
	SettleDelay  time.Duration
	SuccessDelay time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.PollInterval <= 0 {
		t.PollInterval = DefaultPollInterval
	}
	if t.SettleDelay <= 0 {
		t.SettleDelay = DefaultSettleDelay
	}
	if t.SuccessDelay <= 0 {
		t.SuccessDelay = DefaultSuccessDelay
	}
	return t
}

// SuccessFunc is called once per confirmed payment with the invoice id.
type SuccessFunc func(ctx context.Context, invoiceID string)

// View is a point-in-time copy of the dialog.
type View struct {
	Open        bool
	State       dompay.State
	Checkout    dompay.Checkout
	Customer    dompay.Customer
	Invoice     *dompay.Invoice
	Error       string
	CheckoutURL string
}

type session struct {
	checkout  dompay.Checkout
	onSuccess SuccessFunc
	fired     sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	state    dompay.State
	customer dompay.Customer
	invoice  *dompay.Invoice
	errMsg   string

	attempt       uint64
	cancelAttempt context.CancelFunc
}

// Controller drives the payment dialog: one session at a time, one invoice
// attempt per session at a time. Responses for a closed session or a replaced
// attempt are dropped.
type Controller struct {
	mu      sync.Mutex
	session *session

	create  *CreateInvoiceUseCase
	gateway dompay.Gateway
	mailbox dompay.Mailbox
	timing  Timing
	now     func() time.Time

	baseCtx   context.Context
	shutdown  context.CancelFunc
	callbacks sync.WaitGroup

	in             application.Instruments
	attemptCounter observability.Counter
}

func NewController(
	create *CreateInvoiceUseCase,
	gateway dompay.Gateway,
	mailbox dompay.Mailbox,
	timing Timing,
	tel observability.Observability,
) *Controller {
	in := application.NewInstruments(tel, paymentService)
	base, cancel := context.WithCancel(logctx.With(context.Background(), in.Log))
	return &Controller{
		create:         create,
		gateway:        gateway,
		mailbox:        mailbox,
		timing:         timing.withDefaults(),
		now:            time.Now,
		baseCtx:        base,
		shutdown:       cancel,
		in:             in,
		attemptCounter: in.Counter(observability.MPaymentAttempts),
	}
}

// Open starts a dialog session for the checkout, replacing any open one.
func (c *Controller) Open(checkout dompay.Checkout, onSuccess SuccessFunc) error {
	if len(checkout.Lines) == 0 {
		return dompay.ErrEmptyCheckout
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.baseCtx.Err(); err != nil {
		return err
	}
	c.closeLocked()
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.session = &session{
		checkout:  checkout,
		onSuccess: onSuccess,
		ctx:       ctx,
		cancel:    cancel,
		state:     dompay.StateIdle,
	}
	return nil
}

// Close tears the dialog down and stops any polling.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Controller) closeLocked() {
	if c.session == nil {
		return
	}
	c.session.cancel()
	c.session = nil
}

// Submit creates an invoice for the open checkout. A blank name is reported
// and leaves the dialog idle. Gateway failures are not returned: they move
// the dialog to failed with a displayable message.
func (c *Controller) Submit(ctx context.Context, customer dompay.Customer) error {
	customer.Name = strings.TrimSpace(customer.Name)

	c.mu.Lock()
	s := c.session
	if s == nil {
		c.mu.Unlock()
		return dompay.ErrDialogClosed
	}
	if s.state != dompay.StateIdle {
		c.mu.Unlock()
		return dompay.ErrNotIdle
	}
	if customer.Name == "" {
		s.errMsg = dompay.ErrCustomerNameRequired.Error()
		c.mu.Unlock()
		return dompay.ErrCustomerNameRequired
	}

	s.state = dompay.StateProcessing
	s.customer = customer
	s.errMsg = ""
	s.invoice = nil
	s.attempt++
	attempt := s.attempt
	attemptCtx, cancel := context.WithCancel(s.ctx)
	s.cancelAttempt = cancel
	checkout := s.checkout
	c.mu.Unlock()

	if logger := logctx.From(ctx); logger != nil {
		attemptCtx = logctx.With(attemptCtx, logger)
	}
	inv, err := c.create.Execute(attemptCtx, CreateInvoiceInput{Checkout: checkout, Customer: customer})

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(s, attempt) {
		cancel()
		return dompay.ErrDialogClosed
	}
	if err != nil {
		s.state = dompay.StateFailed
		s.errMsg = dompay.DisplayMessage(err)
		cancel()
		return nil
	}
	s.invoice = inv
	go c.watch(attemptCtx, s, attempt, inv.ID)
	return nil
}

// Retry returns a failed dialog to idle so the cashier can submit again.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return dompay.ErrDialogClosed
	}
	if s.state != dompay.StateFailed {
		return dompay.ErrNotFailed
	}
	s.state = dompay.StateIdle
	s.errMsg = ""
	s.invoice = nil
	return nil
}

// ProceedToCheckout saves the hand-off snapshot, closes the dialog and
// returns the hosted checkout URL.
func (c *Controller) ProceedToCheckout(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return "", dompay.ErrDialogClosed
	}
	if s.state != dompay.StateReady || s.invoice == nil {
		return "", dompay.ErrNotReady
	}

	pending := dompay.NewPendingCheckout(s.checkout, s.customer, c.now())
	if err := c.mailbox.Save(ctx, pending); err != nil {
		return "", err
	}
	url := s.invoice.CheckoutURL
	logctx.FromOr(ctx, c.in.Log).Info("payment_checkout_handoff",
		observability.F("invoice_id", s.invoice.ID),
		observability.F("items", len(pending.Items)),
	)
	c.closeLocked()
	return url, nil
}

// State returns a copy of the dialog.
func (c *Controller) State() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return View{State: dompay.StateIdle}
	}
	v := View{
		Open:     true,
		State:    s.state,
		Checkout: s.checkout,
		Customer: s.customer,
		Error:    s.errMsg,
	}
	v.Checkout.Lines = append(v.Checkout.Lines[:0:0], s.checkout.Lines...)
	if s.invoice != nil {
		inv := *s.invoice
		v.Invoice = &inv
		if s.state == dompay.StateReady {
			v.CheckoutURL = inv.CheckoutURL
		}
	}
	return v
}

// Shutdown stops every timer and poll. Pending success callbacks run
// immediately and Shutdown returns once they have finished.
func (c *Controller) Shutdown() {
	c.shutdown()
	c.Close()
	c.callbacks.Wait()
}

func (c *Controller) currentLocked(s *session, attempt uint64) bool {
	return c.session == s && s.attempt == attempt
}

// watch runs the settle timer and the status poll for one attempt.
func (c *Controller) watch(ctx context.Context, s *session, attempt uint64, invoiceID string) {
	settle := time.NewTimer(c.timing.SettleDelay)
	defer settle.Stop()
	poll := time.NewTicker(c.timing.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-settle.C:
			c.mu.Lock()
			if c.currentLocked(s, attempt) && s.state == dompay.StateProcessing {
				s.state = dompay.StateReady
			}
			c.mu.Unlock()
		case <-poll.C:
			if done := c.poll(ctx, s, attempt, invoiceID); done {
				return
			}
		}
	}
}

func (c *Controller) poll(ctx context.Context, s *session, attempt uint64, invoiceID string) bool {
	status, err := c.gateway.InvoiceStatus(ctx, invoiceID)
	if err != nil {
		if ctx.Err() == nil {
			logctx.FromOr(ctx, c.in.Log).Warn("payment_poll_failed",
				observability.F("invoice_id", invoiceID),
				observability.F("error", err),
			)
		}
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(s, attempt) {
		return true
	}
	if s.state != dompay.StateProcessing && s.state != dompay.StateReady {
		return true
	}

	switch {
	case status.Confirmed():
		s.state = dompay.StateSuccess
		s.cancelAttempt()
		c.attemptCounter.Add(1, observability.L("outcome", "paid"))
		c.callbacks.Add(1)
		go func() {
			defer c.callbacks.Done()
			c.complete(s, invoiceID)
		}()
		return true
	case status == dompay.InvoiceExpired:
		s.state = dompay.StateFailed
		s.errMsg = dompay.MessageExpired
		s.cancelAttempt()
		c.attemptCounter.Add(1, observability.L("outcome", "expired"))
		return true
	}
	return false
}

// complete fires the success callback after the success delay and closes the
// dialog if it is still the one that was paid. The callback fires even when
// the dialog was closed meanwhile, since the money was taken.
func (c *Controller) complete(s *session, invoiceID string) {
	t := time.NewTimer(c.timing.SuccessDelay)
	select {
	case <-t.C:
	case <-c.baseCtx.Done():
		t.Stop()
	}

	s.fired.Do(func() {
		logctx.FromOr(c.baseCtx, c.in.Log).Info("payment_confirmed", observability.F("invoice_id", invoiceID))
		if s.onSuccess != nil {
			s.onSuccess(context.WithoutCancel(c.baseCtx), invoiceID)
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == s {
		c.closeLocked()
	}
}
