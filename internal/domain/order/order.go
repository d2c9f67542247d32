package order

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrEmpty             = errors.New("order: at least one item is required")
	ErrInvalidStatus     = errors.New("order: unknown status")
	ErrInvalidTransition = errors.New("order: status transition not allowed")
	ErrInvalidPayment    = errors.New("order: unknown payment method")
)

// TaxRate is the flat sales tax applied to every order.
var TaxRate = decimal.RequireFromString("0.08")

type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return s, nil
	}
	return "", ErrInvalidStatus
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentCard       PaymentMethod = "card"
	PaymentGCash      PaymentMethod = "GCash"
	PaymentGrabPay    PaymentMethod = "GrabPay"
	PaymentPayMaya    PaymentMethod = "PayMaya"
	PaymentCreditCard PaymentMethod = "Credit Card"
)

var paymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentGCash, PaymentGrabPay, PaymentPayMaya, PaymentCreditCard}

func (m PaymentMethod) Valid() bool { return slices.Contains(paymentMethods, m) }

type CustomerType string

const (
	CustomerWalkIn  CustomerType = "walk-in"
	CustomerRegular CustomerType = "regular"
)

// Item is the immutable snapshot of a cart line taken at order time.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category"`
}

func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Details are the caller supplied attributes of a new order.
type Details struct {
	CustomerName  string
	PaymentMethod PaymentMethod
	Notes         string
}

type Order struct {
	ID            string
	OrderNumber   string
	Items         []Item
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	Status        Status
	CustomerName  string
	CustomerType  CustomerType
	PaymentMethod PaymentMethod
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// Tax rounds the flat rate on subtotal to cents.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate).Round(2)
}

// Totals computes subtotal, tax and total for a set of items.
func Totals(items []Item) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Total())
	}
	tax = Tax(subtotal)
	return subtotal, tax, subtotal.Add(tax)
}

// New builds a pending order. Totals are fixed here and never recomputed.
func New(id, number string, items []Item, d Details, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	if d.PaymentMethod == "" {
		d.PaymentMethod = PaymentCash
	}
	if !d.PaymentMethod.Valid() {
		return nil, ErrInvalidPayment
	}
	subtotal, tax, total := Totals(items)
	name := strings.TrimSpace(d.CustomerName)
	customerType := CustomerWalkIn
	if name != "" {
		customerType = CustomerRegular
	}
	return &Order{
		ID:            id,
		OrderNumber:   number,
		Items:         slices.Clone(items),
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
		Status:        StatusPending,
		CustomerName:  name,
		CustomerType:  customerType,
		PaymentMethod: d.PaymentMethod,
		Notes:         d.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// SetStatus overwrites the status without consulting the lifecycle rules.
func (o *Order) SetStatus(s Status, now time.Time) {
	o.Status = s
	o.UpdatedAt = now
	if s == StatusCompleted {
		completed := now
		o.CompletedAt = &completed
	}
}

// Transition moves the order along its lifecycle, rejecting illegal moves.
func (o *Order) Transition(target Status, now time.Time) error {
	next, err := step(stateOf(o.Status), target)
	if err != nil {
		return err
	}
	o.SetStatus(next.Status(), now)
	return nil
}

func (o *Order) Clone() *Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
