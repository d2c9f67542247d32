package order

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is a domain event emitted when a new order is recorded.
// Inventory consumes it to deduct stock.
type OrderCreatedEvent struct {
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	Items         []Item          `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Items:         slices.Clone(o.Items),
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		OccurredAt:    time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted after a status update was applied.
type OrderStatusChangedEvent struct {
	OrderID    string    `json:"order_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func NewOrderStatusChangedEvent(id string, from, to Status) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{OrderID: id, From: from, To: to, OccurredAt: time.Now().UTC()}
}
