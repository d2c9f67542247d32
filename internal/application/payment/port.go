package payment

import (
	"context"

	domcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
)

// IDGenerator issues the external reference of each invoice attempt.
type IDGenerator interface {
	NewID() string
}

// OrderRecorder records the order for a confirmed payment.
type OrderRecorder interface {
	CreateOrder(ctx context.Context, lines []domcart.Line, d domorder.Details) (string, error)
}

// CartStore is the live cart consulted when no hand-off snapshot survived the redirect.
type CartStore interface {
	Snapshot(ctx context.Context) (*domcart.Cart, error)
	Clear(ctx context.Context) error
}
