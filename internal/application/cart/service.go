package cart

import (
	"context"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/application"
	domcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const cartService = "cart-service"

// Service is the terminal's cart store. Unknown line ids are ignored.
type Service struct {
	repo  domcart.Repository
	in    application.Instruments
	gauge observability.Gauge
}

func NewService(repo domcart.Repository, tel observability.Observability) *Service {
	in := application.NewInstruments(tel, cartService)
	return &Service{
		repo:  repo,
		in:    in,
		gauge: in.Gauge(observability.MCartItems),
	}
}

// AddItem bumps the line for p by one, or appends it with quantity one.
func (s *Service) AddItem(ctx context.Context, p domcart.Product) (err error) {
	ctx, run := s.in.Start(ctx, "cart.add_item", "AddToCart", attribute.String("item.id", p.ID))
	defer func() { run.End(ctx, err) }()

	return s.mutate(ctx, func(c *domcart.Cart) { c.Add(p) })
}

func (s *Service) RemoveItem(ctx context.Context, id string) error {
	return s.mutate(ctx, func(c *domcart.Cart) { c.Remove(id) })
}

// UpdateQuantity sets a line's quantity; zero or less removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, id string, qty int) error {
	return s.mutate(ctx, func(c *domcart.Cart) { c.SetQuantity(id, qty) })
}

func (s *Service) Clear(ctx context.Context) error {
	return s.mutate(ctx, func(c *domcart.Cart) { c.Clear() })
}

// ClearIfHolds empties the cart only while it still holds exactly lines, and
// reports whether it did.
func (s *Service) ClearIfHolds(ctx context.Context, lines []domcart.Line) (bool, error) {
	var cleared bool
	err := s.mutate(ctx, func(c *domcart.Cart) {
		if cleared = c.Holds(lines); cleared {
			c.Clear()
		}
	})
	return cleared, err
}

// Snapshot returns a copy of the cart, lines and totals together.
func (s *Service) Snapshot(ctx context.Context) (*domcart.Cart, error) {
	return s.repo.Snapshot(ctx)
}

func (s *Service) mutate(ctx context.Context, fn func(c *domcart.Cart)) error {
	var count int
	err := s.repo.Update(ctx, func(c *domcart.Cart) error {
		fn(c)
		count = c.ItemCount()
		return nil
	})
	if err != nil {
		return err
	}
	s.gauge.Set(float64(count))
	return nil
}
