package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
)

// CartRepository holds the terminal's single cart.
type CartRepository struct {
	mu   sync.RWMutex
	cart *domain.Cart
}

func NewCartRepository() *CartRepository {
	return &CartRepository{cart: domain.New()}
}

func (r *CartRepository) Snapshot(ctx context.Context) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.cart.Clone(), nil
}

func (r *CartRepository) Update(ctx context.Context, fn func(*domain.Cart) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	work := r.cart.Clone()
	if err := fn(work); err != nil {
		return err
	}
	r.cart = work
	return nil
}
