package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
)

// OrderRepository holds the order history. Orders are never removed.
type OrderRepository struct {
	mu   sync.RWMutex
	book *domain.Book
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		book: domain.NewBook(),
	}
}

func (r *OrderRepository) Snapshot(ctx context.Context) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.book.Clone(), nil
}

func (r *OrderRepository) Update(ctx context.Context, fn func(*domain.Book) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	work := r.book.Clone()
	if err := fn(work); err != nil {
		return err
	}
	r.book = work
	return nil
}
