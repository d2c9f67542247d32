package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/inventory"
)

// InventoryRepository holds the catalog in process memory.
type InventoryRepository struct {
	mu      sync.RWMutex
	catalog *domain.Catalog
}

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{
		catalog: domain.NewCatalog(),
	}
}

func (r *InventoryRepository) Snapshot(ctx context.Context) (*domain.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.catalog.Clone(), nil
}

// Update applies fn to a working copy and swaps it in only when fn succeeds.
func (r *InventoryRepository) Update(ctx context.Context, fn func(*domain.Catalog) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	work := r.catalog.Clone()
	if err := fn(work); err != nil {
		return err
	}
	r.catalog = work
	return nil
}
