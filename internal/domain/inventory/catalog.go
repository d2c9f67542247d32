package inventory

import (
	"context"
	"slices"
	"time"
)

// Catalog is the inventory aggregate: the item list, the known categories and
// the derived low stock view. Every mutating method recomputes the view before
// returning, so a reader never sees it out of date.
type Catalog struct {
	items      []Item
	categories []string
	lowStock   []Item
}

func NewCatalog() *Catalog {
	return &Catalog{categories: slices.Clone(DefaultCategories)}
}

// Repository serialises access to the single catalog.
type Repository interface {
	// Snapshot returns a deep copy safe to read without locks.
	Snapshot(ctx context.Context) (*Catalog, error)
	// Update runs fn under the write lock. Changes are discarded when fn fails.
	Update(ctx context.Context, fn func(c *Catalog) error) error
}

func (c *Catalog) Len() int { return len(c.items) }

func (c *Catalog) Items() []Item { return slices.Clone(c.items) }

func (c *Catalog) Categories() []string { return slices.Clone(c.categories) }

func (c *Catalog) LowStock() []Item { return slices.Clone(c.lowStock) }

func (c *Catalog) Item(id string) (Item, bool) {
	idx := c.index(id)
	if idx < 0 {
		return Item{}, false
	}
	return c.items[idx], true
}

// InCategory lists active items of a category; CategoryAll or "" lists every active item.
func (c *Catalog) InCategory(category string) []Item {
	out := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		if !it.IsActive {
			continue
		}
		if category == "" || category == CategoryAll || it.Category == category {
			out = append(out, it)
		}
	}
	return out
}

// Offerable lists items of a category that can be added to a cart right now.
func (c *Catalog) Offerable(category string) []Item {
	out := make([]Item, 0, len(c.items))
	for _, it := range c.InCategory(category) {
		if it.Offerable() {
			out = append(out, it)
		}
	}
	return out
}

func (c *Catalog) Add(item Item) {
	c.items = append(c.items, item)
	c.registerCategory(item.Category)
	c.recompute()
}

// Update merges the patch into an existing item. It reports false for unknown ids.
func (c *Catalog) Update(id string, p Patch, now time.Time) bool {
	idx := c.index(id)
	if idx < 0 {
		return false
	}
	c.items[idx].apply(p, now)
	if p.Category != nil {
		c.registerCategory(*p.Category)
	}
	c.recompute()
	return true
}

func (c *Catalog) Delete(id string) bool {
	idx := c.index(id)
	if idx < 0 {
		return false
	}
	c.items = slices.Delete(c.items, idx, idx+1)
	c.recompute()
	return true
}

// SetStock overwrites the stock level. Negative levels are rejected.
func (c *Catalog) SetStock(id string, stock int, now time.Time) bool {
	if stock < 0 {
		return false
	}
	idx := c.index(id)
	if idx < 0 {
		return false
	}
	c.items[idx].Stock = stock
	c.items[idx].UpdatedAt = now
	c.recompute()
	return true
}

// Deduct lowers stock by qty, never below zero, and returns the updated item.
func (c *Catalog) Deduct(id string, qty int, now time.Time) (Item, bool) {
	idx := c.index(id)
	if idx < 0 || qty <= 0 {
		return Item{}, false
	}
	it := &c.items[idx]
	it.Stock = max(it.Stock-qty, 0)
	it.UpdatedAt = now
	c.recompute()
	return *it, true
}

func (c *Catalog) Clone() *Catalog {
	return &Catalog{
		items:      slices.Clone(c.items),
		categories: slices.Clone(c.categories),
		lowStock:   slices.Clone(c.lowStock),
	}
}

func (c *Catalog) index(id string) int {
	return slices.IndexFunc(c.items, func(it Item) bool { return it.ID == id })
}

func (c *Catalog) registerCategory(category string) {
	if category == "" || slices.Contains(c.categories, category) {
		return
	}
	c.categories = append(c.categories, category)
}

func (c *Catalog) recompute() {
	low := make([]Item, 0)
	for _, it := range c.items {
		if it.IsLowStock() {
			low = append(low, it)
		}
	}
	c.lowStock = low
}
