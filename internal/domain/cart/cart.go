// Package cart holds the terminal's in-progress selection.
package cart

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"
)

// Product is the value copied into a line when an item is added.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	Image    string
}

// Line is one distinct product in the cart. Its identity is the source item id.
type Line struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category"`
	Image    string          `json:"image,omitempty"`
}

func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart keeps its subtotal and item count in step with the lines.
type Cart struct {
	lines     []Line
	subtotal  decimal.Decimal
	itemCount int
}

// Repository serialises access to the terminal's single cart.
type Repository interface {
	Snapshot(ctx context.Context) (*Cart, error)
	Update(ctx context.Context, fn func(c *Cart) error) error
}

func New() *Cart { return &Cart{} }

func (c *Cart) Lines() []Line             { return slices.Clone(c.lines) }
func (c *Cart) Subtotal() decimal.Decimal { return c.subtotal }
func (c *Cart) ItemCount() int            { return c.itemCount }
func (c *Cart) IsEmpty() bool             { return len(c.lines) == 0 }

// Add increments the line for p or appends a new line with quantity 1.
func (c *Cart) Add(p Product) {
	if idx := c.index(p.ID); idx >= 0 {
		c.lines[idx].Quantity++
	} else {
		c.lines = append(c.lines, Line{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Quantity: 1,
			Category: p.Category,
			Image:    p.Image,
		})
	}
	c.recompute()
}

func (c *Cart) Remove(id string) bool {
	idx := c.index(id)
	if idx < 0 {
		return false
	}
	c.lines = slices.Delete(c.lines, idx, idx+1)
	c.recompute()
	return true
}

// SetQuantity sets a line's quantity; zero or less removes the line.
func (c *Cart) SetQuantity(id string, qty int) bool {
	if qty <= 0 {
		return c.Remove(id)
	}
	idx := c.index(id)
	if idx < 0 {
		return false
	}
	c.lines[idx].Quantity = qty
	c.recompute()
	return true
}

func (c *Cart) Clear() {
	c.lines = nil
	c.subtotal = decimal.Zero
	c.itemCount = 0
}

// Holds reports whether the cart contains exactly lines, in order.
func (c *Cart) Holds(lines []Line) bool {
	return slices.EqualFunc(c.lines, lines, func(a, b Line) bool {
		return a.ID == b.ID && a.Quantity == b.Quantity && a.Price.Equal(b.Price)
	})
}

func (c *Cart) Clone() *Cart {
	return &Cart{lines: slices.Clone(c.lines), subtotal: c.subtotal, itemCount: c.itemCount}
}

func (c *Cart) index(id string) int {
	return slices.IndexFunc(c.lines, func(l Line) bool { return l.ID == id })
}

func (c *Cart) recompute() {
	c.subtotal, c.itemCount = Totals(c.lines)
}

// Totals folds lines into their subtotal and unit count.
func Totals(lines []Line) (decimal.Decimal, int) {
	subtotal := decimal.Zero
	count := 0
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
		count += l.Quantity
	}
	return subtotal, count
}
