package order

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Policy selects how status updates treat the lifecycle rules.
type Policy int

const (
	// Permissive overwrites the status with any known value.
	Permissive Policy = iota
	// Strict only accepts moves allowed by the lifecycle.
	Strict
)

func ParsePolicy(raw string) (Policy, error) {
	switch raw {
	case "", "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	}
	return Permissive, fmt.Errorf("order: unknown transition policy %q", raw)
}

// DailyStats summarises the orders created on the current local calendar day.
type DailyStats struct {
	TotalSales        decimal.Decimal
	TotalOrders       int
	CompletedOrders   int
	AverageOrderValue decimal.Decimal
}

// Book is the order history, newest first, with its derived daily stats.
type Book struct {
	orders []*Order
	stats  DailyStats
}

// Repository serialises access to the order history.
type Repository interface {
	Snapshot(ctx context.Context) (*Book, error)
	Update(ctx context.Context, fn func(b *Book) error) error
}

func NewBook() *Book {
	return &Book{stats: DailyStats{TotalSales: decimal.Zero, AverageOrderValue: decimal.Zero}}
}

func (b *Book) Len() int { return len(b.orders) }

func (b *Book) Stats() DailyStats { return b.stats }

// Orders returns copies, newest first.
func (b *Book) Orders() []*Order {
	out := make([]*Order, len(b.orders))
	for i, o := range b.orders {
		out[i] = o.Clone()
	}
	return out
}

func (b *Book) ByID(id string) (*Order, bool) {
	idx := b.index(id)
	if idx < 0 {
		return nil, false
	}
	return b.orders[idx].Clone(), true
}

func (b *Book) ByStatus(s Status) []*Order {
	var out []*Order
	for _, o := range b.orders {
		if o.Status == s {
			out = append(out, o.Clone())
		}
	}
	return out
}

// CreatedOn lists orders created on the same local calendar day as now.
func (b *Book) CreatedOn(now time.Time) []*Order {
	var out []*Order
	for _, o := range b.orders {
		if sameDay(o.CreatedAt, now) {
			out = append(out, o.Clone())
		}
	}
	return out
}

// Prepend records a new order at the head of the history.
func (b *Book) Prepend(o *Order, now time.Time) {
	b.orders = slices.Insert(b.orders, 0, o.Clone())
	b.Recompute(now)
}

// Append records an order at the tail. Seeding uses it to keep a newest-first file order.
func (b *Book) Append(o *Order, now time.Time) {
	b.orders = append(b.orders, o.Clone())
	b.Recompute(now)
}

// SetStatus applies a status change under the given policy and returns the
// previous status. Unknown ids report ErrNotFound.
func (b *Book) SetStatus(id string, s Status, policy Policy, now time.Time) (Status, error) {
	idx := b.index(id)
	if idx < 0 {
		return "", ErrNotFound
	}
	o := b.orders[idx]
	prev := o.Status
	if policy == Strict {
		if err := o.Transition(s, now); err != nil {
			return prev, err
		}
	} else {
		o.SetStatus(s, now)
	}
	b.Recompute(now)
	return prev, nil
}

// Cancel cancels an order that has not completed and returns the previous
// status. Completed orders report ErrInvalidTransition under either policy.
func (b *Book) Cancel(id string, policy Policy, now time.Time) (Status, error) {
	idx := b.index(id)
	if idx < 0 {
		return "", ErrNotFound
	}
	if prev := b.orders[idx].Status; prev == StatusCompleted {
		return prev, ErrInvalidTransition
	}
	return b.SetStatus(id, StatusCancelled, policy, now)
}

// Recompute rebuilds the daily stats from scratch.
func (b *Book) Recompute(now time.Time) {
	b.stats = ComputeDailyStats(b.orders, now)
}

func (b *Book) Clone() *Book {
	return &Book{orders: b.Orders(), stats: b.stats}
}

func (b *Book) index(id string) int {
	return slices.IndexFunc(b.orders, func(o *Order) bool { return o.ID == id })
}

// ComputeDailyStats is a pure fold over the orders created on now's local day.
func ComputeDailyStats(orders []*Order, now time.Time) DailyStats {
	stats := DailyStats{TotalSales: decimal.Zero, AverageOrderValue: decimal.Zero}
	for _, o := range orders {
		if !sameDay(o.CreatedAt, now) {
			continue
		}
		stats.TotalOrders++
		if o.Status == StatusCompleted {
			stats.CompletedOrders++
			stats.TotalSales = stats.TotalSales.Add(o.Total)
		}
	}
	stats.TotalSales = stats.TotalSales.Round(2)
	if stats.CompletedOrders > 0 {
		stats.AverageOrderValue = stats.TotalSales.
			Div(decimal.NewFromInt(int64(stats.CompletedOrders))).
			Round(2)
	}
	return stats
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(time.Local).Date()
	by, bm, bd := b.In(time.Local).Date()
	return ay == by && am == bm && ad == bd
}

// NewNumber formats a human readable order number: ORD, the local date and a
// three digit random suffix in 001..999. Uniqueness is best effort.
func NewNumber(now time.Time, intn func(n int) int) string {
	return fmt.Sprintf("ORD%s%03d", now.In(time.Local).Format("20060102"), intn(999)+1)
}
