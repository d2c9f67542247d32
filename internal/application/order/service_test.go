package order

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	domcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	domain "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/outbox"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("order-%d", s.n)
}

type fixedNumbers struct{}

func (fixedNumbers) NewNumber(now time.Time) string {
	return domain.NewNumber(now, func(int) int { return 41 })
}

type capture struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (c *capture) Publish(_ context.Context, e domoutbox.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func lines() []domcart.Line {
	return []domcart.Line{
		{ID: "1", Name: "Espresso", Price: decimal.RequireFromString("3.50"), Quantity: 2, Category: "Coffee"},
		{ID: "5", Name: "Croissant", Price: decimal.RequireFromString("3.25"), Quantity: 1, Category: "Pastries"},
	}
}

func newService(t *testing.T, policy domain.Policy) (*Service, *capture) {
	t.Helper()
	repo := memory.NewOrderRepository()
	pub := &capture{}
	uc := NewCreateOrderUseCase(repo, &seqIDs{}, fixedNumbers{}, pub, nil)
	return NewService(repo, uc, pub, policy, nil), pub
}

func TestCreateOrderComputesTotalsAndPublishes(t *testing.T) {
	ctx := context.Background()
	svc, pub := newService(t, domain.Permissive)

	id, err := svc.CreateOrder(ctx, lines(), domain.Details{})
	require.NoError(t, err)
	assert.Equal(t, "order-1", id)

	o, err := svc.OrderByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "10.25", o.Subtotal.StringFixed(2))
	assert.Equal(t, "0.82", o.Tax.StringFixed(2))
	assert.Equal(t, "11.07", o.Total.StringFixed(2))
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, domain.PaymentCash, o.PaymentMethod)
	assert.Equal(t, domain.CustomerWalkIn, o.CustomerType)
	assert.Regexp(t, `^ORD\d{8}042$`, o.OrderNumber)

	require.Len(t, pub.events, 1)
	evt, ok := pub.events[0].(domain.OrderCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, id, evt.OrderID)
	assert.Len(t, evt.Items, 2)
}

func TestCreateOrderRejectsEmptyLines(t *testing.T) {
	svc, pub := newService(t, domain.Permissive)

	_, err := svc.CreateOrder(context.Background(), nil, domain.Details{})
	assert.ErrorIs(t, err, domain.ErrEmpty)
	assert.Empty(t, pub.events)
}

func TestOrdersAreNewestFirstAndSnapshotted(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, domain.Permissive)

	src := lines()
	first, err := svc.CreateOrder(ctx, src, domain.Details{CustomerName: "Ana", PaymentMethod: domain.PaymentCard})
	require.NoError(t, err)
	src[0].Price = decimal.RequireFromString("99")
	second, err := svc.CreateOrder(ctx, src[1:], domain.Details{})
	require.NoError(t, err)

	all, err := svc.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second, all[0].ID)
	assert.Equal(t, first, all[1].ID)
	assert.Equal(t, "3.5", all[1].Items[0].Price.String(), "items are copied at creation")
	assert.Equal(t, domain.CustomerRegular, all[1].CustomerType)
}

func TestUpdateStatusPermissive(t *testing.T) {
	ctx := context.Background()
	svc, pub := newService(t, domain.Permissive)
	id, err := svc.CreateOrder(ctx, lines(), domain.Details{})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateOrderStatus(ctx, id, domain.StatusCompleted))
	o, err := svc.OrderByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, o.CompletedAt)

	stats, err := svc.DailyStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalOrders)
	assert.Equal(t, 1, stats.CompletedOrders)
	assert.Equal(t, "11.07", stats.TotalSales.StringFixed(2))
	assert.Equal(t, "11.07", stats.AverageOrderValue.StringFixed(2))

	// Permissive mode lets a completed order move back.
	require.NoError(t, svc.UpdateOrderStatus(ctx, id, domain.StatusPreparing))
	stats, err = svc.DailyStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.CompletedOrders)
	assert.True(t, stats.TotalSales.IsZero())

	require.NoError(t, svc.UpdateOrderStatus(ctx, "missing", domain.StatusReady), "unknown ids are ignored")
	assert.ErrorIs(t, svc.UpdateOrderStatus(ctx, id, domain.Status("lost")), domain.ErrInvalidStatus)

	var changes int
	for _, e := range pub.events {
		if _, ok := e.(domain.OrderStatusChangedEvent); ok {
			changes++
		}
	}
	assert.Equal(t, 2, changes)
}

func TestUpdateStatusStrict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, domain.Strict)
	id, err := svc.CreateOrder(ctx, lines(), domain.Details{})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.UpdateOrderStatus(ctx, id, domain.StatusCompleted), domain.ErrInvalidTransition)
	o, err := svc.OrderByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)

	require.NoError(t, svc.UpdateOrderStatus(ctx, id, domain.StatusPreparing))
	preparing, err := svc.OrdersByStatus(ctx, domain.StatusPreparing)
	require.NoError(t, err)
	assert.Len(t, preparing, 1)
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, domain.Permissive)
	open, err := svc.CreateOrder(ctx, lines(), domain.Details{})
	require.NoError(t, err)
	done, err := svc.CreateOrder(ctx, lines(), domain.Details{})
	require.NoError(t, err)
	require.NoError(t, svc.UpdateOrderStatus(ctx, done, domain.StatusCompleted))

	require.NoError(t, svc.CancelOrder(ctx, open))
	assert.ErrorIs(t, svc.CancelOrder(ctx, done), domain.ErrInvalidTransition)
	require.NoError(t, svc.CancelOrder(ctx, "missing"))
	_, err = svc.OrderByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	o, err := svc.OrderByID(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, o.Status)
}

func TestSeedOnlyIntoEmptyHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, domain.Permissive)
	now := time.Now()
	demo, err := domain.New("seed-1", "ORD1", []domain.Item{{ID: "1", Name: "Espresso", Price: decimal.RequireFromString("3.50"), Quantity: 1}}, domain.Details{}, now)
	require.NoError(t, err)

	seeded, err := svc.Seed(ctx, []*domain.Order{demo})
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = svc.Seed(ctx, []*domain.Order{demo})
	require.NoError(t, err)
	assert.False(t, seeded)

	today, err := svc.TodaysOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, today, 1)
}

// racingRepo runs before once, ahead of the next Update, as if another request
// had committed in between.
type racingRepo struct {
	domain.Repository
	before func()
}

func (r *racingRepo) Update(ctx context.Context, fn func(b *domain.Book) error) error {
	if f := r.before; f != nil {
		r.before = nil
		f()
	}
	return r.Repository.Update(ctx, fn)
}

func TestCancelDoesNotOverwriteConcurrentCompletion(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewOrderRepository()
	repo := &racingRepo{Repository: inner}
	pub := &capture{}
	svc := NewService(repo, NewCreateOrderUseCase(inner, &seqIDs{}, fixedNumbers{}, pub, nil), pub, domain.Permissive, nil)

	id, err := svc.CreateOrder(ctx, lines(), domain.Details{})
	require.NoError(t, err)

	repo.before = func() {
		require.NoError(t, inner.Update(ctx, func(b *domain.Book) error {
			_, err := b.SetStatus(id, domain.StatusCompleted, domain.Permissive, time.Now())
			return err
		}))
	}
	assert.ErrorIs(t, svc.CancelOrder(ctx, id), domain.ErrInvalidTransition)

	o, err := svc.OrderByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, o.Status)
	for _, e := range pub.events {
		_, changed := e.(domain.OrderStatusChangedEvent)
		assert.False(t, changed, "a rejected cancel publishes nothing")
	}
}

func TestStatusChangesKeepItemsAndTotals(t *testing.T) {
	walks := map[domain.Policy][]domain.Status{
		domain.Permissive: {
			domain.StatusCompleted, domain.StatusPending, domain.StatusReady,
			domain.StatusCancelled, domain.StatusPreparing, domain.StatusCompleted,
		},
		domain.Strict: {
			domain.StatusPreparing, domain.StatusReady, domain.StatusCompleted,
		},
	}
	for policy, walk := range walks {
		t.Run(fmt.Sprintf("policy_%d", policy), func(t *testing.T) {
			ctx := context.Background()
			svc, _ := newService(t, policy)
			id, err := svc.CreateOrder(ctx, lines(), domain.Details{CustomerName: "Ana"})
			require.NoError(t, err)
			before, err := svc.OrderByID(ctx, id)
			require.NoError(t, err)

			for _, status := range walk {
				require.NoError(t, svc.UpdateOrderStatus(ctx, id, status))
				after, err := svc.OrderByID(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, status, after.Status)
				assert.Equal(t, before.Items, after.Items)
				assert.True(t, before.Subtotal.Equal(after.Subtotal))
				assert.True(t, before.Tax.Equal(after.Tax))
				assert.True(t, before.Total.Equal(after.Total))
				assert.Equal(t, before.OrderNumber, after.OrderNumber)
				assert.Equal(t, before.CreatedAt, after.CreatedAt)
			}
		})
	}
}

func TestCancelUnderStrictPolicy(t *testing.T) {
	ctx := context.Background()
	svc, pub := newService(t, domain.Strict)
	id, err := svc.CreateOrder(ctx, lines(), domain.Details{})
	require.NoError(t, err)
	require.NoError(t, svc.UpdateOrderStatus(ctx, id, domain.StatusPreparing))

	require.NoError(t, svc.CancelOrder(ctx, id))
	assert.ErrorIs(t, svc.CancelOrder(ctx, id), domain.ErrInvalidTransition, "already cancelled")

	last, ok := pub.events[len(pub.events)-1].(domain.OrderStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCancelled, last.To)
}
