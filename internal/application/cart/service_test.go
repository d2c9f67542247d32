package cart

import (
	"context"
	"testing"

	domcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	latte = domcart.Product{ID: "3", Name: "Latte", Price: decimal.RequireFromString("4.50"), Category: "Coffee"}
	scone = domcart.Product{ID: "9", Name: "Scone", Price: decimal.RequireFromString("2.25"), Category: "Pastries"}
)

func TestCartTotalsFollowMutations(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewCartRepository(), nil)

	require.NoError(t, svc.AddItem(ctx, latte))
	require.NoError(t, svc.AddItem(ctx, latte))
	require.NoError(t, svc.AddItem(ctx, scone))

	c, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, c.Lines(), 2)
	assert.Equal(t, 3, c.ItemCount())
	assert.Equal(t, "11.25", c.Subtotal().StringFixed(2))

	require.NoError(t, svc.UpdateQuantity(ctx, "3", 5))
	c, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, c.ItemCount())
	assert.Equal(t, "24.75", c.Subtotal().StringFixed(2))

	require.NoError(t, svc.UpdateQuantity(ctx, "3", 0))
	require.NoError(t, svc.RemoveItem(ctx, "unknown"))
	c, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, c.Lines(), 1)
	assert.Equal(t, "9", c.Lines()[0].ID)

	require.NoError(t, svc.Clear(ctx))
	c, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Subtotal().IsZero())
	assert.Zero(t, c.ItemCount())
}

func TestSnapshotIsDetached(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewCartRepository(), nil)
	require.NoError(t, svc.AddItem(ctx, latte))

	c, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	c.Add(scone)

	again, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, again.Lines(), 1)
}

func TestClearIfHoldsKeepsChangedCart(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewCartRepository(), nil)
	require.NoError(t, svc.AddItem(ctx, latte))
	c, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	paid := c.Lines()

	require.NoError(t, svc.AddItem(ctx, scone))
	cleared, err := svc.ClearIfHolds(ctx, paid)
	require.NoError(t, err)
	assert.False(t, cleared)
	c, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, c.ItemCount())

	require.NoError(t, svc.RemoveItem(ctx, scone.ID))
	cleared, err = svc.ClearIfHolds(ctx, paid)
	require.NoError(t, err)
	assert.True(t, cleared)
	c, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}
