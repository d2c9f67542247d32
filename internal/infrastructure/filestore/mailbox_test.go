package filestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pending(name string) payment.PendingCheckout {
	return payment.PendingCheckout{
		Items:        []cart.Line{{ID: "2", Name: "Latte", Price: decimal.RequireFromString("5.50"), Quantity: 2}},
		CustomerName: name,
		Total:        decimal.RequireFromString("11.00"),
		Tax:          decimal.RequireFromString("0.88"),
		GrandTotal:   decimal.RequireFromString("11.88"),
		Timestamp:    time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestSaveTakeRoundTrip(t *testing.T) {
	ctx := context.Background()
	mb, err := NewMailbox(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, mb.Save(ctx, pending("Ana")))

	got, err := mb.Take(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ana", got.CustomerName)
	assert.True(t, got.GrandTotal.Equal(decimal.RequireFromString("11.88")))
	require.Len(t, got.Items, 1)

	_, statErr := os.Stat(mb.Path())
	assert.True(t, os.IsNotExist(statErr), "take removes the document")

	again, err := mb.Take(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewMailbox(dir)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, pending("Ana")))

	second, err := NewMailbox(dir)
	require.NoError(t, err)
	got, err := second.Take(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ana", got.CustomerName)
}

func TestCorruptDocumentIsConsumed(t *testing.T) {
	ctx := context.Background()
	mb, err := NewMailbox(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(mb.Path(), []byte("{not json"), 0o644))

	got, err := mb.Take(ctx)
	assert.Error(t, err)
	assert.Nil(t, got)

	got, err = mb.Take(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mb, err := NewMailbox(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, mb.Clear(ctx))
	require.NoError(t, mb.Save(ctx, pending("Ana")))
	require.NoError(t, mb.Clear(ctx))

	got, err := mb.Take(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
