package terminal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierExpiresAndDismisses(t *testing.T) {
	clock := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	n := NewNotifier(5 * time.Second)
	n.now = func() time.Time { return clock }

	first := n.Show(KindSuccess, "Payment Successful!", "Your order has been processed.")
	got, ok := n.Active()
	require.True(t, ok)
	assert.Equal(t, first.ID, got.ID)

	clock = clock.Add(5 * time.Second)
	_, ok = n.Active()
	assert.False(t, ok, "auto dismissed after the ttl")

	second := n.Show(KindError, "Payment Failed", "")
	n.Dismiss(first.ID)
	_, ok = n.Active()
	assert.True(t, ok, "stale ids do not dismiss newer notifications")

	n.Dismiss(second.ID)
	_, ok = n.Active()
	assert.False(t, ok)
}
