package zaplogger

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerForwardsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := New(zap.New(core), observability.F("component", "cart"))

	log.With(observability.F("item_id", "1")).Warn("cart_line_removed",
		observability.F("quantity", 2),
		observability.F("error", errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "cart_line_removed", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "cart", ctx["component"])
	assert.Equal(t, "1", ctx["item_id"])
	assert.EqualValues(t, 2, ctx["quantity"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestNewWithNilBase(t *testing.T) {
	log := New(nil)
	assert.NotPanics(t, func() { log.Info("noop") })
}
