package observability

import (
	"testing"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToNop(t *testing.T) {
	p := New(nil, nil, Instruments{})
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Logger())

	assert.NotPanics(t, func() {
		p.Metrics().Counter(observability.MOrdersCreated).Add(1)
		p.Metrics().Histogram(observability.MUsecaseDuration).Observe(0.1)
		p.Metrics().Gauge(observability.MCartItems).Set(3)
	})
}

func TestNewResolvesRegisteredInstruments(t *testing.T) {
	counters, histograms, gauges := prometrics.Standard(prometrics.New(prometheus.NewRegistry(), "", ""))
	p := New(nil, nil, Instruments{Counters: counters, Histograms: histograms, Gauges: gauges})

	assert.Same(t, counters[observability.MOrdersCreated], p.Metrics().Counter(observability.MOrdersCreated))
	assert.Equal(t, observability.NopCounter(), p.Metrics().Counter("unknown_total"))
}
