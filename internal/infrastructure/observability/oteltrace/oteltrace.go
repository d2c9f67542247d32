package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "coffeerealm-pos"

type tracer struct{ t trace.Tracer }

// New returns a tracer from the global provider. Without an installed SDK
// provider spans are no-ops but still propagate context.
func New(name string) observability.Tracer {
	if name == "" {
		name = defaultTracerName
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
