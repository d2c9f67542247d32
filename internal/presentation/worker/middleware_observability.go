package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/outbox"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a request-scoped logger for background/worker executions.
// Dynamic fields only: trace_id/span_id (if valid), event_id (generated if empty),
// plus caller-provided low-cardinality attributes such as "event" or "terminal".
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	spanCtx trace.SpanContext,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, len(attrs)+3)

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if spanCtx.TraceID().IsValid() {
		fields = append(fields, observability.F("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.SpanID().IsValid() {
		fields = append(fields, observability.F("span_id", spanCtx.SpanID().String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// Subscriber wraps a bus so every handler it registers starts with an event
// scoped logger on its context.
type Subscriber struct {
	next domoutbox.Subscriber
	base observability.Logger
}

func NewSubscriber(next domoutbox.Subscriber, base observability.Logger) *Subscriber {
	return &Subscriber{next: next, base: base}
}

func (s *Subscriber) Subscribe(eventName string, h domoutbox.Handler) {
	s.next.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		ctx = WithEventContext(ctx, s.base, trace.SpanContextFromContext(ctx), map[string]string{
			"event": e.EventName(),
		})
		return h(ctx, e)
	})
}
