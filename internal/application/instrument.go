package application

import (
	"context"
	"time"

	domoutbox "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/outbox"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	SpanPrefix     = "UC."
	PublishPeer    = "outbox"
	PublishTimeout = 300 * time.Millisecond
)

// Instruments holds the RED metrics and base logger shared by the operations
// of one service.
type Instruments struct {
	Tracer observability.Tracer
	Log    observability.Logger

	ReqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	DurHistogram observability.Histogram // usecase_duration_seconds{use_case}
	ExtCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	ExtHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}

	metrics observability.Metrics
}

// NewInstruments resolves instruments from tel; a nil tel yields no-ops.
func NewInstruments(tel observability.Observability, service string) Instruments {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return Instruments{
		Tracer:       tel.Tracer(),
		Log:          tel.Logger().With(observability.F("service", service)),
		ReqCounter:   m.Counter(observability.MUsecaseRequests),
		DurHistogram: m.Histogram(observability.MUsecaseDuration),
		ExtCounter:   m.Counter(observability.MExternalRequests),
		ExtHistogram: m.Histogram(observability.MExternalRequestDuration),
		metrics:      m,
	}
}

func (in Instruments) Counter(key observability.MetricKey) observability.Counter {
	return in.metrics.Counter(key)
}

func (in Instruments) Gauge(key observability.MetricKey) observability.Gauge {
	return in.metrics.Gauge(key)
}

// Run tracks one execution of a use case until End is called.
type Run struct {
	in      Instruments
	useCase string
	span    trace.Span
	start   time.Time
	logger  observability.Logger
	outcome string
	status  string
	fields  []observability.Field
}

// Start opens a span named SpanPrefix+spanName and binds a use case logger to ctx.
func (in Instruments) Start(ctx context.Context, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Run) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := in.Tracer.Start(ctx, SpanPrefix+spanName, attrs...)
	logger := logctx.FromOr(ctx, in.Log).With(observability.F("use_case", useCase))
	return logctx.With(ctx, logger), &Run{
		in:      in,
		useCase: useCase,
		span:    span,
		start:   time.Now(),
		logger:  logger,
		outcome: "success",
		status:  "OK",
	}
}

func (r *Run) Logger() observability.Logger { return r.logger }

func (r *Run) Span() trace.Span { return r.span }

// Fail marks the run as failed with a machine readable status.
func (r *Run) Fail(status string) {
	r.outcome, r.status = "error", status
}

// Status overrides the status text while keeping the outcome.
func (r *Run) Status(status string) {
	r.status = status
}

// Field adds a field to the final use_case_done line.
func (r *Run) Field(key string, value any) {
	r.fields = append(r.fields, observability.F(key, value))
}

// End records metrics, closes the span and logs use_case_done.
func (r *Run) End(ctx context.Context, err error) {
	lat := time.Since(r.start).Seconds()
	if err != nil && r.outcome == "success" {
		r.Fail("ERROR")
	}

	if r.span != nil {
		if err != nil {
			r.span.RecordError(err)
			r.span.SetStatus(codes.Error, r.status)
		} else {
			r.span.SetStatus(codes.Ok, r.status)
		}
		r.span.End()
	}

	r.in.ReqCounter.Add(1,
		observability.L("use_case", r.useCase),
		observability.L("outcome", r.outcome),
	)
	r.in.DurHistogram.Observe(lat,
		observability.L("use_case", r.useCase),
	)

	fields := append([]observability.Field{
		observability.F("outcome", r.outcome),
		observability.F("status", r.status),
		observability.F("latency_seconds", lat),
	}, r.fields...)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	r.logger.Info("use_case_done", fields...)
}

// Publish hands an event to the outbox with a short timeout and records it as
// an external call.
func (in Instruments) Publish(ctx context.Context, publisher domoutbox.Publisher, e domoutbox.Event) error {
	if publisher == nil || e == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, PublishTimeout)
	start := time.Now()
	err := publisher.Publish(pubCtx, e)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	in.ExtCounter.Add(1,
		observability.L("peer", PublishPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	in.ExtHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", PublishPeer),
		observability.L("endpoint", e.EventName()),
	)
	return err
}
