package inventory

import (
	"context"
	"fmt"
	"time"

	dominv "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/outbox"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	useCaseStockDeduction = "inventory.deduct_stock"
	deductionSpanName     = "OnOrderCreated"
	spanPrefix            = "UC."
	publishPeer           = "outbox"
	publishTimeout        = 300 * time.Millisecond
)

// DeductionResult reports what an order took out of the catalog.
type DeductionResult struct {
	Deducted map[string]int
	// Missing lists ordered item ids that are no longer in the catalog.
	Missing  []string
	NewlyLow []dominv.Item
}

// DeductStockUseCase lowers stock for every line of a recorded order. Stock
// is clamped at zero: the sale already happened, so a shortfall is not an error.
type DeductStockUseCase struct {
	repo         dominv.Repository
	publisher    domoutbox.Publisher
	now          func() time.Time
	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
	gauge        observability.Gauge
}

func NewDeductStockUseCase(repo dominv.Repository, publisher domoutbox.Publisher, tel observability.Observability) *DeductStockUseCase {
	baseLog := observability.NopLogger().With(
		observability.F("service", inventoryService),
	)
	tracer := observability.NopTracer()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger().With(
			observability.F("service", inventoryService),
		)
		tracer = tel.Tracer()
		metricsProvider = tel.Metrics()
	}

	return &DeductStockUseCase{
		repo:         repo,
		publisher:    publisher,
		now:          time.Now,
		log:          baseLog,
		tracer:       tracer,
		reqCounter:   metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram: metricsProvider.Histogram(observability.MUsecaseDuration),
		extCounter:   metricsProvider.Counter(observability.MExternalRequests),
		extHistogram: metricsProvider.Histogram(observability.MExternalRequestDuration),
		gauge:        metricsProvider.Gauge(observability.MLowStockItems),
	}
}

// Execute reacts to OrderCreated events and emits stock events.
func (uc *DeductStockUseCase) Execute(ctx context.Context, e domorder.OrderCreatedEvent) (_ *DeductionResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseStockDeduction),
		observability.F("order_id", e.OrderID),
		observability.F("lines", len(e.Items)),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+deductionSpanName,
		attribute.String("use_case", useCaseStockDeduction),
		attribute.String("order.id", e.OrderID),
		attribute.String("order.number", e.OrderNumber),
		attribute.Int("order.lines", len(e.Items)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var publishErrs []string
	result := &DeductionResult{Deducted: make(map[string]int, len(e.Items))}

	defer func() {
		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		latency := time.Since(start).Seconds()
		if uc.reqCounter != nil {
			uc.reqCounter.Add(1,
				observability.L("use_case", useCaseStockDeduction),
				observability.L("outcome", outcome),
			)
		}
		if uc.durHistogram != nil {
			uc.durHistogram.Observe(latency,
				observability.L("use_case", useCaseStockDeduction),
			)
		}

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
			observability.F("deducted", len(result.Deducted)),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if len(result.Missing) > 0 {
			fields = append(fields, observability.F("missing_items", result.Missing))
		}
		if len(publishErrs) > 0 {
			fields = append(fields, observability.F("event_publish_errors", publishErrs))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}

		logger.Info("use_case_done", fields...)
	}()

	var lowAfter []dominv.Item
	err = uc.repo.Update(ctx, func(c *dominv.Catalog) error {
		before := c.LowStock()
		now := uc.now()
		for _, line := range e.Items {
			if _, ok := c.Deduct(line.ID, line.Quantity, now); !ok {
				result.Missing = append(result.Missing, line.ID)
				continue
			}
			result.Deducted[line.ID] += line.Quantity
		}
		lowAfter = c.LowStock()
		result.NewlyLow = dominv.NewlyLow(before, lowAfter)
		return nil
	})
	if err != nil {
		outcome, statusText = "error", "REPO_UPDATE_FAILED"
		return result, fmt.Errorf("inventory: deduct: %w", err)
	}
	uc.gauge.Set(float64(len(lowAfter)))

	if span != nil {
		span.AddEvent("inventory.stock_deducted",
			trace.WithAttributes(
				attribute.String("order.id", e.OrderID),
				attribute.Int("inventory.missing", len(result.Missing)),
			),
		)
	}

	deducted := dominv.StockDeductedEvent{
		OrderID:    e.OrderID,
		Deducted:   result.Deducted,
		Missing:    result.Missing,
		OccurredAt: uc.now().UTC(),
	}
	if perr := uc.publish(ctx, deducted); perr != nil {
		publishErrs = append(publishErrs, perr.Error())
	}
	for _, it := range result.NewlyLow {
		if perr := uc.publish(ctx, dominv.NewLowStockEvent(it)); perr != nil {
			publishErrs = append(publishErrs, perr.Error())
		}
	}
	if len(publishErrs) > 0 {
		statusText = "EVENT_PUBLISH_FAILED"
	}

	return result, nil
}

func (uc *DeductStockUseCase) publish(ctx context.Context, event domoutbox.Event) error {
	if uc.publisher == nil || event == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := uc.publisher.Publish(pubCtx, event)
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	if uc.extCounter != nil {
		uc.extCounter.Add(1,
			observability.L("peer", publishPeer),
			observability.L("endpoint", event.EventName()),
			observability.L("outcome", outcome),
		)
	}
	if uc.extHistogram != nil {
		uc.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", publishPeer),
			observability.L("endpoint", event.EventName()),
		)
	}

	return err
}
