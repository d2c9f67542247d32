package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	domcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	domain "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/outbox"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
	spanPrefix         = "UC."
	publishPeer        = "outbox"
	publishEndpoint    = "order.created"
	publishTimeout     = 300 * time.Millisecond
)

var (
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
)

// CreateOrderUseCase records a new order from cart lines with observability hooks.
type CreateOrderUseCase struct {
	repo        domain.Repository
	idGenerator IDGenerator
	numbers     NumberGenerator
	publisher   domoutbox.Publisher
	tel         observability.Observability
	now         func() time.Time

	// Base logger with fixed fields prebound.
	log observability.Logger
	// RED metrics, supplied via DI.
	reqCounter     observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram   observability.Histogram // usecase_duration_seconds{use_case}
	createdCounter observability.Counter   // orders_created_total{payment_method}

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

// NewCreateOrderUseCase wires the dependencies required to execute the use case.
func NewCreateOrderUseCase(
	repo domain.Repository,
	idGen IDGenerator,
	numbers NumberGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *CreateOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLog := tel.Logger().With(
		observability.F("service", orderService),
	)
	metricsProvider := tel.Metrics()

	return &CreateOrderUseCase{
		repo:           repo,
		idGenerator:    idGen,
		numbers:        numbers,
		publisher:      publisher,
		tel:            tel,
		now:            time.Now,
		log:            baseLog,
		reqCounter:     metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram:   metricsProvider.Histogram(observability.MUsecaseDuration),
		createdCounter: metricsProvider.Counter(observability.MOrdersCreated),
		extCounter:     metricsProvider.Counter(observability.MExternalRequests),
		extHistogram:   metricsProvider.Histogram(observability.MExternalRequestDuration),
	}
}

type CreateOrderInput struct {
	Lines   []domcart.Line
	Details domain.Details
}

type CreateOrderResult struct {
	OrderID     string
	OrderNumber string
	Total       string
}

// Execute snapshots the lines into a pending order and records it newest first.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseOrderCreate))

	var entity *domain.Order
	var publishErr error

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+"CreateOrder",
		attribute.String("use_case", useCaseOrderCreate),
		attribute.String("order.payment_method", string(cmd.Details.PaymentMethod)),
		attribute.Int("order.lines", len(cmd.Lines)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseOrderCreate),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseOrderCreate),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if entity != nil {
			fields = append(fields,
				observability.F("order_id", entity.ID),
				observability.F("order_number", entity.OrderNumber),
				observability.F("total", entity.Total.StringFixed(2)),
				observability.F("payment_method", string(entity.PaymentMethod)),
			)
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}

		logger.Info("use_case_done", fields...)
	}()

	if len(cmd.Lines) == 0 {
		outcome, statusText = "error", "LINES_REQUIRED"
		return nil, domain.ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	now := uc.now()
	entity, err = domain.New(uc.idGenerator.NewID(), uc.numbers.NewNumber(now), itemsFromLines(cmd.Lines), cmd.Details, now)
	if err != nil {
		outcome, statusText = "error", "DOMAIN_CONSTRUCTION_FAILED"
		return nil, fmt.Errorf("order: construct: %w", err)
	}
	if err := uc.repo.Update(ctx, func(b *domain.Book) error {
		b.Prepend(entity, now)
		return nil
	}); err != nil {
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		entity = nil
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	uc.createdCounter.Add(1, observability.L("payment_method", string(entity.PaymentMethod)))

	if uc.publisher != nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		pubStart := time.Now()
		pubOutcome := "success"

		publishErr = uc.publisher.Publish(pubCtx, domain.NewOrderCreatedEvent(entity))
		if publishErr != nil {
			pubOutcome = "error"
			statusText = "EVENT_PUBLISH_FAILED"
		} else if pubCtx.Err() != nil {
			pubOutcome = "canceled"
			publishErr = pubCtx.Err()
			statusText = "EVENT_PUBLISH_TIMEOUT"
		}
		cancel()

		uc.extCounter.Add(1,
			observability.L("peer", publishPeer),
			observability.L("endpoint", publishEndpoint),
			observability.L("outcome", pubOutcome),
		)
		uc.extHistogram.Observe(time.Since(pubStart).Seconds(),
			observability.L("peer", publishPeer),
			observability.L("endpoint", publishEndpoint),
		)
	}

	span.SetAttributes(attribute.String("order.number", entity.OrderNumber))
	span.AddEvent("order.created",
		trace.WithAttributes(
			attribute.String("order.id", entity.ID),
		),
	)

	return &CreateOrderResult{
		OrderID:     entity.ID,
		OrderNumber: entity.OrderNumber,
		Total:       entity.Total.StringFixed(2),
	}, nil
}

func itemsFromLines(lines []domcart.Line) []domain.Item {
	items := make([]domain.Item, len(lines))
	for i, l := range lines {
		items[i] = domain.Item{
			ID:       l.ID,
			Name:     l.Name,
			Price:    l.Price,
			Quantity: l.Quantity,
			Category: l.Category,
		}
	}
	return items
}
