package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	dompay "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	paymentService       = "payment-service"
	useCaseInvoiceCreate = "payment.create_invoice"
	invoiceSpanName      = "CreateInvoice"
	spanPrefix           = "UC."
	descriptionFormat    = "Coffee Realm POS - %d item(s)"
)

// InvoiceConfig shapes the request sent to the provider.
type InvoiceConfig struct {
	// ReturnURL is the absolute terminal address the provider redirects back to.
	ReturnURL string
	// Convert turns the USD grand total into the invoice currency. Nil leaves it unchanged.
	Convert func(usd decimal.Decimal) decimal.Decimal
}

type CreateInvoiceInput struct {
	Checkout dompay.Checkout
	Customer dompay.Customer
}

// CreateInvoiceUseCase asks the gateway for a hosted checkout page.
type CreateInvoiceUseCase struct {
	gateway dompay.Gateway
	refs    IDGenerator
	cfg     InvoiceConfig
	tracer  observability.Tracer
	log     observability.Logger

	reqCounter     observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram   observability.Histogram // usecase_duration_seconds{use_case}
	attemptCounter observability.Counter   // payment_attempts_total{outcome}
}

func NewCreateInvoiceUseCase(gateway dompay.Gateway, refs IDGenerator, cfg InvoiceConfig, tel observability.Observability) *CreateInvoiceUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	if cfg.Convert == nil {
		cfg.Convert = func(usd decimal.Decimal) decimal.Decimal { return usd }
	}
	metricsProvider := tel.Metrics()
	return &CreateInvoiceUseCase{
		gateway:        gateway,
		refs:           refs,
		cfg:            cfg,
		tracer:         tel.Tracer(),
		log:            tel.Logger().With(observability.F("service", paymentService)),
		reqCounter:     metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram:   metricsProvider.Histogram(observability.MUsecaseDuration),
		attemptCounter: metricsProvider.Counter(observability.MPaymentAttempts),
	}
}

// Request builds the provider request for a checkout.
func (uc *CreateInvoiceUseCase) Request(in CreateInvoiceInput) dompay.InvoiceRequest {
	return dompay.InvoiceRequest{
		ExternalID:         uc.refs.NewID(),
		Amount:             uc.cfg.Convert(in.Checkout.Totals.GrandTotal),
		Description:        fmt.Sprintf(descriptionFormat, len(in.Checkout.Lines)),
		Customer:           in.Customer,
		SuccessRedirectURL: ReturnURL(uc.cfg.ReturnURL, dompay.ReturnSuccess),
		FailureRedirectURL: ReturnURL(uc.cfg.ReturnURL, dompay.ReturnFailed),
	}
}

// Execute creates the invoice. Errors come back unchanged for display.
func (uc *CreateInvoiceUseCase) Execute(ctx context.Context, in CreateInvoiceInput) (_ *dompay.Invoice, err error) {
	req := uc.Request(in)
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseInvoiceCreate),
		observability.F("external_id", req.ExternalID),
	)

	ctx, span := uc.tracer.Start(ctx, spanPrefix+invoiceSpanName,
		attribute.String("use_case", useCaseInvoiceCreate),
		attribute.String("payment.external_id", req.ExternalID),
		attribute.String("payment.amount", req.Amount.StringFixed(2)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var invoiceID string

	defer func() {
		lat := time.Since(start).Seconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseInvoiceCreate),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCaseInvoiceCreate),
		)
		attempt := "created"
		if err != nil {
			attempt = "create_failed"
		}
		uc.attemptCounter.Add(1, observability.L("outcome", attempt))

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
			observability.F("amount", req.Amount.StringFixed(2)),
		}
		if invoiceID != "" {
			fields = append(fields, observability.F("invoice_id", invoiceID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if strings.TrimSpace(in.Customer.Name) == "" {
		outcome, statusText = "error", "CUSTOMER_NAME_REQUIRED"
		return nil, dompay.ErrCustomerNameRequired
	}
	if len(in.Checkout.Lines) == 0 {
		outcome, statusText = "error", "CHECKOUT_EMPTY"
		return nil, dompay.ErrEmptyCheckout
	}

	inv, err := uc.gateway.CreateInvoice(ctx, req)
	if err != nil {
		outcome, statusText = "error", "GATEWAY_CREATE_FAILED"
		return nil, err
	}
	invoiceID = inv.ID
	span.AddEvent("payment.invoice_created",
		trace.WithAttributes(attribute.String("payment.invoice_id", inv.ID)),
	)
	return inv, nil
}

// ReturnURL appends the payment marker to the terminal address.
func ReturnURL(base string, outcome dompay.ReturnOutcome) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + dompay.ReturnParam + "=" + string(outcome)
	}
	q := u.Query()
	q.Set(dompay.ReturnParam, string(outcome))
	u.RawQuery = q.Encode()
	return u.String()
}
