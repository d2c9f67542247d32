package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	appinv "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/order"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/application/terminal"
	dominv "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	dompay "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/identity"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTerminalID     = "X-Terminal-ID"
	tracerName           = "coffeerealm.http"
)

type Deps struct {
	Inventory *appinv.Service
	Orders    *apporder.Service
	Terminal  *terminal.Workflow
	Identity  identity.Provider
	// TerminalPath is where the gateway sends the cashier back.
	TerminalPath string
	// FormatAmount renders an invoice amount for display.
	FormatAmount func(decimal.Decimal) string
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

type Handler struct {
	inventory    *appinv.Service
	orders       *apporder.Service
	terminal     *terminal.Workflow
	identity     identity.Provider
	terminalPath string
	formatAmount func(decimal.Decimal) string
	metrics      http.Handler

	log observability.Logger
	tel observability.Observability
}

func NewHandler(deps Deps, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	if deps.TerminalPath == "" {
		deps.TerminalPath = "/pos"
	}
	if deps.FormatAmount == nil {
		deps.FormatAmount = func(d decimal.Decimal) string { return d.StringFixed(2) }
	}
	return &Handler{
		inventory:    deps.Inventory,
		orders:       deps.Orders,
		terminal:     deps.Terminal,
		identity:     deps.Identity,
		terminalPath: deps.TerminalPath,
		formatAmount: deps.FormatAmount,
		metrics:      deps.Metrics,
		log:          tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:          tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Trace → request logger + HTTP metrics → access log → handler
	r.Use(h.withTrace)
	r.Use(ObservabilityMiddleware(
		h.log,
		func(r *http.Request) string { return r.Header.Get(headerRequestID) },
		func(r *http.Request) string { return r.Header.Get(headerTerminalID) },
		h.tel,
	))
	r.Use(h.withAccessLog)

	r.Get("/health", h.handleHealth)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)

		r.Get(h.terminalPath, h.handleTerminalPage)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/session", h.handleSession)
			r.Post("/session/sign-out", h.handleSignOut)

			r.Route("/inventory", h.inventoryRoutes)
			r.Route("/terminal", h.terminalRoutes)
			r.Route("/orders", h.orderRoutes)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// requireUser rejects requests without a signed-in cashier.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.identity == nil {
			next.ServeHTTP(w, r)
			return
		}
		u, ok := h.identity.CurrentUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.New("sign in required"))
			return
		}
		ctx, _ := logctx.Enrich(r.Context(), h.log, observability.F("user_id", u.ID))
		next.ServeHTTP(w, r.WithContext(withUser(ctx, u)))
	})
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routePattern(r)),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer(tracerName)
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctxWithSpan, span := tracer.Start(parentCtx,
			r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))

		if route := routePattern(r); route != "unknown" {
			span.SetName(r.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))
		}
	})
}

// routePattern is the low-cardinality route template chi matched.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, dominv.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, dominv.ErrNameRequired),
		errors.Is(err, dominv.ErrInvalidStock),
		errors.Is(err, dominv.ErrInvalidAmount),
		errors.Is(err, domorder.ErrEmpty),
		errors.Is(err, domorder.ErrInvalidStatus),
		errors.Is(err, domorder.ErrInvalidPayment),
		errors.Is(err, dompay.ErrCustomerNameRequired),
		errors.Is(err, terminal.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, dominv.ErrNotOfferable),
		errors.Is(err, domorder.ErrInvalidTransition),
		errors.Is(err, dompay.ErrNotIdle),
		errors.Is(err, dompay.ErrNotReady),
		errors.Is(err, dompay.ErrNotFailed),
		errors.Is(err, dompay.ErrDialogClosed),
		errors.Is(err, dompay.ErrEmptyCheckout):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
