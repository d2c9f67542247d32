package httppresentation

import (
	"context"
	"net/http"
	"strconv"

	apppayment "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/payment"
	domorder "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	dompay "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/infrastructure/identity"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
)

type paymentView = apppayment.View

func (h *Handler) terminalRoutes(r chi.Router) {
	r.Get("/", h.handleTerminalView)

	r.Post("/cart/items", h.handleAddToCart)
	r.Patch("/cart/items/{id}", h.handleUpdateCartQuantity)
	r.Delete("/cart/items/{id}", h.handleRemoveFromCart)
	r.Delete("/cart", h.handleClearCart)
	r.Post("/checkout", h.handleCheckout)

	r.Get("/payment", h.handlePaymentState)
	r.Post("/payment/submit", h.handleSubmitPayment)
	r.Post("/payment/retry", h.handleRetryPayment)
	r.Post("/payment/proceed", h.handleProceedToCheckout)
	r.Delete("/payment", h.handleClosePayment)

	r.Delete("/notifications/{id}", h.handleDismissNotification)
}

// handleTerminalPage is the gateway's return address. A payment marker is
// consumed and the cashier is sent to the clean address so a reload cannot
// replay it.
func (h *Handler) handleTerminalPage(w http.ResponseWriter, r *http.Request) {
	handled, err := h.terminal.HandleReturn(r.Context(), r.URL.Query())
	if err != nil {
		logctx.FromOr(r.Context(), h.log).Error("payment_return_failed", observability.F("error", err))
	}
	if handled {
		http.Redirect(w, r, h.terminalPath, http.StatusSeeOther)
		return
	}
	h.handleTerminalView(w, r)
}

func (h *Handler) handleTerminalView(w http.ResponseWriter, r *http.Request) {
	v, err := h.terminal.View(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toTerminalResponse(v))
}

type addToCartRequest struct {
	ItemID string `json:"item_id"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type checkoutRequest struct {
	PaymentMethod domorder.PaymentMethod `json:"payment_method"`
}

type checkoutResponse struct {
	OrderID    string `json:"order_id,omitempty"`
	DialogOpen bool   `json:"dialog_open"`
}

type customerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type proceedResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

func (h *Handler) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.afterCartChange(w, r, h.terminal.AddToCart(r.Context(), req.ItemID))
}

func (h *Handler) handleUpdateCartQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.afterCartChange(w, r, h.terminal.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), req.Quantity))
}

func (h *Handler) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	h.afterCartChange(w, r, h.terminal.RemoveFromCart(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	h.afterCartChange(w, r, h.terminal.ClearCart(r.Context()))
}

// afterCartChange answers a cart mutation with the refreshed terminal view.
func (h *Handler) afterCartChange(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.handleTerminalView(w, r)
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.terminal.Checkout(r.Context(), req.PaymentMethod)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if res.DialogOpen {
		status = http.StatusAccepted
	}
	writeJSON(w, status, checkoutResponse{OrderID: res.OrderID, DialogOpen: res.DialogOpen})
}

func (h *Handler) handlePaymentState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.toPaymentResponse(h.terminal.Payment()))
}

func (h *Handler) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// The attempt outlives this request; polling stops on close or shutdown.
	ctx := context.WithoutCancel(r.Context())
	if err := h.terminal.SubmitPayment(ctx, dompay.Customer(req)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.toPaymentResponse(h.terminal.Payment()))
}

func (h *Handler) handleRetryPayment(w http.ResponseWriter, _ *http.Request) {
	if err := h.terminal.RetryPayment(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toPaymentResponse(h.terminal.Payment()))
}

func (h *Handler) handleProceedToCheckout(w http.ResponseWriter, r *http.Request) {
	u, err := h.terminal.ProceedToCheckout(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proceedResponse{CheckoutURL: u})
}

func (h *Handler) handleClosePayment(w http.ResponseWriter, _ *http.Request) {
	h.terminal.ClosePayment()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.terminal.Notifier().Dismiss(id)
	w.WriteHeader(http.StatusNoContent)
}

type userCtxKey struct{}

func withUser(ctx context.Context, u identity.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

func userFrom(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(identity.User)
	return u, ok
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	u, _ := userFrom(r.Context())
	writeJSON(w, http.StatusOK, u)
}

// handleSignOut closes any open payment dialog before the provider ends the session.
func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	h.terminal.SignOut(r.Context())
	if h.identity == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.identity.SignOut(w, r)
}
