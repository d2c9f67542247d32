package httppresentation

import (
	"errors"
	"net/http"

	domorder "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) orderRoutes(r chi.Router) {
	r.Get("/", h.handleListOrders)
	r.Get("/stats", h.handleDailyStats)
	r.Get("/{id}", h.handleGetOrder)
	r.Patch("/{id}/status", h.handleUpdateOrderStatus)
	r.Post("/{id}/cancel", h.handleCancelOrder)
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

// handleListOrders returns the history newest first. ?status filters by
// status and ?scope=today keeps only orders created today.
func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		orders []*domorder.Order
		err    error
	)
	switch {
	case q.Get("status") != "":
		status, perr := domorder.ParseStatus(q.Get("status"))
		if perr != nil {
			writeDomainError(w, perr)
			return
		}
		orders, err = h.orders.OrdersByStatus(r.Context(), status)
	case q.Get("scope") == "today":
		orders, err = h.orders.TodaysOrders(r.Context())
	case q.Get("scope") != "":
		writeError(w, http.StatusBadRequest, errors.New("unknown scope"))
		return
	default:
		orders, err = h.orders.Orders(r.Context())
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.OrderByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req orderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := domorder.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if !h.orderExists(w, r, id) {
		return
	}
	if err := h.orders.UpdateOrderStatus(r.Context(), id, status); err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeOrder(w, r, id)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.orderExists(w, r, id) {
		return
	}
	if err := h.orders.CancelOrder(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeOrder(w, r, id)
}

// orderExists writes a 404 for unknown ids. Status changes ignore them.
func (h *Handler) orderExists(w http.ResponseWriter, r *http.Request, id string) bool {
	if _, err := h.orders.OrderByID(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return false
	}
	return true
}

func (h *Handler) writeOrder(w http.ResponseWriter, r *http.Request, id string) {
	o, err := h.orders.OrderByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.DailyStats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}
