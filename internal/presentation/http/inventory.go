package httppresentation

import (
	"net/http"

	dominv "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/inventory"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func (h *Handler) inventoryRoutes(r chi.Router) {
	r.Get("/items", h.handleListItems)
	r.Post("/items", h.handleAddItem)
	r.Get("/items/{id}", h.handleGetItem)
	r.Patch("/items/{id}", h.handleUpdateItem)
	r.Delete("/items/{id}", h.handleDeleteItem)
	r.Put("/items/{id}/stock", h.handleUpdateStock)
	r.Get("/categories", h.handleCategories)
	r.Get("/low-stock", h.handleLowStock)
}

type itemRequest struct {
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	Cost              decimal.Decimal `json:"cost"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	IsActive          *bool           `json:"is_active"`
	Description       string          `json:"description"`
	Image             string          `json:"image"`
}

type itemPatchRequest struct {
	Name              *string          `json:"name"`
	Category          *string          `json:"category"`
	Price             *decimal.Decimal `json:"price"`
	Cost              *decimal.Decimal `json:"cost"`
	Stock             *int             `json:"stock"`
	LowStockThreshold *int             `json:"low_stock_threshold"`
	IsActive          *bool            `json:"is_active"`
	Description       *string          `json:"description"`
	Image             *string          `json:"image"`
}

type stockRequest struct {
	Stock int `json:"stock"`
}

// handleListItems lists active items; ?category narrows to one category.
func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	var (
		items []dominv.Item
		err   error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		items, err = h.inventory.ItemsByCategory(r.Context(), category)
	} else {
		items, err = h.inventory.Items(r.Context())
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponses(items))
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	it, err := h.inventory.AddItem(r.Context(), dominv.Draft{
		Name:              req.Name,
		Category:          req.Category,
		Price:             req.Price,
		Cost:              req.Cost,
		Stock:             req.Stock,
		LowStockThreshold: req.LowStockThreshold,
		IsActive:          active,
		Description:       req.Description,
		Image:             req.Image,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(it))
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.inventory.Item(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(it))
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req itemPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := chi.URLParam(r, "id")
	if !h.itemExists(w, r, id) {
		return
	}
	it, err := h.inventory.UpdateItem(r.Context(), id, dominv.Patch(req))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if it.ID == "" {
		writeDomainError(w, dominv.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(it))
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.itemExists(w, r, id) {
		return
	}
	if err := h.inventory.DeleteItem(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUpdateStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := chi.URLParam(r, "id")
	if !h.itemExists(w, r, id) {
		return
	}
	if err := h.inventory.UpdateStock(r.Context(), id, req.Stock); err != nil {
		writeDomainError(w, err)
		return
	}
	it, err := h.inventory.Item(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(it))
}

// itemExists writes a 404 for unknown ids. Store mutations ignore them.
func (h *Handler) itemExists(w http.ResponseWriter, r *http.Request, id string) bool {
	if _, err := h.inventory.Item(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return false
	}
	return true
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.inventory.Categories(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.LowStockItems(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponses(items))
}
