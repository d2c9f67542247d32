package httppresentation

import (
	"time"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/application/terminal"
	domcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	dompay "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
	"github.com/shopspring/decimal"
)

// Money leaves the service as fixed two-place strings.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type itemResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	Price             string    `json:"price"`
	Cost              string    `json:"cost"`
	Stock             int       `json:"stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	IsActive          bool      `json:"is_active"`
	IsLowStock        bool      `json:"is_low_stock"`
	Description       string    `json:"description,omitempty"`
	Image             string    `json:"image,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toItemResponse(it dominv.Item) itemResponse {
	return itemResponse{
		ID:                it.ID,
		Name:              it.Name,
		Category:          it.Category,
		Price:             money(it.Price),
		Cost:              money(it.Cost),
		Stock:             it.Stock,
		LowStockThreshold: it.LowStockThreshold,
		IsActive:          it.IsActive,
		IsLowStock:        it.IsLowStock(),
		Description:       it.Description,
		Image:             it.Image,
		CreatedAt:         it.CreatedAt,
		UpdatedAt:         it.UpdatedAt,
	}
}

func toItemResponses(items []dominv.Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	return out
}

type orderItemResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Category string `json:"category"`
}

type orderResponse struct {
	ID            string                 `json:"id"`
	OrderNumber   string                 `json:"order_number"`
	Items         []orderItemResponse    `json:"items"`
	Subtotal      string                 `json:"subtotal"`
	Tax           string                 `json:"tax"`
	Total         string                 `json:"total"`
	Status        domorder.Status        `json:"status"`
	CustomerName  string                 `json:"customer_name,omitempty"`
	CustomerType  domorder.CustomerType  `json:"customer_type"`
	PaymentMethod domorder.PaymentMethod `json:"payment_method"`
	Notes         string                 `json:"notes,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
}

func toOrderResponse(o *domorder.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ID:       it.ID,
			Name:     it.Name,
			Price:    money(it.Price),
			Quantity: it.Quantity,
			Category: it.Category,
		})
	}
	return orderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Items:         items,
		Subtotal:      money(o.Subtotal),
		Tax:           money(o.Tax),
		Total:         money(o.Total),
		Status:        o.Status,
		CustomerName:  o.CustomerName,
		CustomerType:  o.CustomerType,
		PaymentMethod: o.PaymentMethod,
		Notes:         o.Notes,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		CompletedAt:   o.CompletedAt,
	}
}

func toOrderResponses(orders []*domorder.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

type statsResponse struct {
	TotalSales        string `json:"total_sales"`
	TotalOrders       int    `json:"total_orders"`
	CompletedOrders   int    `json:"completed_orders"`
	AverageOrderValue string `json:"average_order_value"`
}

func toStatsResponse(s domorder.DailyStats) statsResponse {
	return statsResponse{
		TotalSales:        money(s.TotalSales),
		TotalOrders:       s.TotalOrders,
		CompletedOrders:   s.CompletedOrders,
		AverageOrderValue: money(s.AverageOrderValue),
	}
}

type lineResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
	Category string `json:"category"`
	Image    string `json:"image,omitempty"`
	Total    string `json:"total"`
}

func toLineResponses(lines []domcart.Line) []lineResponse {
	out := make([]lineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineResponse{
			ID:       l.ID,
			Name:     l.Name,
			Price:    money(l.Price),
			Quantity: l.Quantity,
			Category: l.Category,
			Image:    l.Image,
			Total:    money(l.Total()),
		})
	}
	return out
}

type totalsResponse struct {
	Subtotal   string `json:"subtotal"`
	Tax        string `json:"tax"`
	GrandTotal string `json:"grand_total"`
}

func toTotalsResponse(t dompay.Totals) totalsResponse {
	return totalsResponse{Subtotal: money(t.Subtotal), Tax: money(t.Tax), GrandTotal: money(t.GrandTotal)}
}

type cartResponse struct {
	Lines     []lineResponse `json:"lines"`
	ItemCount int            `json:"item_count"`
	totalsResponse
}

type invoiceResponse struct {
	ID            string               `json:"id"`
	ExternalID    string               `json:"external_id"`
	Amount        string               `json:"amount"`
	AmountDisplay string               `json:"amount_display"`
	Status        dompay.InvoiceStatus `json:"status"`
	CheckoutURL   string               `json:"checkout_url"`
	ExpiresAt     time.Time            `json:"expires_at"`
}

type paymentResponse struct {
	Open        bool             `json:"open"`
	State       dompay.State     `json:"state"`
	Lines       []lineResponse   `json:"lines"`
	Totals      totalsResponse   `json:"totals"`
	Customer    dompay.Customer  `json:"customer"`
	Invoice     *invoiceResponse `json:"invoice,omitempty"`
	Error       string           `json:"error,omitempty"`
	CheckoutURL string           `json:"checkout_url,omitempty"`
}

func (h *Handler) toPaymentResponse(v paymentView) paymentResponse {
	resp := paymentResponse{
		Open:        v.Open,
		State:       v.State,
		Lines:       toLineResponses(v.Checkout.Lines),
		Totals:      toTotalsResponse(v.Checkout.Totals),
		Customer:    v.Customer,
		Error:       v.Error,
		CheckoutURL: v.CheckoutURL,
	}
	if inv := v.Invoice; inv != nil {
		resp.Invoice = &invoiceResponse{
			ID:            inv.ID,
			ExternalID:    inv.ExternalID,
			Amount:        money(inv.Amount),
			AmountDisplay: h.formatAmount(inv.Amount),
			Status:        inv.Status,
			CheckoutURL:   inv.CheckoutURL,
			ExpiresAt:     inv.ExpiresAt,
		}
	}
	return resp
}

type terminalResponse struct {
	Category     string                 `json:"category"`
	Categories   []string               `json:"categories"`
	Items        []itemResponse         `json:"items"`
	Cart         cartResponse           `json:"cart"`
	Payment      paymentResponse        `json:"payment"`
	Notification *terminal.Notification `json:"notification,omitempty"`
}

func (h *Handler) toTerminalResponse(v terminal.View) terminalResponse {
	return terminalResponse{
		Category:   v.Category,
		Categories: v.Categories,
		Items:      toItemResponses(v.Items),
		Cart: cartResponse{
			Lines:          toLineResponses(v.Lines),
			ItemCount:      v.ItemCount,
			totalsResponse: toTotalsResponse(v.Totals),
		},
		Payment:      h.toPaymentResponse(v.Payment),
		Notification: v.Notification,
	}
}
