package inventory

import "time"

// LowStockEvent is emitted when an item crosses into its low stock band.
type LowStockEvent struct {
	ItemID     string    `json:"item_id"`
	Name       string    `json:"name"`
	Stock      int       `json:"stock"`
	Threshold  int       `json:"threshold"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (LowStockEvent) EventName() string { return "inventory.low_stock" }

func NewLowStockEvent(it Item) LowStockEvent {
	return LowStockEvent{
		ItemID:     it.ID,
		Name:       it.Name,
		Stock:      it.Stock,
		Threshold:  it.LowStockThreshold,
		OccurredAt: time.Now().UTC(),
	}
}

// StockDeductedEvent is emitted after stock was taken for a recorded order.
type StockDeductedEvent struct {
	OrderID    string         `json:"order_id"`
	Deducted   map[string]int `json:"deducted"`
	Missing    []string       `json:"missing,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (StockDeductedEvent) EventName() string { return "inventory.stock_deducted" }

// NewlyLow returns the items that are low in after but were not low in before.
func NewlyLow(before, after []Item) []Item {
	seen := make(map[string]struct{}, len(before))
	for _, it := range before {
		seen[it.ID] = struct{}{}
	}
	var out []Item
	for _, it := range after {
		if _, ok := seen[it.ID]; !ok {
			out = append(out, it)
		}
	}
	return out
}
