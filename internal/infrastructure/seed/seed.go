// Package seed loads the embedded starter catalog and demo orders.
package seed

import (
	_ "embed"
	"fmt"
	"sort"
	"time"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/inventory"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

//go:embed orders.yaml
var ordersYAML []byte

type catalogFile struct {
	Items []itemEntry `yaml:"items"`
}

type itemEntry struct {
	ID                string `yaml:"id"`
	Name              string `yaml:"name"`
	Category          string `yaml:"category"`
	Price             string `yaml:"price"`
	Cost              string `yaml:"cost"`
	Stock             int    `yaml:"stock"`
	LowStockThreshold int    `yaml:"low_stock_threshold"`
	Description       string `yaml:"description"`
	Image             string `yaml:"image"`
	Inactive          bool   `yaml:"inactive"`
}

type ordersFile struct {
	Orders []orderEntry `yaml:"orders"`
}

type orderEntry struct {
	Status              string           `yaml:"status"`
	PaymentMethod       string           `yaml:"payment_method"`
	CustomerName        string           `yaml:"customer_name"`
	Notes               string           `yaml:"notes"`
	CreatedMinutesAgo   int              `yaml:"created_minutes_ago"`
	CompletedMinutesAgo *int             `yaml:"completed_minutes_ago"`
	Items               []orderItemEntry `yaml:"items"`
}

type orderItemEntry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Price    string `yaml:"price"`
	Quantity int    `yaml:"quantity"`
	Category string `yaml:"category"`
}

// Catalog returns the starter menu stamped with now.
func Catalog(now time.Time) ([]inventory.Item, error) {
	return ParseCatalog(catalogYAML, now)
}

func ParseCatalog(raw []byte, now time.Time) ([]inventory.Item, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("seed: catalog: %w", err)
	}
	out := make([]inventory.Item, 0, len(f.Items))
	for i, e := range f.Items {
		price, err := decimal.NewFromString(e.Price)
		if err != nil {
			return nil, fmt.Errorf("seed: catalog item %d price: %w", i, err)
		}
		cost, err := decimal.NewFromString(e.Cost)
		if err != nil {
			return nil, fmt.Errorf("seed: catalog item %d cost: %w", i, err)
		}
		it, err := inventory.NewItem(e.ID, inventory.Draft{
			Name:              e.Name,
			Category:          e.Category,
			Price:             price,
			Cost:              cost,
			Stock:             e.Stock,
			LowStockThreshold: e.LowStockThreshold,
			IsActive:          !e.Inactive,
			Description:       e.Description,
			Image:             e.Image,
		}, now)
		if err != nil {
			return nil, fmt.Errorf("seed: catalog item %d: %w", i, err)
		}
		out = append(out, it)
	}
	return out, nil
}

// Orders returns the demo history, newest first, timed relative to now.
func Orders(now time.Time, newID func() string, newNumber func(time.Time) string) ([]*order.Order, error) {
	return ParseOrders(ordersYAML, now, newID, newNumber)
}

func ParseOrders(raw []byte, now time.Time, newID func() string, newNumber func(time.Time) string) ([]*order.Order, error) {
	var f ordersFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("seed: orders: %w", err)
	}
	out := make([]*order.Order, 0, len(f.Orders))
	for i, e := range f.Orders {
		items := make([]order.Item, 0, len(e.Items))
		for _, it := range e.Items {
			price, err := decimal.NewFromString(it.Price)
			if err != nil {
				return nil, fmt.Errorf("seed: order %d price: %w", i, err)
			}
			items = append(items, order.Item{ID: it.ID, Name: it.Name, Price: price, Quantity: it.Quantity, Category: it.Category})
		}
		status, err := order.ParseStatus(e.Status)
		if err != nil {
			return nil, fmt.Errorf("seed: order %d: %w", i, err)
		}

		created := now.Add(-time.Duration(e.CreatedMinutesAgo) * time.Minute)
		o, err := order.New(newID(), newNumber(created), items, order.Details{
			CustomerName:  e.CustomerName,
			PaymentMethod: order.PaymentMethod(e.PaymentMethod),
			Notes:         e.Notes,
		}, created)
		if err != nil {
			return nil, fmt.Errorf("seed: order %d: %w", i, err)
		}

		changed := created
		if e.CompletedMinutesAgo != nil {
			changed = now.Add(-time.Duration(*e.CompletedMinutesAgo) * time.Minute)
		}
		if status != order.StatusPending {
			o.SetStatus(status, changed)
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}
