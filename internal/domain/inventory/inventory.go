package inventory

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("inventory: item not found")
	ErrNotOfferable  = errors.New("inventory: item is inactive or out of stock")
	ErrNameRequired  = errors.New("inventory: name is required")
	ErrInvalidStock  = errors.New("inventory: stock and threshold must not be negative")
	ErrInvalidAmount = errors.New("inventory: price and cost must not be negative")
)

// CategoryAll selects every category when filtering the menu.
const CategoryAll = "All"

// DefaultCategories are always offered, even before any item uses them.
var DefaultCategories = []string{"Coffee", "Tea", "Pastries", "Sandwiches", "Beverages"}

// Item is a sellable product in the catalog.
type Item struct {
	ID                string
	Name              string
	Category          string
	Price             decimal.Decimal
	Cost              decimal.Decimal
	Stock             int
	LowStockThreshold int
	IsActive          bool
	Description       string
	Image             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsLowStock reports whether an active item sits at or below its threshold.
func (i Item) IsLowStock() bool {
	return i.IsActive && i.Stock <= i.LowStockThreshold
}

// Offerable reports whether the item may be added to a new cart.
func (i Item) Offerable() bool {
	return i.IsActive && i.Stock > 0
}

// Draft carries the caller supplied fields of a new item.
type Draft struct {
	Name              string
	Category          string
	Price             decimal.Decimal
	Cost              decimal.Decimal
	Stock             int
	LowStockThreshold int
	IsActive          bool
	Description       string
	Image             string
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrNameRequired
	}
	if d.Stock < 0 || d.LowStockThreshold < 0 {
		return ErrInvalidStock
	}
	if d.Price.IsNegative() || d.Cost.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// NewItem builds an item from a validated draft.
func NewItem(id string, d Draft, now time.Time) (Item, error) {
	if err := d.Validate(); err != nil {
		return Item{}, err
	}
	return Item{
		ID:                id,
		Name:              strings.TrimSpace(d.Name),
		Category:          d.Category,
		Price:             d.Price,
		Cost:              d.Cost,
		Stock:             d.Stock,
		LowStockThreshold: d.LowStockThreshold,
		IsActive:          d.IsActive,
		Description:       d.Description,
		Image:             d.Image,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Name              *string
	Category          *string
	Price             *decimal.Decimal
	Cost              *decimal.Decimal
	Stock             *int
	LowStockThreshold *int
	IsActive          *bool
	Description       *string
	Image             *string
}

func (p Patch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrNameRequired
	}
	if (p.Stock != nil && *p.Stock < 0) || (p.LowStockThreshold != nil && *p.LowStockThreshold < 0) {
		return ErrInvalidStock
	}
	if (p.Price != nil && p.Price.IsNegative()) || (p.Cost != nil && p.Cost.IsNegative()) {
		return ErrInvalidAmount
	}
	return nil
}

func (i *Item) apply(p Patch, now time.Time) {
	if p.Name != nil {
		i.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		i.Category = *p.Category
	}
	if p.Price != nil {
		i.Price = *p.Price
	}
	if p.Cost != nil {
		i.Cost = *p.Cost
	}
	if p.Stock != nil {
		i.Stock = *p.Stock
	}
	if p.LowStockThreshold != nil {
		i.LowStockThreshold = *p.LowStockThreshold
	}
	if p.IsActive != nil {
		i.IsActive = *p.IsActive
	}
	if p.Description != nil {
		i.Description = *p.Description
	}
	if p.Image != nil {
		i.Image = *p.Image
	}
	i.UpdatedAt = now
}
