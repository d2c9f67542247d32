package terminal

import (
	"context"

	apppayment "github.com/Zhima-Mochi/coffeerealm-pos/internal/application/payment"
	domcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/inventory"
	dompay "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
)

// View is everything the terminal screen renders.
type View struct {
	Category     string
	Categories   []string
	Items        []dominv.Item
	Lines        []domcart.Line
	ItemCount    int
	Totals       dompay.Totals
	Payment      apppayment.View
	Notification *Notification
}

// View assembles the screen for the selected category ("" or All for every one).
func (w *Workflow) View(ctx context.Context, category string) (View, error) {
	if category == "" {
		category = dominv.CategoryAll
	}
	cats, err := w.inventory.Categories(ctx)
	if err != nil {
		return View{}, err
	}
	items, err := w.inventory.Offerable(ctx, category)
	if err != nil {
		return View{}, err
	}
	c, err := w.cart.Snapshot(ctx)
	if err != nil {
		return View{}, err
	}

	v := View{
		Category:   category,
		Categories: append([]string{dominv.CategoryAll}, cats...),
		Items:      items,
		Lines:      c.Lines(),
		ItemCount:  c.ItemCount(),
		Totals:     checkoutOf(c).Totals,
		Payment:    w.dialog.State(),
	}
	if note, ok := w.notifier.Active(); ok {
		v.Notification = &note
	}
	return v, nil
}
