package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/application"
	dominv "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/outbox"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const inventoryService = "inventory-service"

var errStop = errors.New("inventory: no change")

type IDGenerator interface {
	NewID() string
}

// Service is the inventory store. Reads work on snapshots; every write goes
// through one repository update so the low stock view never lags the items.
type Service struct {
	repo      dominv.Repository
	ids       IDGenerator
	publisher domoutbox.Publisher
	now       func() time.Time

	in            application.Instruments
	lowStockGauge observability.Gauge
}

func NewService(repo dominv.Repository, ids IDGenerator, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	in := application.NewInstruments(tel, inventoryService)
	if publisher == nil {
		publisher = domoutbox.Discard
	}
	return &Service{
		repo:          repo,
		ids:           ids,
		publisher:     publisher,
		now:           time.Now,
		in:            in,
		lowStockGauge: in.Gauge(observability.MLowStockItems),
	}
}

// AddItem creates an item with a fresh id. Duplicate names are allowed.
func (s *Service) AddItem(ctx context.Context, d dominv.Draft) (_ dominv.Item, err error) {
	ctx, run := s.in.Start(ctx, "inventory.add_item", "AddItem", attribute.String("item.name", d.Name))
	defer func() { run.End(ctx, err) }()

	item, err := dominv.NewItem(s.ids.NewID(), d, s.now())
	if err != nil {
		run.Fail("VALIDATION_FAILED")
		return dominv.Item{}, err
	}
	err = s.mutate(ctx, func(c *dominv.Catalog) error {
		c.Add(item)
		return nil
	})
	if err != nil {
		run.Fail("REPO_UPDATE_FAILED")
		return dominv.Item{}, err
	}
	run.Field("item_id", item.ID)
	return item, nil
}

// UpdateItem merges the patch into an existing item. Unknown ids change
// nothing and return a zero Item.
func (s *Service) UpdateItem(ctx context.Context, id string, p dominv.Patch) (_ dominv.Item, err error) {
	ctx, run := s.in.Start(ctx, "inventory.update_item", "UpdateItem", attribute.String("item.id", id))
	defer func() { run.End(ctx, err) }()

	if err = p.Validate(); err != nil {
		run.Fail("VALIDATION_FAILED")
		return dominv.Item{}, err
	}
	var (
		updated dominv.Item
		found   bool
	)
	err = s.mutate(ctx, func(c *dominv.Catalog) error {
		if found = c.Update(id, p, s.now()); found {
			updated, _ = c.Item(id)
		}
		return nil
	})
	if err != nil {
		run.Fail(statusOf(err))
		return dominv.Item{}, err
	}
	if !found {
		run.Status("NOT_FOUND")
	}
	return updated, nil
}

// DeleteItem removes an item from the catalog. Recorded orders keep their snapshots.
func (s *Service) DeleteItem(ctx context.Context, id string) (err error) {
	ctx, run := s.in.Start(ctx, "inventory.delete_item", "DeleteItem", attribute.String("item.id", id))
	defer func() { run.End(ctx, err) }()

	var found bool
	err = s.mutate(ctx, func(c *dominv.Catalog) error {
		found = c.Delete(id)
		return nil
	})
	if err != nil {
		run.Fail(statusOf(err))
		return err
	}
	if !found {
		run.Status("NOT_FOUND")
	}
	return nil
}

// UpdateStock overwrites the stock level. Negative levels are rejected and
// unknown ids change nothing.
func (s *Service) UpdateStock(ctx context.Context, id string, stock int) (err error) {
	ctx, run := s.in.Start(ctx, "inventory.update_stock", "UpdateStock",
		attribute.String("item.id", id),
		attribute.Int("item.stock", stock),
	)
	defer func() { run.End(ctx, err) }()

	if stock < 0 {
		run.Fail("VALIDATION_FAILED")
		return dominv.ErrInvalidStock
	}
	var found bool
	err = s.mutate(ctx, func(c *dominv.Catalog) error {
		found = c.SetStock(id, stock, s.now())
		return nil
	})
	if err != nil {
		run.Fail(statusOf(err))
		return err
	}
	if !found {
		run.Status("NOT_FOUND")
	}
	return nil
}

// Seed loads the starter catalog into an empty store. It reports whether anything was loaded.
func (s *Service) Seed(ctx context.Context, items []dominv.Item) (bool, error) {
	seeded := false
	err := s.mutate(ctx, func(c *dominv.Catalog) error {
		if c.Len() > 0 {
			return errStop
		}
		for _, it := range items {
			c.Add(it)
		}
		seeded = true
		return nil
	})
	if errors.Is(err, errStop) {
		err = nil
	}
	if seeded {
		s.in.Log.Info("inventory_seeded", observability.F("items", len(items)))
	}
	return seeded, err
}

func (s *Service) Item(ctx context.Context, id string) (dominv.Item, error) {
	c, err := s.repo.Snapshot(ctx)
	if err != nil {
		return dominv.Item{}, err
	}
	it, ok := c.Item(id)
	if !ok {
		return dominv.Item{}, dominv.ErrNotFound
	}
	return it, nil
}

func (s *Service) Items(ctx context.Context) ([]dominv.Item, error) {
	c, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.Items(), nil
}

// ItemsByCategory lists active items; "" or "All" lists every category.
func (s *Service) ItemsByCategory(ctx context.Context, category string) ([]dominv.Item, error) {
	c, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.InCategory(category), nil
}

// Offerable lists the items the terminal may add to a cart.
func (s *Service) Offerable(ctx context.Context, category string) ([]dominv.Item, error) {
	c, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.Offerable(category), nil
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	c, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.Categories(), nil
}

func (s *Service) LowStockItems(ctx context.Context) ([]dominv.Item, error) {
	c, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.LowStock(), nil
}

// mutate applies fn atomically, then announces items that just became low.
func (s *Service) mutate(ctx context.Context, fn func(c *dominv.Catalog) error) error {
	var before, after []dominv.Item
	err := s.repo.Update(ctx, func(c *dominv.Catalog) error {
		before = c.LowStock()
		if err := fn(c); err != nil {
			return err
		}
		after = c.LowStock()
		return nil
	})
	if err != nil {
		return err
	}
	s.announceLowStock(ctx, before, after)
	return nil
}

func (s *Service) announceLowStock(ctx context.Context, before, after []dominv.Item) {
	s.lowStockGauge.Set(float64(len(after)))
	for _, it := range dominv.NewlyLow(before, after) {
		if err := s.in.Publish(ctx, s.publisher, dominv.NewLowStockEvent(it)); err != nil {
			s.in.Log.Warn("low_stock_publish_failed",
				observability.F("item_id", it.ID),
				observability.F("error", err),
			)
		}
	}
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CONTEXT_CANCELED"
	default:
		return "REPO_UPDATE_FAILED"
	}
}
