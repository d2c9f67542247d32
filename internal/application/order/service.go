package order

import (
	"context"
	"errors"
	"time"

	"github.com/Zhima-Mochi/coffeerealm-pos/internal/application"
	domcart "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/cart"
	domain "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/outbox"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

var errAlreadySeeded = errors.New("order: history not empty")

// Service is the orders store: creation goes through CreateOrderUseCase,
// status changes and queries through the repository.
type Service struct {
	repo      domain.Repository
	create    application.UseCase[CreateOrderInput, *CreateOrderResult]
	publisher domoutbox.Publisher
	policy    domain.Policy
	now       func() time.Time
	in        application.Instruments
}

func NewService(
	repo domain.Repository,
	create application.UseCase[CreateOrderInput, *CreateOrderResult],
	publisher domoutbox.Publisher,
	policy domain.Policy,
	tel observability.Observability,
) *Service {
	if publisher == nil {
		publisher = domoutbox.Discard
	}
	return &Service{
		repo:      repo,
		create:    create,
		publisher: publisher,
		policy:    policy,
		now:       time.Now,
		in:        application.NewInstruments(tel, orderService),
	}
}

// CreateOrder records an order for lines and returns its id.
func (s *Service) CreateOrder(ctx context.Context, lines []domcart.Line, d domain.Details) (string, error) {
	res, err := s.create.Execute(ctx, CreateOrderInput{Lines: lines, Details: d})
	if err != nil {
		return "", err
	}
	return res.OrderID, nil
}

// UpdateOrderStatus applies a status change under the configured policy.
// Unknown ids change nothing.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status domain.Status) (err error) {
	ctx, run := s.in.Start(ctx, "order.update_status", "UpdateOrderStatus",
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	)
	defer func() { run.End(ctx, err) }()

	if _, err = domain.ParseStatus(string(status)); err != nil {
		run.Fail("STATUS_INVALID")
		return err
	}

	return s.changeStatus(ctx, run, id, status, func(b *domain.Book) (domain.Status, error) {
		return b.SetStatus(id, status, s.policy, s.now())
	})
}

// CancelOrder cancels any order that is not already completed. The check and
// the write happen in one repository update. Unknown ids change nothing.
func (s *Service) CancelOrder(ctx context.Context, id string) (err error) {
	ctx, run := s.in.Start(ctx, "order.cancel", "CancelOrder", attribute.String("order.id", id))
	defer func() { run.End(ctx, err) }()

	return s.changeStatus(ctx, run, id, domain.StatusCancelled, func(b *domain.Book) (domain.Status, error) {
		return b.Cancel(id, s.policy, s.now())
	})
}

// changeStatus runs apply inside one repository update and publishes the
// change once it has committed.
func (s *Service) changeStatus(
	ctx context.Context,
	run *application.Run,
	id string,
	status domain.Status,
	apply func(b *domain.Book) (domain.Status, error),
) error {
	var prev domain.Status
	err := s.repo.Update(ctx, func(b *domain.Book) error {
		var uerr error
		prev, uerr = apply(b)
		return uerr
	})
	if errors.Is(err, domain.ErrNotFound) {
		run.Status("NOT_FOUND")
		return nil
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidTransition):
			run.Fail("TRANSITION_REJECTED")
		default:
			run.Fail("REPO_UPDATE_FAILED")
		}
		return err
	}

	run.Field("previous_status", string(prev))
	if perr := s.in.Publish(ctx, s.publisher, domain.NewOrderStatusChangedEvent(id, prev, status)); perr != nil {
		run.Status("EVENT_PUBLISH_FAILED")
		run.Field("event_publish_error", perr.Error())
	}
	return nil
}

func (s *Service) OrderByID(ctx context.Context, id string) (*domain.Order, error) {
	b, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	o, ok := b.ByID(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// Orders lists the whole history, newest first.
func (s *Service) Orders(ctx context.Context) ([]*domain.Order, error) {
	b, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return b.Orders(), nil
}

func (s *Service) OrdersByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	b, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return b.ByStatus(status), nil
}

// TodaysOrders lists orders created on the current local calendar day.
func (s *Service) TodaysOrders(ctx context.Context) ([]*domain.Order, error) {
	b, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return b.CreatedOn(s.now()), nil
}

// DailyStats returns the stats as of the last order mutation.
func (s *Service) DailyStats(ctx context.Context) (domain.DailyStats, error) {
	b, err := s.repo.Snapshot(ctx)
	if err != nil {
		return domain.DailyStats{}, err
	}
	return b.Stats(), nil
}

// Seed records demo orders, given newest first, into an empty history.
func (s *Service) Seed(ctx context.Context, orders []*domain.Order) (bool, error) {
	err := s.repo.Update(ctx, func(b *domain.Book) error {
		if b.Len() > 0 {
			return errAlreadySeeded
		}
		now := s.now()
		for _, o := range orders {
			b.Append(o, now)
		}
		return nil
	})
	if errors.Is(err, errAlreadySeeded) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.in.Log.Info("orders_seeded", observability.F("orders", len(orders)))
	return true, nil
}
