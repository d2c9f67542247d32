package memory

import (
	"context"
	"slices"
	"sync"

	domain "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
)

// Mailbox is a process local single slot for the pending checkout. It does
// not survive a restart; see filestore.Mailbox for that.
type Mailbox struct {
	mu   sync.Mutex
	slot *domain.PendingCheckout
}

func NewMailbox() *Mailbox { return &Mailbox{} }

func (m *Mailbox) Save(ctx context.Context, p domain.PendingCheckout) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Items = slices.Clone(p.Items)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.slot = &p
	return nil
}

func (m *Mailbox) Take(ctx context.Context) (*domain.PendingCheckout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.slot
	m.slot = nil
	return p, nil
}

func (m *Mailbox) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.slot = nil
	return nil
}
