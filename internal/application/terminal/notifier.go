package terminal

import (
	"sync"
	"time"
)

const DefaultNotificationTTL = 5 * time.Second

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a transient banner on the terminal.
type Notification struct {
	ID        uint64    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Notifier keeps the latest notification until it is dismissed or expires.
type Notifier struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	seq    uint64
	active *Notification
}

func NewNotifier(ttl time.Duration) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Notifier{ttl: ttl, now: time.Now}
}

// Show replaces the current notification.
func (n *Notifier) Show(kind Kind, title, message string) Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.seq++
	note := Notification{
		ID:        n.seq,
		Kind:      kind,
		Title:     title,
		Message:   message,
		ExpiresAt: n.now().Add(n.ttl),
	}
	n.active = &note
	return note
}

// Active returns the current notification unless it has expired.
func (n *Notifier) Active() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active == nil {
		return Notification{}, false
	}
	if !n.now().Before(n.active.ExpiresAt) {
		n.active = nil
		return Notification{}, false
	}
	return *n.active, true
}

// Dismiss removes the notification with the given id. Stale ids are ignored.
func (n *Notifier) Dismiss(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.active != nil && n.active.ID == id {
		n.active = nil
	}
}
