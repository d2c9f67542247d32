// Package rabbitmq forwards selected outbox events to a topic exchange so a
// back-office consumer can follow orders and stock without polling the terminal.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/outbox"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability"
	"github.com/Zhima-Mochi/coffeerealm-pos/internal/observability/logctx"
	"github.com/streadway/amqp"
)

const (
	peer           = "rabbitmq"
	exchangeType   = "topic"
	confirmTimeout = 5 * time.Second
)

var ErrNotReady = errors.New("rabbitmq: relay not connected")

// Envelope is the JSON body of every relayed message.
type Envelope struct {
	Event      string          `json:"event"`
	Source     string          `json:"source"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps an event for the wire.
func NewEnvelope(source string, e domoutbox.Event, now time.Time) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("rabbitmq: encode %s: %w", e.EventName(), err)
	}
	return Envelope{Event: e.EventName(), Source: source, OccurredAt: now.UTC(), Payload: payload}, nil
}

// Relay publishes events to a durable topic exchange with publisher confirms.
type Relay struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	confirms chan amqp.Confirmation
	exchange string
	source   string

	log          observability.Logger
	extCounter   observability.Counter
	extHistogram observability.Histogram
}

// Dial connects, declares the exchange and puts the channel in confirm mode.
func Dial(url, exchange, source string, tel observability.Observability) (*Relay, error) {
	if tel == nil {
		tel = observability.Nop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,     // name
		exchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: confirm mode: %w", err)
	}

	return &Relay{
		conn:         conn,
		ch:           ch,
		confirms:     ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		exchange:     exchange,
		source:       source,
		log:          tel.Logger().With(observability.F("component", "rabbitmq_relay"), observability.F("exchange", exchange)),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}, nil
}

// Forward subscribes the relay to the named events on the in-process bus.
func (r *Relay) Forward(sub domoutbox.Subscriber, events ...string) {
	for _, name := range events {
		sub.Subscribe(name, r.handle)
	}
}

func (r *Relay) handle(ctx context.Context, e domoutbox.Event) error {
	return r.Publish(ctx, e)
}

// Publish sends one event and waits for the broker's confirmation.
func (r *Relay) Publish(ctx context.Context, e domoutbox.Event) (err error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		if err != nil {
			outcome = "error"
		}
		r.extCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", e.EventName()),
			observability.L("outcome", outcome),
		)
		r.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", e.EventName()),
		)
	}()

	env, err := NewEnvelope(r.source, e, start)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("rabbitmq: encode envelope: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ch == nil {
		return ErrNotReady
	}
	if err := r.ch.Publish(
		r.exchange,
		e.EventName(),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    start,
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", e.EventName(), err)
	}

	select {
	case c := <-r.confirms:
		if !c.Ack {
			return fmt.Errorf("rabbitmq: %s not acknowledged", e.EventName())
		}
		logctx.FromOr(ctx, r.log).Debug("event_relayed", observability.F("event", e.EventName()))
		return nil
	case <-time.After(confirmTimeout):
		return fmt.Errorf("rabbitmq: %s confirmation timeout", e.EventName())
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	r.ch = nil
	return r.conn.Close()
}
