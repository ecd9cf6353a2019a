package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/campus-reservation/internal/config"
	"github.com/iliyamo/campus-reservation/internal/model"
)

// defaultDialTimeout bounds a broker dial when the caller set no deadline.
const defaultDialTimeout = 5 * time.Second

// publishChannel is the slice of *amqp.Channel the publisher uses.
type publishChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends booking events to a durable queue.  It satisfies the
// coordinator's Notifier.  Each publish dials its own connection, so a
// broker outage costs one failed notification and nothing more.
type Publisher struct {
	queue string
	clock clockwork.Clock
	open  func(ctx context.Context) (publishChannel, func() error, error)
}

// NewPublisher returns a Publisher for cfg.
func NewPublisher(cfg config.QueueConfig, clock clockwork.Clock) *Publisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	url := cfg.URL
	return &Publisher{
		queue: cfg.Queue,
		clock: clock,
		open: func(ctx context.Context) (publishChannel, func() error, error) {
			conn, err := amqp.DialConfig(url, amqp.Config{
				Heartbeat: 10 * time.Second,
				Locale:    "en_US",
				Dial:      amqp.DefaultDial(dialTimeout(ctx)),
			})
			if err != nil {
				return nil, nil, errors.Wrap(err, "dial broker")
			}
			ch, err := conn.Channel()
			if err != nil {
				_ = conn.Close()
				return nil, nil, errors.Wrap(err, "open channel")
			}
			return ch, conn.Close, nil
		},
	}
}

func (p *Publisher) BookingConfirmed(ctx context.Context, b model.Booking) error {
	return p.Publish(ctx, NewBookingEvent(EventConfirmed, b, p.clock.Now()))
}

func (p *Publisher) BookingCancelled(ctx context.Context, b model.Booking) error {
	at := p.clock.Now()
	if b.CancelledAt != nil {
		at = *b.CancelledAt
	}
	return p.Publish(ctx, NewBookingEvent(EventCancelled, b, at))
}

// Publish declares the queue and sends ev as a persistent message routed
// through the default exchange.
func (p *Publisher) Publish(ctx context.Context, ev BookingEvent) error {
	logger := log.WithFields(log.Fields{"component": "booking-publisher", "event": ev.Type, "booking": ev.BookingID})

	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	ch, closeConn, err := p.open(ctx)
	if err != nil {
		logger.WithError(err).Warn("broker unavailable")
		return err
	}
	defer func() {
		_ = ch.Close()
		_ = closeConn()
	}()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		logger.WithError(err).Warn("queue declare failed")
		return errors.Wrap(err, "queue declare")
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         string(ev.Type),
		MessageId:    ev.BookingID,
		Timestamp:    p.clock.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		logger.WithError(err).Warn("publish failed")
		return errors.Wrap(err, "publish")
	}
	logger.Debug("event published")
	return nil
}

// dialTimeout is the time left before ctx's deadline, or the default when
// there is none.
func dialTimeout(ctx context.Context) time.Duration {
	d, ok := ctx.Deadline()
	if !ok {
		return defaultDialTimeout
	}
	left := time.Until(d)
	if left <= 0 {
		return time.Millisecond
	}
	return left
}
