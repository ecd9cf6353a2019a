package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/campus-reservation/internal/config"
)

const maxBackoff = 30 * time.Second

// Consumer reads booking events, appends one line per event to the booking
// log and mails every recipient when a Mailer is set.
type Consumer struct {
	url    string
	queue  string
	mailer Mailer

	mu  sync.Mutex
	out io.Writer
}

// NewConsumer returns a consumer writing to out.  mailer may be nil.
func NewConsumer(cfg config.QueueConfig, out io.Writer, mailer Mailer) *Consumer {
	return &Consumer{url: cfg.URL, queue: cfg.Queue, out: out, mailer: mailer}
}

// OpenLog opens path for appending, creating its directory first.
func OpenLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir logs")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open log file")
	}
	return f, nil
}

// Run connects to the broker and consumes until ctx is done, reconnecting
// with exponential backoff whenever the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	logger := log.WithField("component", "booking-consumer")
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			logger.WithError(err).Warnf("dial failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		logger.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("booking-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "queue declare")
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "queue consume")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				log.WithError(err).WithField("message", d.MessageId).Warn("booking-consumer: handle message failed")
				// reject without requeue so a poison message cannot loop
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle processes one message body.  The log line is written first; mail
// failures are reported after every recipient has been tried.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Wrap(err, "unmarshal")
	}
	if ev.BookingID == "" {
		return errors.New("event without booking id")
	}
	if err := c.writeLine(ev); err != nil {
		return err
	}
	if c.mailer == nil {
		return nil
	}
	subject, text := composeMail(ev)
	var result *multierror.Error
	for _, r := range ev.Recipients {
		if err := c.mailer.Send(ctx, r, subject, text); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (c *Consumer) writeLine(ev BookingEvent) error {
	verb := "confirmed"
	if ev.Type == EventCancelled {
		verb = "cancelled"
	}
	line := fmt.Sprintf("[%s] Booking %s | booking_id=%s | requester_id=%s | units=[%s] | recipients=%d\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), verb, ev.BookingID, ev.RequesterID,
		strings.Join(ev.UnitIDs, ","), len(ev.Recipients))

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.WriteString(c.out, line); err != nil {
		return errors.Wrap(err, "write log")
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
