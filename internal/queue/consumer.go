package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// DeliveryLogName is the file the consumer appends to inside its log dir.
const DeliveryLogName = "ticket_delivery.log"

// TicketDeliveryConsumer reads booking.confirmed events and records a
// delivery line per booking.  It stands in for the mail and PDF pipeline.
type TicketDeliveryConsumer struct {
	url    string
	queue  string
	logDir string
	log    *logrus.Entry

	mu sync.Mutex // serializes appends to the delivery log
}

// NewTicketDeliveryConsumer binds a consumer to a broker and log dir.
func NewTicketDeliveryConsumer(url, queue, logDir string) *TicketDeliveryConsumer {
	return &TicketDeliveryConsumer{
		url:    url,
		queue:  queue,
		logDir: logDir,
		log:    logrus.WithField("component", "ticket-delivery"),
	}
}

// Run connects, consumes and reconnects with exponential backoff until ctx
// is cancelled.  It returns ctx.Err() on shutdown.
func (c *TicketDeliveryConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.WithError(err).Warnf("dial failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.WithError(err).Warn("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *TicketDeliveryConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.WithError(err).Warn("set QoS failed")
	}
	if _, err := declare(ch, c.queue); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				c.log.WithError(err).Error("handle message failed")
				_ = d.Nack(false, false) // poison messages are dropped, not requeued
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *TicketDeliveryConsumer) handleMessage(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.ReferenceCode == "" {
		return errors.New("event has no reference code")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.logDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.logDir, DeliveryLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open delivery log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Tickets sent | ref=%s | booking_id=%d | to=%q | slot=%d %s %s-%s | tickets=%d | total=%d paise | codes=[%s]\n",
		ev.ConfirmedAt, ev.ReferenceCode, ev.BookingID, ev.VisitorEmail, ev.TimeSlotID, ev.BookingDate,
		ev.StartTime, ev.EndTime, ev.TotalTickets, ev.TotalAmount, strings.Join(ev.TicketCodes, ","))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write delivery log: %w", err)
	}
	c.log.WithField("reference", ev.ReferenceCode).Info("tickets delivered")
	return nil
}

// sleep waits for d or ctx, reporting false when ctx ended first.
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
