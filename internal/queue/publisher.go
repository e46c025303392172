package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends booking events to a durable queue on the default
// exchange.  The connection is opened on first use and dropped after any
// failure so the next publish redials.
type Publisher struct {
	url   string
	queue string
	log   *logrus.Entry

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher does not dial; a broker outage at startup must not keep the
// API from serving.
func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue, log: logrus.WithField("component", "queue-publisher")}
}

// PublishBookingConfirmed publishes ev as a persistent JSON message.
// Errors are logged and returned; callers treat delivery as best effort.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.log.WithError(err).Warn("broker unavailable")
		return err
	}
	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			MessageId:    ev.ReferenceCode,
			Body:         body,
		})
	if err != nil {
		p.log.WithError(err).WithField("reference", ev.ReferenceCode).Warn("publish failed")
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// channel returns the open channel, dialing when needed.  p.mu is held.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := declare(ch, p.queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// declare makes sure the durable queue exists.  Declaring is idempotent.
func declare(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return q, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}
