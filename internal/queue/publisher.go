package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// link is one broker connection together with the channel events are
// published on.
type link interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type amqpLink struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func (l *amqpLink) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return l.ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

func (l *amqpLink) IsClosed() bool { return l.conn.IsClosed() || l.ch.IsClosed() }

func (l *amqpLink) Close() error {
	_ = l.ch.Close()
	return l.conn.Close()
}

// dialLink connects, opens a channel and declares the exchange (idempotent).
func dialLink(url, exchange string) (link, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &amqpLink{conn: conn, ch: ch}, nil
}

// Publisher publishes booking events to a durable topic exchange.  The
// routing key is the event type, so consumers can bind to "booking.*" or
// to a single lifecycle step.  A connection lost to a broker restart is
// re-established on the next publish.  It is safe for concurrent use.
type Publisher struct {
	mu       sync.Mutex
	url      string
	exchange string
	dial     func(url, exchange string) (link, error)
	link     link
}

// NewPublisher dials the broker so that a bad URL fails at startup.
func NewPublisher(url, exchange string) (*Publisher, error) {
	return newPublisher(url, exchange, dialLink)
}

func newPublisher(url, exchange string, dial func(url, exchange string) (link, error)) (*Publisher, error) {
	p := &Publisher{url: url, exchange: exchange, dial: dial}
	l, err := dial(url, exchange)
	if err != nil {
		return nil, err
	}
	p.link = l
	return p, nil
}

// PublishBookingEvent marshals ev and publishes it as a persistent message.
// A closed connection is redialled once before giving up.
func (p *Publisher) PublishBookingEvent(ctx context.Context, ev BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.BookingID + ":" + ev.Type + ":" + ev.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for attempt := 0; ; attempt++ {
		l, err := p.connected()
		if err != nil {
			return fmt.Errorf("publish %s: %w", ev.Type, err)
		}
		err = l.PublishWithContext(ctx, p.exchange, ev.Type, false, false, pub)
		if err == nil {
			return nil
		}
		if attempt > 0 || !(errors.Is(err, amqp.ErrClosed) || l.IsClosed()) {
			return fmt.Errorf("publish %s: %w", ev.Type, err)
		}
		p.drop()
	}
}

// connected returns a live link, dialling when the previous one is gone.
// Callers hold p.mu.
func (p *Publisher) connected() (link, error) {
	if p.link != nil && !p.link.IsClosed() {
		return p.link, nil
	}
	p.drop()
	l, err := p.dial(p.url, p.exchange)
	if err != nil {
		return nil, err
	}
	p.link = l
	return l, nil
}

func (p *Publisher) drop() {
	if p.link != nil {
		_ = p.link.Close()
		p.link = nil
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.link == nil {
		return nil
	}
	err := p.link.Close()
	p.link = nil
	return err
}
