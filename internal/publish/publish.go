// Package publish mirrors persisted measurements to a message queue.
//
// The broker is optional infrastructure: hosts that want downstream
// consumers (home-automation rules, a phone notifier) point the daemon at
// an AMQP broker; everyone else runs the no-op publisher.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/banshee-data/scale.report/internal/history"
	"github.com/banshee-data/scale.report/internal/monitoring"
)

// Publisher delivers one persisted record to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, r history.Record) error
	Close() error
}

// NopPublisher discards every record.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, r history.Record) error { return nil }
func (NopPublisher) Close() error                                        { return nil }

// AMQPPublisher publishes records as persistent JSON messages to a durable
// queue. The connection is established lazily and re-established on the
// publish after a channel error, so a broker restart costs at most one
// dropped mirror message per restart.
type AMQPPublisher struct {
	addr  string
	queue string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher returns a publisher for the given broker address and
// queue name. No connection is made until the first Publish.
func NewAMQPPublisher(addr, queue string) *AMQPPublisher {
	return &AMQPPublisher{addr: addr, queue: queue}
}

// Publish delivers one record, connecting first if needed.
func (p *AMQPPublisher) Publish(ctx context.Context, r history.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannelLocked(); err != nil {
		return err
	}

	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    r.Timestamp,
		Body:         body,
	})
	if err != nil {
		// Drop the broken channel; the next Publish reconnects.
		p.teardownLocked()
		return fmt.Errorf("publish record: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) ensureChannelLocked() error {
	if p.channel != nil {
		return nil
	}

	conn, err := amqp.Dial(p.addr)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare queue %q: %w", p.queue, err)
	}

	p.conn = conn
	p.channel = ch
	monitoring.Logf("publish: connected to %s, queue %q", p.addr, p.queue)
	return nil
}

func (p *AMQPPublisher) teardownLocked() {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownLocked()
	return nil
}
