package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

const (
	ExchangeName = "notifications"
	ExchangeKind = "topic"
)

// Message is the (recipient, type, payload) tuple handed to the external
// delivery transport.
type Message struct {
	ID          string                 `json:"id"`
	RecipientID string                 `json:"recipient_id"`
	Type        model.NotificationType `json:"type"`
	Payload     map[string]string      `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
}

// RoutingKey returns the topic key for a notification type.
func RoutingKey(t model.NotificationType) string {
	return "notification." + string(t)
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type dialFunc func() (channel, io.Closer, error)

// RabbitPublisher hands notifications to a RabbitMQ topic exchange. A lost
// connection is redialed on the next delivery.
type RabbitPublisher struct {
	dial dialFunc

	mu      sync.Mutex
	conn    io.Closer
	channel channel
	closed  bool
}

// NewRabbitPublisher dials the broker and declares the durable exchange.
func NewRabbitPublisher(url string) (*RabbitPublisher, error) {
	return newRabbitPublisher(func() (channel, io.Closer, error) { return connect(url) })
}

func newRabbitPublisher(dial dialFunc) (*RabbitPublisher, error) {
	p := &RabbitPublisher{dial: dial}
	if err := p.ensure(); err != nil {
		return nil, err
	}
	return p, nil
}

func connect(url string) (channel, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	return ch, conn, nil
}

// ensure redials when the channel is missing or closed. Callers hold mu,
// except the constructor.
func (p *RabbitPublisher) ensure() error {
	if p.channel != nil && !p.channel.IsClosed() {
		return nil
	}
	p.reset()
	ch, conn, err := p.dial()
	if err != nil {
		return err
	}
	p.channel, p.conn = ch, conn
	return nil
}

func (p *RabbitPublisher) reset() {
	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

// Name identifies the sink in logs.
func (p *RabbitPublisher) Name() string { return "rabbitmq" }

// Deliver publishes one notification as a persistent JSON message.
func (p *RabbitPublisher) Deliver(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(Message{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Type:        n.Type,
		Payload:     n.Payload,
		CreatedAt:   n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("rabbitmq publisher closed")
	}
	if err := p.ensure(); err != nil {
		return err
	}
	err = p.channel.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey(n.Type),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.ID,
			Body:         body,
		},
	)
	if err != nil {
		p.reset()
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close releases the channel and connection. Later deliveries fail.
func (p *RabbitPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.reset()
}
