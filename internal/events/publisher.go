package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/drstein77/smartbilling/internal/checkout"
	amqp "github.com/rabbitmq/amqp091-go"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends checkout events to RabbitMQ.
type Publisher struct {
	conn *amqp.Connection
	ch   channel
}

// Dial connects to the broker and declares the events exchange.
func Dial(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareEventsExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare %s: %w", EventsExchange, err)
	}
	return &Publisher{conn: conn, ch: ch}, nil
}

// CheckoutCompleted implements checkout.Notifier.
func (p *Publisher) CheckoutCompleted(ctx context.Context, tx checkout.Transaction) error {
	body, err := json.Marshal(NewCheckoutCompleted(tx))
	if err != nil {
		return fmt.Errorf("marshal %s: %w", CheckoutCompletedEventType, err)
	}
	return p.publishJSON(ctx, CheckoutCompletedRoutingKey, tx.ID.String(), body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, messageID string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
