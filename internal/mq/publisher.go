// Package mq carries notification events over a RabbitMQ topic exchange,
// routed by event type.
package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Domenick1991/tablebooking/internal/notify"
	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Publisher struct {
	conn     *amqp.Connection
	ch       amqpPublisher
	closer   func() error
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
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
	return &Publisher{conn: conn, ch: ch, closer: ch.Close, exchange: exchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, event notify.Event) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.Key(),
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Body:         b,
	})
}

func (p *Publisher) Close() error {
	if p.closer != nil {
		_ = p.closer()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

var _ notify.Publisher = (*Publisher)(nil)
