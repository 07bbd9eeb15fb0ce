// Package broker connects the notification channels to their transports:
// RabbitMQ for email/sms jobs and Kafka for push messages.
package broker

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	dialAttempts = 30
	dialBackoff  = 2 * time.Second
)

// Dial connects to RabbitMQ, retrying while the broker comes up.
func Dial(ctx context.Context, url string, log *zap.SugaredLogger) (*amqp.Connection, error) {
	var err error
	for i := 0; i < dialAttempts; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			log.Info("connected to rabbitmq")
			return conn, nil
		}
		log.Warnf("rabbitmq dial failed: %v, retrying in %s", err, dialBackoff)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialBackoff):
		}
	}
	return nil, fmt.Errorf("could not connect to rabbitmq after %d attempts: %w", dialAttempts, err)
}

// amqpChannel is the part of *amqp.Channel the publisher uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher publishes persistent JSON messages to a topic exchange.
type Publisher struct {
	ch       amqpChannel
	exchange string
}

// NewPublisher opens a channel on conn and declares the exchange.
func NewPublisher(conn *amqp.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return newPublisher(ch, exchange)
}

func newPublisher(ch amqpChannel, exchange string) (*Publisher, error) {
	err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{ch: ch, exchange: exchange}, nil
}

// Publish sends body with the given routing key. It honours ctx for cancellation.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte, correlationID string) error {
	return p.ch.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: correlationID,
			Body:          body,
			DeliveryMode:  amqp.Persistent,
			Timestamp:     time.Now(),
		},
	)
}

// Close closes the publisher channel.
func (p *Publisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}
