package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ds124wfegd/railbook/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// RabbitMQPublisher publishes to a durable topic exchange with the event type as routing key
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

func NewRabbitMQPublisher(cfg config.RabbitMQConfig) (*RabbitMQPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq: url is empty")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	logrus.WithField("exchange", cfg.Exchange).Info("RabbitMQ publisher configured")
	return &RabbitMQPublisher{conn: conn, channel: channel, exchange: cfg.Exchange}, nil
}

func (r *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	body, err := event.encode()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange, // exchange
		event.Type, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Type:         event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (r *RabbitMQPublisher) Close() error {
	if err := r.channel.Close(); err != nil {
		r.conn.Close()
		return err
	}
	return r.conn.Close()
}
