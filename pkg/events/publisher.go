// Package events publishes booking lifecycle events to a message broker
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ds124wfegd/railbook/config"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
)

const (
	DriverKafka    = "kafka"
	DriverRabbitMQ = "rabbitmq"
	DriverNone     = "none"
)

type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

func NewEvent(eventType, key string, data interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func (e Event) encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", e.Type, err)
	}
	return body, nil
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// New builds the publisher selected by cfg.Driver
func New(cfg *config.EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case DriverKafka:
		return NewKafkaPublisher(cfg.Kafka)
	case DriverRabbitMQ:
		return NewRabbitMQPublisher(cfg.RabbitMQ)
	case DriverNone, "":
		return NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// NopPublisher only logs events
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, event Event) error {
	logrus.WithFields(logrus.Fields{
		"event_id": event.ID,
		"type":     event.Type,
		"key":      event.Key,
	}).Debug("Event publishing disabled, dropping event")
	return nil
}

func (NopPublisher) Close() error { return nil }
