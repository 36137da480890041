package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/railbook/config"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	logrus.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("Kafka publisher configured")

	return &KafkaPublisher{writer: writer, topic: cfg.Topic}, nil
}

// Publish keys messages by event key so events of one booking stay ordered within a partition
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	body, err := event.encode()
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.Key),
		Value: body,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write %s to kafka topic %s: %w", event.Type, p.topic, err)
	}

	logrus.WithFields(logrus.Fields{
		"type":  event.Type,
		"key":   event.Key,
		"topic": p.topic,
	}).Debug("Event sent to Kafka")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
