package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ds124wfegd/railbook/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventEncode(t *testing.T) {
	e := NewEvent(TypeBookingConfirmed, "bk-1", map[string]string{"pnr": "1234567890"})
	require.NotEmpty(t, e.ID)
	assert.False(t, e.OccurredAt.IsZero())

	body, err := e.encode()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "booking.confirmed", decoded["type"])
	assert.Equal(t, "bk-1", decoded["key"])
	assert.Equal(t, "1234567890", decoded["data"].(map[string]interface{})["pnr"])
}

func TestNewPublisher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EventsConfig
		wantNop bool
		wantErr bool
	}{
		{name: "none", cfg: config.EventsConfig{Driver: DriverNone}, wantNop: true},
		{name: "empty driver", cfg: config.EventsConfig{}, wantNop: true},
		{name: "unknown", cfg: config.EventsConfig{Driver: "nats"}, wantErr: true},
		{name: "kafka without brokers", cfg: config.EventsConfig{Driver: DriverKafka, Kafka: config.KafkaConfig{Topic: "t"}}, wantErr: true},
		{name: "rabbitmq without url", cfg: config.EventsConfig{Driver: DriverRabbitMQ}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNop {
				assert.IsType(t, NopPublisher{}, p)
				assert.NoError(t, p.Publish(context.Background(), NewEvent(TypeBookingCancelled, "k", nil)))
			}
		})
	}
}

func TestNewKafkaPublisher(t *testing.T) {
	p, err := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "booking-events"})
	require.NoError(t, err)
	assert.Equal(t, "booking-events", p.topic)
	assert.NoError(t, p.Close())
}
