// Package redisstore keeps short-lived checkout state in Redis
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/railbook/internal/booking"
	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "railbook:checkout:"

// SessionStore keeps checkout flows as JSON with a sliding TTL.
// A session that expires is treated as abandoned.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (s *SessionStore) Save(ctx context.Context, flow *booking.Flow) error {
	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(flow.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save checkout session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*booking.Flow, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, entity.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}

	var flow booking.Flow
	if err := json.Unmarshal(data, &flow); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}
	return &flow, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete checkout session: %w", err)
	}
	return nil
}
