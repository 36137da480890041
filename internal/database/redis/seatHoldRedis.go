package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/go-redis/redis/v8"
)

const holdKeyPrefix = "railbook:hold:"

// releaseScript deletes the hold only if it still belongs to the caller
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SeatHoldStore reserves seats for one checkout session until the TTL runs out
type SeatHoldStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSeatHoldStore(client *redis.Client, ttl time.Duration) *SeatHoldStore {
	return &SeatHoldStore{client: client, ttl: ttl}
}

func HoldKey(trainID int64, class entity.FareClass, date entity.TravelDate, seatID string) string {
	return fmt.Sprintf("%s%d:%s:%s:%s", holdKeyPrefix, trainID, class, date.String(), seatID)
}

// Hold takes the seat for owner. Re-holding an own seat refreshes the TTL.
func (s *SeatHoldStore) Hold(ctx context.Context, key, owner string) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, owner, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to hold seat: %w", err)
	}
	if ok {
		return true, nil
	}

	current, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return s.client.SetNX(ctx, key, owner, s.ttl).Result()
	}
	if err != nil {
		return false, fmt.Errorf("failed to read seat hold: %w", err)
	}
	if current != owner {
		return false, nil
	}
	return true, s.client.Expire(ctx, key, s.ttl).Err()
}

func (s *SeatHoldStore) Release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, s.client, []string{key}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release seat hold: %w", err)
	}
	return nil
}

// Owners returns the current holder of each key; free keys map to ""
func (s *SeatHoldStore) Owners(ctx context.Context, keys []string) (map[string]string, error) {
	owners := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return owners, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read seat holds: %w", err)
	}
	for i, v := range values {
		if str, ok := v.(string); ok {
			owners[keys[i]] = str
		} else {
			owners[keys[i]] = ""
		}
	}
	return owners, nil
}
