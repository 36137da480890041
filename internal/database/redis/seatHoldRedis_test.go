package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ds124wfegd/railbook/internal/entity"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHoldTTL = 10 * time.Minute

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func testHoldKey(t *testing.T, seatID string) string {
	t.Helper()
	date, err := entity.ParseTravelDate("2026-12-01")
	require.NoError(t, err)
	return HoldKey(1, entity.ClassSleeper, date, seatID)
}

// TestHoldKey тестирует формат ключа удержания места
func TestHoldKey(t *testing.T) {
	assert.Equal(t, "railbook:hold:1:SL:2026-12-01:S1-12", testHoldKey(t, "S1-12"))
}

// TestSeatHold тестирует захват места и отказ второй сессии
func TestSeatHold(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewSeatHoldStore(client, testHoldTTL)
	ctx := context.Background()
	key := testHoldKey(t, "S1-12")

	ok, err := store.Hold(ctx, key, "sess-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testHoldTTL, mr.TTL(key))

	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "sess-a", got)

	ok, err = store.Hold(ctx, key, "sess-b")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "sess-a", got)
}

// TestSeatHoldRefresh тестирует продление TTL при повторном захвате своего места
func TestSeatHoldRefresh(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewSeatHoldStore(client, testHoldTTL)
	ctx := context.Background()
	key := testHoldKey(t, "S1-12")

	ok, err := store.Hold(ctx, key, "sess-a")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(testHoldTTL - time.Minute)
	assert.Equal(t, time.Minute, mr.TTL(key))

	ok, err = store.Hold(ctx, key, "sess-a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, testHoldTTL, mr.TTL(key))

	// the refreshed hold outlives the original deadline
	mr.FastForward(2 * time.Minute)
	assert.True(t, mr.Exists(key))
}

// TestSeatHoldExpiry тестирует освобождение места по истечении TTL
func TestSeatHoldExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewSeatHoldStore(client, testHoldTTL)
	ctx := context.Background()
	key := testHoldKey(t, "S1-12")

	ok, err := store.Hold(ctx, key, "sess-a")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(testHoldTTL + time.Second)
	assert.False(t, mr.Exists(key))

	ok, err = store.Hold(ctx, key, "sess-b")
	require.NoError(t, err)
	assert.True(t, ok)

	owners, err := store.Owners(ctx, []string{key})
	require.NoError(t, err)
	assert.Equal(t, "sess-b", owners[key])
}

// TestSeatHoldExpiredBetweenCommands тестирует повторный SETNX, когда удержание истекло между SETNX и GET
func TestSeatHoldExpiredBetweenCommands(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(mock redismock.ClientMock, key string)
		held   bool
		hasErr bool
	}{
		{
			name: "expired and retaken",
			setup: func(mock redismock.ClientMock, key string) {
				mock.ExpectSetNX(key, "sess-b", testHoldTTL).SetVal(false)
				mock.ExpectGet(key).SetErr(redis.Nil)
				mock.ExpectSetNX(key, "sess-b", testHoldTTL).SetVal(true)
			},
			held: true,
		},
		{
			name: "expired and taken by a third session",
			setup: func(mock redismock.ClientMock, key string) {
				mock.ExpectSetNX(key, "sess-b", testHoldTTL).SetVal(false)
				mock.ExpectGet(key).SetErr(redis.Nil)
				mock.ExpectSetNX(key, "sess-b", testHoldTTL).SetVal(false)
			},
			held: false,
		},
		{
			name: "read failure",
			setup: func(mock redismock.ClientMock, key string) {
				mock.ExpectSetNX(key, "sess-b", testHoldTTL).SetVal(false)
				mock.ExpectGet(key).SetErr(errors.New("i/o timeout"))
			},
			hasErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := redismock.NewClientMock()
			store := NewSeatHoldStore(client, testHoldTTL)
			key := testHoldKey(t, "S1-12")
			tt.setup(mock, key)

			ok, err := store.Hold(context.Background(), key, "sess-b")
			if tt.hasErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.held, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// TestSeatHoldRelease тестирует, что снять удержание может только его владелец
func TestSeatHoldRelease(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewSeatHoldStore(client, testHoldTTL)
	ctx := context.Background()
	key := testHoldKey(t, "S1-12")

	ok, err := store.Hold(ctx, key, "sess-a")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Release(ctx, key, "sess-b"))
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "sess-a", got)

	require.NoError(t, store.Release(ctx, key, "sess-a"))
	assert.False(t, mr.Exists(key))

	// releasing a free seat is a no-op
	require.NoError(t, store.Release(ctx, key, "sess-a"))
}

// TestSeatHoldOwners тестирует чтение владельцев через MGET
func TestSeatHoldOwners(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewSeatHoldStore(client, testHoldTTL)
	ctx := context.Background()

	held := testHoldKey(t, "S1-12")
	other := testHoldKey(t, "S1-13")
	free := testHoldKey(t, "S1-14")

	for key, owner := range map[string]string{held: "sess-a", other: "sess-b"} {
		ok, err := store.Hold(ctx, key, owner)
		require.NoError(t, err)
		require.True(t, ok)
	}

	owners, err := store.Owners(ctx, []string{held, other, free})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{held: "sess-a", other: "sess-b", free: ""}, owners)

	owners, err = store.Owners(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, owners)
}
