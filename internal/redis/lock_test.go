package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotKey(t *testing.T) {
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "lock:slot:3:2:2025-03-10:14:30:00", SlotKey(3, 2, date, "14:30:00"))
}

func TestNoopLocker_RunsFn(t *testing.T) {
	called := false
	err := NoopLocker{}.WithSlotLock(context.Background(), "k", func(context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestNoopLocker_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := NoopLocker{}.WithSlotLock(context.Background(), "k", func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRedisSlotLocker_UnreachableStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisSlotLocker(client, time.Second)

	called := false
	err := locker.WithSlotLock(context.Background(), "lock:slot:1:2:2025-06-02:10:00:00", func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
}
