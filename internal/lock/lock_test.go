package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker(time.Minute)

	release, err := l.Acquire(ctx, "submit:abc")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "submit:abc")
	assert.ErrorIs(t, err, ErrHeld)

	_, err = l.Acquire(ctx, "submit:other")
	assert.NoError(t, err)

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx))

	_, err = l.Acquire(ctx, "submit:abc")
	assert.NoError(t, err)
}

func TestMemoryLockerExpires(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker(time.Second)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	l.nowFn = func() time.Time { return now }

	stale, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = l.Acquire(ctx, "k")
	require.NoError(t, err)

	// The expired holder must not free the new holder's lock.
	require.NoError(t, stale(ctx))
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, ErrHeld)
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client, "slotbook:lock:", 30*time.Second)

	release, err := l.Acquire(ctx, "submit:abc")
	require.NoError(t, err)
	assert.True(t, mr.Exists("slotbook:lock:submit:abc"))

	_, err = l.Acquire(ctx, "submit:abc")
	assert.ErrorIs(t, err, ErrHeld)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("slotbook:lock:submit:abc"))

	_, err = l.Acquire(ctx, "submit:abc")
	assert.NoError(t, err)
}

func TestRedisLockerTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client, "", 5*time.Second)
	stale, err := l.Acquire(ctx, "k")
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)

	_, err = l.Acquire(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("k"))
}
