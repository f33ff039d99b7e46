package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockers(t *testing.T) map[string]Locker {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]Locker{
		"memory": NewMemoryLocker(),
		"redis":  NewRedisLocker(client, zerolog.Nop()),
	}
}

func TestTryAcquireIsExclusive(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			release, ok, err := l.TryAcquire(ctx, "evt_1", time.Minute)
			require.NoError(t, err)
			require.True(t, ok)

			_, ok, err = l.TryAcquire(ctx, "evt_1", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok, "second acquire must fail while held")

			other, ok, err := l.TryAcquire(ctx, "evt_2", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "different keys do not contend")
			other()

			release()
			release()

			again, ok, err := l.TryAcquire(ctx, "evt_1", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
			again()
		})
	}
}

func TestMemoryLockerExpires(t *testing.T) {
	l := NewMemoryLocker()
	now := time.Now()
	l.now = func() time.Time { return now }

	stale, ok, err := l.TryAcquire(context.Background(), "evt_1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	fresh, ok, err := l.TryAcquire(context.Background(), "evt_1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// The expired holder must not release the new holder's lock.
	stale()
	_, ok, err = l.TryAcquire(context.Background(), "evt_1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	fresh()
}

func TestRedisLockerExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	l := NewRedisLocker(client, zerolog.Nop())
	ctx := context.Background()

	stale, ok, err := l.TryAcquire(ctx, "evt_1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	fresh, ok, err := l.TryAcquire(ctx, "evt_1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	stale()
	assert.True(t, mr.Exists(keyPrefix+"evt_1"), "stale release must not delete the new holder's key")
	fresh()
	assert.False(t, mr.Exists(keyPrefix+"evt_1"))
}

func TestRedisLockerError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	l := NewRedisLocker(client, zerolog.Nop())
	mr.Close()

	_, ok, err := l.TryAcquire(context.Background(), "evt_1", time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
}
