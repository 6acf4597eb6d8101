// Package lock guards one logical submission against being processed twice
// at the same time.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 30 * time.Second

// ErrHeld is returned when the key is already locked.
var ErrHeld = errors.New("lock already held")

// ReleaseFunc frees a lock taken by Acquire. Calling it twice is harmless.
type ReleaseFunc func(ctx context.Context) error

// Locker hands out short-lived exclusive locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	ttl   time.Duration
	held  map[string]entry
	nowFn func() time.Time
}

type entry struct {
	token   string
	expires time.Time
}

// NewMemoryLocker creates a process-local locker. Locks expire after ttl so a
// crashed holder does not block the key forever.
func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryLocker{ttl: ttl, held: make(map[string]entry), nowFn: time.Now}
}

func (m *MemoryLocker) Acquire(_ context.Context, key string) (ReleaseFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	if e, ok := m.held[key]; ok && now.Before(e.expires) {
		return nil, ErrHeld
	}

	token := uuid.NewString()
	m.held[key] = entry{token: token, expires: now.Add(m.ttl)}

	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if e, ok := m.held[key]; ok && e.token == token {
			delete(m.held, key)
		}
		return nil
	}, nil
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker shares locks between processes through Redis.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLocker creates a locker storing keys as prefix+key.
func NewRedisLocker(client *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	full := r.prefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}

	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, r.client, []string{full}, token).Err()
	}, nil
}
