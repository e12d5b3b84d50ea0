package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("schedule lock not acquired")
)

// Locker serializes the read-check-write sequence of a booking. Keys are
// built with ProviderKey and ResourceKey; when several keys are passed they
// are taken in order and released in reverse.
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

func ProviderKey(id uuid.UUID) string {
	return fmt.Sprintf("lock:provider:%s", id)
}

func ResourceKey(id uuid.UUID) string {
	return fmt.Sprintf("lock:resource:%s", id)
}

// lockStore is the pair of Redis operations the locker needs.
type lockStore interface {
	SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	// Release deletes key only while it still holds token.
	Release(ctx context.Context, key, token string) error
}

type redisLocker struct {
	store lockStore
	ttl   time.Duration
}

// NewRedisLocker creates a locker backed by one Redis key per schedule owner.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{
		store: redisStore{client: client},
		ttl:   ttl,
	}
}

func (l *redisLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	var held []string
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = l.store.Release(context.WithoutCancel(ctx), held[i], token)
		}
	}()

	for _, key := range keys {
		ok, err := l.store.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if !ok {
			return ErrLockNotAcquired
		}
		held = append(held, key)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

type redisStore struct {
	client *redis.Client
}

func (s redisStore) SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, token, ttl).Result()
}

func (s redisStore) Release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, s.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}
