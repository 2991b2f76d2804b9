package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lockout:"

// RedisStore counts failures in Redis so the lock is shared across
// instances. The window rides on key TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, identifier string, window time.Duration) (int64, error) {
	key := keyPrefix + identifier

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment lockout counter: %w", err)
	}
	return incr.Val(), nil
}

func (s *RedisStore) Count(ctx context.Context, identifier string) (int64, error) {
	count, err := s.client.Get(ctx, keyPrefix+identifier).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read lockout counter: %w", err)
	}
	return count, nil
}

func (s *RedisStore) Clear(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, keyPrefix+identifier).Err(); err != nil {
		return fmt.Errorf("clear lockout counter: %w", err)
	}
	return nil
}
