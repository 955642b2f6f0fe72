package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "voxnote:"

// RedisKV keeps the two slots as Redis strings, for installs that already
// run a Redis and want the data off the local disk.
type RedisKV struct {
	rc *redis.Client
}

// NewRedisKV connects to the given address.
func NewRedisKV(addr string) *RedisKV {
	return &RedisKV{rc: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewRedisKVFromClient wraps an existing client (tests use miniredis).
func NewRedisKVFromClient(rc *redis.Client) *RedisKV {
	return &RedisKV{rc: rc}
}

// Ping verifies the connection at startup.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.rc.Ping(ctx).Err()
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.rc.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rc.Set(ctx, redisKeyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisKV) Close() error {
	return r.rc.Close()
}
