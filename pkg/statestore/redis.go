package statestore

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-gateway/pkg/redis"
)

// RedisBackend shares session state across gateway replicas.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) (*RedisBackend, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisBackend{client: client}, nil
}

func (r *RedisBackend) Get(ctx context.Context, sessionID, key string) (string, error) {
	v, err := r.client.Get(ctx, r.client.StateKey(sessionID, key))
	if errors.Is(err, redis.ErrNil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *RedisBackend) Set(ctx context.Context, sessionID, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, r.client.StateKey(sessionID, key), value, ttl)
}

func (r *RedisBackend) SetNX(ctx context.Context, sessionID, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.client.StateKey(sessionID, key), value, ttl)
}

func (r *RedisBackend) Del(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.client.StateKey(sessionID, k))
	}
	return r.client.Del(ctx, full...)
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
