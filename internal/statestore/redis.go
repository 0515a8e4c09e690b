package statestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore implements StateStore on top of a shared *redis.Client,
// namespacing keys as "{room_id}/{key}" (spec §6.5).
type RedisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore wraps an existing Redis client.
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (r *RedisStateStore) Get(ctx context.Context, roomID, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, namespacedKey(roomID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("statestore: get %s/%s: %w", roomID, key, err)
	}
	return data, true, nil
}

func (r *RedisStateStore) Set(ctx context.Context, roomID, key string, data []byte) error {
	if err := r.client.Set(ctx, namespacedKey(roomID, key), data, 0).Err(); err != nil {
		return fmt.Errorf("statestore: set %s/%s: %w", roomID, key, err)
	}
	return nil
}

func (r *RedisStateStore) Delete(ctx context.Context, roomID, key string) error {
	if err := r.client.Del(ctx, namespacedKey(roomID, key)).Err(); err != nil {
		return fmt.Errorf("statestore: delete %s/%s: %w", roomID, key, err)
	}
	return nil
}
