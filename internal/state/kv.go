// Package state mirrors dashboard cards into Redis for external readers.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when a key does not exist
var ErrCacheMiss = errors.New("cache miss")

// KVStore is the key-value surface the mirror writes through. Tests swap
// Redis out behind it.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RedisKVStore is a KVStore backed by go-redis
type RedisKVStore struct {
	client *redis.Client
}

// NewRedisKVStore wraps client
func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

// Dial connects to addr and checks the server answers.
func Dial(ctx context.Context, addr, password string, db int) (*RedisKVStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisKVStore(client), nil
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Ping checks the connection
func (r *RedisKVStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisKVStore) Close() error {
	return r.client.Close()
}
