package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for a Redis-backed store.
type RedisConfig struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// RedisStore implements Store on top of a Redis server, relying on native
// key expiry for TTL handling.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// ConnectRedis establishes a Redis connection with retries and returns a
// store backed by it.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseConnString, err)
	}

	for i := 0; i < max(cfg.RetryAttempts, 1); i++ {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return NewRedisStore(client), nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}

	return nil, ErrRedisNotReady
}

// Set stores a value under the given key using Redis native expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves the value for a key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes a single key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return s.client.Del(ctx, key).Err()
}

// DeletePrefix removes every key that starts with the given prefix.
// Uses SCAN rather than KEYS to avoid blocking the server on large keyspaces.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// List returns all entries whose key starts with the given prefix.
func (s *RedisStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)

	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// Key expired between scan and read.
			continue
		}
		if err != nil {
			return nil, err
		}
		out[key] = data
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
