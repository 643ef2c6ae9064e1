package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore shares a session between processes and hosts. Every key is
// namespaced with prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromURL parses a redis:// URL and pings the server.
func NewRedisStoreFromURL(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "NewRedisStoreFromURL parse")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "NewRedisStoreFromURL ping")
	}
	return NewRedisStore(client, prefix), nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "RedisStore get")
	}
	return v, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return errors.Wrap(r.client.Set(ctx, r.prefix+key, value, 0).Err(), "RedisStore set")
}

func (r *RedisStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.prefix + k
	}
	return errors.Wrap(r.client.Del(ctx, prefixed...).Err(), "RedisStore remove")
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
