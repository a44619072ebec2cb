package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore talks to a Redis server. Clear flushes the selected DB only.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(ctx context.Context, config RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	return &RedisStore{client: client}, nil
}

func (rs *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := rs.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr("get", key, err)
	}
	return value, true, nil
}

func (rs *RedisStore) Set(ctx context.Context, key, value string) error {
	return wrapErr("set", key, rs.client.Set(ctx, key, value, 0).Err())
}

func (rs *RedisStore) Clear(ctx context.Context) error {
	return wrapErr("clear", "", rs.client.FlushDB(ctx).Err())
}

func (rs *RedisStore) MultiGet(ctx context.Context, keys []string) ([]KeyValue, error) {
	if len(keys) == 0 {
		return []KeyValue{}, nil
	}

	values, err := rs.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapErr("multiGet", "", err)
	}

	results := make([]KeyValue, len(keys))
	for i, key := range keys {
		results[i] = KeyValue{Key: key}
		if s, ok := values[i].(string); ok {
			results[i].Value = s
			results[i].Found = true
		}
	}
	return results, nil
}

func (rs *RedisStore) MultiSet(ctx context.Context, pairs []KeyValue) error {
	if len(pairs) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(pairs)*2)
	for _, kv := range pairs {
		args = append(args, kv.Key, kv.Value)
	}
	return wrapErr("multiSet", "", rs.client.MSet(ctx, args...).Err())
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
