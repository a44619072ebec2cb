package storage

import (
	"context"
	"fmt"
)

const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

type Config struct {
	Backend string
	Badger  BadgerConfig
	Redis   RedisConfig
}

// Open creates the backend named by config.Backend.
func Open(ctx context.Context, config Config) (Store, error) {
	switch config.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendBadger:
		return NewBadgerStore(config.Badger)
	case BackendRedis:
		return NewRedisStore(ctx, config.Redis)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, config.Backend)
	}
}
