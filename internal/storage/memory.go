package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps everything in a map. Latency and Fault let tests
// shape how individual calls behave.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string

	// Latency, when set, returns how long a call for op/key should block.
	Latency func(op, key string) time.Duration
	// Fault, when set, returns an error to fail the call for op/key.
	Fault func(op, key string) error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]string),
	}
}

func (ms *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ms.before(ctx, "get", key); err != nil {
		return "", false, wrapErr("get", key, err)
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	value, exists := ms.items[key]
	return value, exists, nil
}

func (ms *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ms.before(ctx, "set", key); err != nil {
		return wrapErr("set", key, err)
	}

	ms.mu.Lock()
	ms.items[key] = value
	ms.mu.Unlock()
	return nil
}

func (ms *MemoryStore) Clear(ctx context.Context) error {
	if err := ms.before(ctx, "clear", ""); err != nil {
		return wrapErr("clear", "", err)
	}

	ms.mu.Lock()
	ms.items = make(map[string]string)
	ms.mu.Unlock()
	return nil
}

func (ms *MemoryStore) MultiGet(ctx context.Context, keys []string) ([]KeyValue, error) {
	if err := ms.before(ctx, "multiGet", ""); err != nil {
		return nil, wrapErr("multiGet", "", err)
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	results := make([]KeyValue, len(keys))
	for i, key := range keys {
		value, exists := ms.items[key]
		results[i] = KeyValue{Key: key, Value: value, Found: exists}
	}
	return results, nil
}

func (ms *MemoryStore) MultiSet(ctx context.Context, pairs []KeyValue) error {
	if err := ms.before(ctx, "multiSet", ""); err != nil {
		return wrapErr("multiSet", "", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, kv := range pairs {
		ms.items[kv.Key] = kv.Value
	}
	return nil
}

func (ms *MemoryStore) Close() error {
	return nil
}

// Len reports the number of stored keys.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.items)
}

func (ms *MemoryStore) before(ctx context.Context, op, key string) error {
	if ms.Latency != nil {
		if d := ms.Latency(op, key); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
	if ms.Fault != nil {
		return ms.Fault(op, key)
	}
	return nil
}
