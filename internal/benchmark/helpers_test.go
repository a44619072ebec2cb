package benchmark

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/user/kvbench/internal/storage"
)

// recordingStore logs every call that reaches the backing MemoryStore.
type recordingStore struct {
	*storage.MemoryStore

	mu        sync.Mutex
	sets      []string
	gets      []string
	multiSets [][]storage.KeyValue
	multiGets [][]string
	clears    int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: storage.NewMemoryStore()}
}

func (rs *recordingStore) Set(ctx context.Context, key, value string) error {
	rs.mu.Lock()
	rs.sets = append(rs.sets, key)
	rs.mu.Unlock()
	return rs.MemoryStore.Set(ctx, key, value)
}

func (rs *recordingStore) Get(ctx context.Context, key string) (string, bool, error) {
	rs.mu.Lock()
	rs.gets = append(rs.gets, key)
	rs.mu.Unlock()
	return rs.MemoryStore.Get(ctx, key)
}

func (rs *recordingStore) MultiSet(ctx context.Context, pairs []storage.KeyValue) error {
	rs.mu.Lock()
	rs.multiSets = append(rs.multiSets, pairs)
	rs.mu.Unlock()
	return rs.MemoryStore.MultiSet(ctx, pairs)
}

func (rs *recordingStore) MultiGet(ctx context.Context, keys []string) ([]storage.KeyValue, error) {
	rs.mu.Lock()
	rs.multiGets = append(rs.multiGets, keys)
	rs.mu.Unlock()
	return rs.MemoryStore.MultiGet(ctx, keys)
}

func (rs *recordingStore) Clear(ctx context.Context) error {
	rs.mu.Lock()
	rs.clears++
	rs.mu.Unlock()
	return rs.MemoryStore.Clear(ctx)
}

// setKeys returns the Set calls excluding the sentinel.
func (rs *recordingStore) setKeys() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var keys []string
	for _, k := range rs.sets {
		if k != SentinelKey {
			keys = append(keys, k)
		}
	}
	return keys
}

func (rs *recordingStore) sentinelWrites() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	n := 0
	for _, k := range rs.sets {
		if k == SentinelKey {
			n++
		}
	}
	return n
}

// stepClock advances by step on every read.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{now: time.Unix(0, 0), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWorkload(keys ...string) Workload {
	w := make(Workload, len(keys))
	for i, k := range keys {
		w[i] = WorkItem{Key: k, Payload: "payload-" + k}
	}
	return w
}
