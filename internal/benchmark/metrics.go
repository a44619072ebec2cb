package benchmark

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Bucket accumulates the timings of one named operation. All durations are
// in milliseconds.
type Bucket struct {
	Calls    []float64 `json:"calls"`
	Total    float64   `json:"total"`
	Max      float64   `json:"max"`
	Min      float64   `json:"min"`
	Avg      float64   `json:"avg"`
	Failures int       `json:"failures"`
}

func (b *Bucket) add(ms float64, failed bool) {
	b.Calls = append(b.Calls, ms)
	b.Total += ms
	if len(b.Calls) == 1 || ms > b.Max {
		b.Max = ms
	}
	if len(b.Calls) == 1 || ms < b.Min {
		b.Min = ms
	}
	b.Avg = b.Total / float64(len(b.Calls))
	if failed {
		b.Failures++
	}
}

func (b *Bucket) clone() Bucket {
	c := *b
	c.Calls = append([]float64(nil), b.Calls...)
	return c
}

// Observer receives every call the Recorder keeps.
type Observer interface {
	ObserveCall(name string, ms float64, err error)
}

type RecorderOption func(*Recorder)

func WithObserver(o Observer) RecorderOption {
	return func(r *Recorder) { r.observer = o }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// Recorder times operations into named buckets. It is safe for
// concurrent use.
type Recorder struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
	// generation is bumped by Reset; calls started in an older generation
	// are dropped when they complete.
	generation uint64

	now      func() time.Time
	observer Observer
}

func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		buckets: make(map[string]*Bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Measure runs fn and records its duration under name whether it succeeds
// or fails. fn's error is returned untouched.
func (r *Recorder) Measure(ctx context.Context, name string, fn func(context.Context) error) error {
	r.mu.Lock()
	generation := r.generation
	r.mu.Unlock()

	start := r.now()
	err := fn(ctx)
	ms := float64(r.now().Sub(start)) / float64(time.Millisecond)

	r.record(generation, name, ms, err)
	return err
}

func (r *Recorder) record(generation uint64, name string, ms float64, err error) {
	r.mu.Lock()
	if generation != r.generation {
		r.mu.Unlock()
		return
	}

	bucket, exists := r.buckets[name]
	if !exists {
		bucket = &Bucket{}
		r.buckets[name] = bucket
	}
	bucket.add(ms, err != nil)
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.ObserveCall(name, ms, err)
	}
}

// Wrap decorates fn so every invocation is measured under name.
func Wrap[A, R any](r *Recorder, name string, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	return func(ctx context.Context, arg A) (R, error) {
		var result R
		err := r.Measure(ctx, name, func(ctx context.Context) error {
			var err error
			result, err = fn(ctx, arg)
			return err
		})
		return result, err
	}
}

// Metrics returns a copy of every bucket.
func (r *Recorder) Metrics() map[string]Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]Bucket, len(r.buckets))
	for name, bucket := range r.buckets {
		snapshot[name] = bucket.clone()
	}
	return snapshot
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.buckets = make(map[string]*Bucket)
	r.generation++
	r.mu.Unlock()
}

// PrintMetrics dumps every bucket to logger, sorted by name.
func (r *Recorder) PrintMetrics(logger *slog.Logger) {
	snapshot := r.Metrics()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		b := snapshot[name]
		logger.Info("metric",
			slog.String("name", name),
			slog.Int("calls", len(b.Calls)),
			slog.Float64("total_ms", b.Total),
			slog.Float64("max_ms", b.Max),
			slog.Float64("min_ms", b.Min),
			slog.Float64("avg_ms", b.Avg),
			slog.Int("failures", b.Failures),
		)
	}
	if len(names) == 0 {
		logger.Info("no metrics recorded")
	}
}
