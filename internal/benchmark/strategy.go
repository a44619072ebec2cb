package benchmark

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/user/kvbench/internal/storage"
)

// Metric names recorded by the strategies.
const (
	MetricWriteItem          = "writeItem"
	MetricReadItem           = "readItem"
	MetricWriteItems         = "writeItems"
	MetricReadItems          = "readItems"
	MetricMultiSet           = "multiSet"
	MetricMultiGet           = "multiGet"
	MetricWriteItemsParallel = "writeItemsParallel"
	MetricReadItemsParallel  = "readItemsParallel"
	MetricMarkFilled         = "markFilled"
)

// ProgressFunc is told how many items of a run have settled.
type ProgressFunc func(done, total int)

// Strategy drives a workload against storage under one concurrency policy.
type Strategy interface {
	Name() StrategyKind
	Write(ctx context.Context, w Workload) error
	Read(ctx context.Context, w Workload) error
}

type StrategyDeps struct {
	Store    storage.Store
	Recorder *Recorder
	// MaxInFlight bounds the parallel strategy; zero means unbounded.
	MaxInFlight int
	Progress    ProgressFunc
}

func NewStrategy(kind StrategyKind, deps StrategyDeps) (Strategy, error) {
	b := newBase(deps)
	switch kind {
	case StrategySequential:
		return &Sequential{base: b}, nil
	case StrategyBatched:
		return &Batched{base: b}, nil
	case StrategyParallel:
		return &Parallel{base: b, maxInFlight: deps.MaxInFlight}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, kind)
	}
}

// base holds the measured storage calls shared by every strategy.
type base struct {
	store    storage.Store
	recorder *Recorder
	progress ProgressFunc

	setItem func(context.Context, WorkItem) (struct{}, error)
	getItem func(context.Context, string) (storage.KeyValue, error)
}

func newBase(deps StrategyDeps) base {
	store := deps.Store
	return base{
		store:    store,
		recorder: deps.Recorder,
		progress: deps.Progress,
		setItem: Wrap(deps.Recorder, MetricWriteItem, func(ctx context.Context, item WorkItem) (struct{}, error) {
			return struct{}{}, store.Set(ctx, item.Key, item.Payload)
		}),
		getItem: Wrap(deps.Recorder, MetricReadItem, func(ctx context.Context, key string) (storage.KeyValue, error) {
			value, found, err := store.Get(ctx, key)
			return storage.KeyValue{Key: key, Value: value, Found: found}, err
		}),
	}
}

// markFilled persists the sentinel once per successful write run.
func (b *base) markFilled(ctx context.Context) error {
	return b.recorder.Measure(ctx, MetricMarkFilled, func(ctx context.Context) error {
		return b.store.Set(ctx, SentinelKey, SentinelValue)
	})
}

func (b *base) report(done, total int) {
	if b.progress != nil {
		b.progress(done, total)
	}
}

// Sequential awaits each call before issuing the next and stops at the
// first failure.
type Sequential struct {
	base
}

func (s *Sequential) Name() StrategyKind { return StrategySequential }

func (s *Sequential) Write(ctx context.Context, w Workload) error {
	if len(w) == 0 {
		return nil
	}

	err := s.recorder.Measure(ctx, MetricWriteItems, func(ctx context.Context) error {
		for i, item := range w {
			if _, err := s.setItem(ctx, item); err != nil {
				return fmt.Errorf("write item %d of %d: %w", i+1, len(w), err)
			}
			s.report(i+1, len(w))
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.markFilled(ctx)
}

func (s *Sequential) Read(ctx context.Context, w Workload) error {
	if len(w) == 0 {
		return nil
	}

	return s.recorder.Measure(ctx, MetricReadItems, func(ctx context.Context) error {
		for i, item := range w {
			if _, err := s.getItem(ctx, item.Key); err != nil {
				return fmt.Errorf("read item %d of %d: %w", i+1, len(w), err)
			}
			s.report(i+1, len(w))
		}
		return nil
	})
}

// Batched hands the whole workload to the backend's multi-key primitive in
// a single call.
type Batched struct {
	base
}

func (b *Batched) Name() StrategyKind { return StrategyBatched }

func (b *Batched) Write(ctx context.Context, w Workload) error {
	if len(w) == 0 {
		return nil
	}

	pairs := make([]storage.KeyValue, len(w))
	for i, item := range w {
		pairs[i] = storage.KeyValue{Key: item.Key, Value: item.Payload}
	}

	err := b.recorder.Measure(ctx, MetricMultiSet, func(ctx context.Context) error {
		return b.store.MultiSet(ctx, pairs)
	})
	if err != nil {
		return err
	}
	b.report(len(w), len(w))
	return b.markFilled(ctx)
}

func (b *Batched) Read(ctx context.Context, w Workload) error {
	if len(w) == 0 {
		return nil
	}

	keys := w.Keys()
	err := b.recorder.Measure(ctx, MetricMultiGet, func(ctx context.Context) error {
		_, err := b.store.MultiGet(ctx, keys)
		return err
	})
	if err != nil {
		return err
	}
	b.report(len(w), len(w))
	return nil
}

// Parallel issues every call at once (or up to maxInFlight at a time) and
// waits for all of them to settle. Every failure is collected into an
// AggregateError.
type Parallel struct {
	base
	maxInFlight int
}

func (p *Parallel) Name() StrategyKind { return StrategyParallel }

func (p *Parallel) Write(ctx context.Context, w Workload) error {
	if len(w) == 0 {
		return nil
	}

	err := p.recorder.Measure(ctx, MetricWriteItemsParallel, func(ctx context.Context) error {
		return p.fanOut(ctx, len(w), func(ctx context.Context, i int) error {
			_, err := p.setItem(ctx, w[i])
			return err
		})
	})
	if err != nil {
		return err
	}
	return p.markFilled(ctx)
}

func (p *Parallel) Read(ctx context.Context, w Workload) error {
	if len(w) == 0 {
		return nil
	}

	return p.recorder.Measure(ctx, MetricReadItemsParallel, func(ctx context.Context) error {
		return p.fanOut(ctx, len(w), func(ctx context.Context, i int) error {
			_, err := p.getItem(ctx, w[i].Key)
			return err
		})
	})
}

func (p *Parallel) fanOut(ctx context.Context, n int, call func(context.Context, int) error) error {
	var g errgroup.Group
	if p.maxInFlight > 0 {
		g.SetLimit(p.maxInFlight)
	}

	errs := make([]error, n)
	var mu sync.Mutex
	done := 0

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			errs[i] = call(ctx, i)

			mu.Lock()
			done++
			p.report(done, n)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return collectFailures(errs)
}

// AggregateError holds every failure of a parallel run in issuance order.
type AggregateError struct {
	Errors []error
	Total  int
}

func (e *AggregateError) Error() string {
	msgs := make([]string, 0, 3)
	for i, err := range e.Errors {
		if i == 3 {
			msgs = append(msgs, "...")
			break
		}
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d of %d operations failed: %s", len(e.Errors), e.Total, strings.Join(msgs, "; "))
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

func collectFailures(errs []error) error {
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &AggregateError{Errors: failed, Total: len(errs)}
}
