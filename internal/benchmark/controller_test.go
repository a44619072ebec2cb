package benchmark

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestController(store *recordingStore, opts ControllerOptions) *Controller {
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	return NewController(store, NewRecorder(), opts)
}

func TestControllerDefaults(t *testing.T) {
	c := newTestController(newRecordingStore(), ControllerOptions{})

	if c.Count() != DefaultCount {
		t.Errorf("Expected default count %d, got %d", DefaultCount, c.Count())
	}
	if c.StrategyKind() != StrategySequential {
		t.Errorf("Expected sequential strategy, got %s", c.StrategyKind())
	}
	if c.HasData() {
		t.Error("HasData should be false before Init")
	}
	for _, a := range Actions {
		if s := c.State(a); s.Status != StatusIdle || s.Loading() {
			t.Errorf("Expected %s to start idle, got %s", a, s.Status)
		}
	}
}

func TestControllerInitProbesSentinel(t *testing.T) {
	ctx := context.Background()

	empty := newTestController(newRecordingStore(), ControllerOptions{})
	if err := empty.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if empty.HasData() {
		t.Error("Empty store reported data")
	}

	filled := newRecordingStore()
	filled.Set(ctx, SentinelKey, SentinelValue)
	c := newTestController(filled, ControllerOptions{})
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !c.HasData() {
		t.Error("Expected HasData after finding the sentinel")
	}
}

func TestControllerWriteReadReset(t *testing.T) {
	store := newRecordingStore()
	c := newTestController(store, ControllerOptions{Count: 25})
	ctx := context.Background()

	if err := c.ExecuteWrite(ctx); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !c.HasData() {
		t.Error("Expected HasData after a successful write")
	}
	if s := c.State(ActionWrite); s.Status != StatusSucceeded || s.Count != 25 || s.RunID == "" {
		t.Errorf("Unexpected write state: %+v", s)
	}
	if len(store.setKeys()) != 25 {
		t.Errorf("Expected 25 writes, got %d", len(store.setKeys()))
	}

	if err := c.ExecuteRead(ctx); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	summaries := c.Summaries()
	if _, ok := summaries[MetricReadItem]; !ok {
		t.Error("Expected readItem in the summaries")
	}

	if err := c.ExecuteReset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if c.HasData() {
		t.Error("HasData should be false after reset")
	}
	if n := len(c.Metrics()); n != 0 {
		t.Errorf("Expected metrics cleared by reset, got %d buckets", n)
	}
	if store.Len() != 0 {
		t.Errorf("Expected an empty store, got %d keys", store.Len())
	}
	if store.clears != 1 {
		t.Errorf("Expected 1 clear, got %d", store.clears)
	}
}

func TestControllerWriteFailure(t *testing.T) {
	store := newRecordingStore()
	store.Fault = func(op, key string) error {
		if op == "set" && key == DefaultKeyPrefix+"3" {
			return errors.New("rejected")
		}
		return nil
	}
	c := newTestController(store, ControllerOptions{Count: 10})

	err := c.ExecuteWrite(context.Background())
	if err == nil {
		t.Fatal("Expected the write to fail")
	}

	s := c.State(ActionWrite)
	if s.Status != StatusFailed || s.Err == nil || s.Error == "" {
		t.Errorf("Expected a failed write state, got %+v", s)
	}
	if c.HasData() {
		t.Error("A failed write must not set HasData")
	}

	keys := store.setKeys()
	if last := keys[len(keys)-1]; last != DefaultKeyPrefix+"3" {
		t.Errorf("Expected writes to stop at the failing key, last was %s", last)
	}
}

func TestControllerInvalidCount(t *testing.T) {
	store := newRecordingStore()
	c := newTestController(store, ControllerOptions{})

	err := c.ExecuteWriteN(context.Background(), 0)
	if !errors.Is(err, ErrInvalidWorkloadSize) {
		t.Fatalf("Expected ErrInvalidWorkloadSize, got %v", err)
	}
	if s := c.State(ActionWrite); s.Status != StatusFailed {
		t.Errorf("Expected write to be failed, got %s", s.Status)
	}
	if len(store.sets) != 0 {
		t.Error("Invalid count reached the store")
	}

	if err := c.ExecuteReadN(context.Background(), -5); !errors.Is(err, ErrInvalidWorkloadSize) {
		t.Errorf("Expected ErrInvalidWorkloadSize for read, got %v", err)
	}
}

func TestControllerResetFailureKeepsState(t *testing.T) {
	store := newRecordingStore()
	c := newTestController(store, ControllerOptions{Count: 5})
	ctx := context.Background()

	if err := c.ExecuteWrite(ctx); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	store.Fault = func(op, key string) error {
		if op == "clear" {
			return errors.New("clear refused")
		}
		return nil
	}
	if err := c.ExecuteReset(ctx); err == nil {
		t.Fatal("Expected reset to fail")
	}

	if s := c.State(ActionReset); s.Status != StatusFailed {
		t.Errorf("Expected reset to be failed, got %s", s.Status)
	}
	if !c.HasData() {
		t.Error("Failed reset must leave HasData unchanged")
	}
	if len(c.Metrics()) == 0 {
		t.Error("Failed reset must leave metrics unchanged")
	}
}

func TestControllerRejectsConcurrentActions(t *testing.T) {
	store := newRecordingStore()
	release := make(chan struct{})
	store.Latency = func(op, key string) time.Duration {
		if op == "set" {
			<-release
		}
		return 0
	}
	c := newTestController(store, ControllerOptions{Count: 3})
	ctx := context.Background()

	runID, done, err := c.Start(ctx, ActionWrite)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if runID == "" {
		t.Error("Expected a run ID")
	}

	if !c.AnyLoading() || !c.State(ActionWrite).Loading() {
		t.Error("Expected the write to be loading")
	}
	if _, _, err := c.Start(ctx, ActionWrite); !errors.Is(err, ErrActionRunning) {
		t.Errorf("Expected ErrActionRunning, got %v", err)
	}
	if err := c.ExecuteRead(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	if s := c.State(ActionRead); s.Status != StatusIdle {
		t.Errorf("Rejected read should stay idle, got %s", s.Status)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	s := c.State(ActionWrite)
	if s.Status != StatusSucceeded || s.RunID != runID {
		t.Errorf("Unexpected final state: %+v", s)
	}
	if c.AnyLoading() {
		t.Error("Nothing should be loading after the write settles")
	}
}

func TestControllerSettings(t *testing.T) {
	c := newTestController(newRecordingStore(), ControllerOptions{})

	if err := c.SetCount(50); err != nil || c.Count() != 50 {
		t.Errorf("SetCount(50) = %v, count %d", err, c.Count())
	}
	if err := c.SetCount(0); !errors.Is(err, ErrInvalidWorkloadSize) {
		t.Errorf("Expected ErrInvalidWorkloadSize, got %v", err)
	}
	if c.Count() != 50 {
		t.Errorf("Rejected count changed the setting to %d", c.Count())
	}

	if err := c.SetStrategy(StrategyParallel); err != nil || c.StrategyKind() != StrategyParallel {
		t.Errorf("SetStrategy(parallel) = %v, strategy %s", err, c.StrategyKind())
	}
	if err := c.SetStrategy("random"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("Expected ErrUnknownStrategy, got %v", err)
	}
}

func TestControllerStrategyIsUsed(t *testing.T) {
	store := newRecordingStore()
	c := newTestController(store, ControllerOptions{Count: 40, Strategy: StrategyBatched})
	ctx := context.Background()

	if err := c.ExecuteWrite(ctx); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(store.multiSets) != 1 {
		t.Errorf("Expected 1 multiSet, got %d", len(store.multiSets))
	}
	if s := c.State(ActionWrite); s.Strategy != StrategyBatched {
		t.Errorf("Expected state to record batched, got %s", s.Strategy)
	}
}

func TestControllerPresenceSubscription(t *testing.T) {
	c := newTestController(newRecordingStore(), ControllerOptions{Count: 2})
	ch, cancel := c.Presence().Subscribe()
	defer cancel()
	ctx := context.Background()

	if err := c.ExecuteWrite(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-ch:
		if !v {
			t.Error("Expected presence true after write")
		}
	case <-time.After(time.Second):
		t.Fatal("No presence change after write")
	}

	if err := c.ExecuteReset(ctx); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-ch:
		if v {
			t.Error("Expected presence false after reset")
		}
	case <-time.After(time.Second):
		t.Fatal("No presence change after reset")
	}
}

func TestControllerWatch(t *testing.T) {
	c := newTestController(newRecordingStore(), ControllerOptions{Count: 2})
	ch, cancel := c.Watch()

	if err := c.ExecuteWrite(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("Watch saw no change")
	}

	cancel()
	cancel()
	for range ch {
	}
}

func TestControllerPrintInfo(t *testing.T) {
	var buf bytes.Buffer
	c := newTestController(newRecordingStore(), ControllerOptions{
		Count:  3,
		Logger: slog.New(slog.NewTextHandler(&buf, nil)),
	})

	if err := c.ExecuteWrite(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.PrintInfo()

	if !strings.Contains(buf.String(), "name=writeItem") {
		t.Errorf("Expected writeItem in the dump, got %q", buf.String())
	}
	if n := len(c.Metrics()); n != 0 {
		t.Errorf("Expected metrics reset after PrintInfo, got %d buckets", n)
	}
	if !c.HasData() {
		t.Error("PrintInfo must not touch the presence flag")
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		if got, err := ParseAction(string(a)); err != nil || got != a {
			t.Errorf("ParseAction(%s) = %s, %v", a, got, err)
		}
	}
	if _, err := ParseAction("delete"); err == nil {
		t.Error("Expected error for unknown action")
	}
}

func TestControllerWatchProgress(t *testing.T) {
	c := newTestController(newRecordingStore(), ControllerOptions{Count: 10})
	ticks, cancel := c.WatchProgress()
	defer cancel()

	runID, done, err := c.StartN(context.Background(), ActionWrite, 8)
	if err != nil {
		t.Fatalf("StartN failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	select {
	case u := <-ticks:
		if u.Action != ActionWrite || u.RunID != runID || u.Total != 8 {
			t.Errorf("Unexpected progress tick: %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatal("No progress tick after write")
	}

	if s := c.State(ActionWrite); s.Count != 8 {
		t.Errorf("Expected the explicit count to be used, got %d", s.Count)
	}
}
