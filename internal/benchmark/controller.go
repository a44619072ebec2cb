package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/kvbench/internal/storage"
)

type Action string

const (
	ActionReset Action = "reset"
	ActionWrite Action = "write"
	ActionRead  Action = "read"
)

var Actions = []Action{ActionReset, ActionWrite, ActionRead}

func ParseAction(name string) (Action, error) {
	for _, a := range Actions {
		if string(a) == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action: %s", name)
}

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ActionState is the async-action view of one action: loading, the last
// error and when it ran.
type ActionState struct {
	Action      Action       `json:"action"`
	Status      Status       `json:"status"`
	RunID       string       `json:"run_id,omitempty"`
	Count       int          `json:"count,omitempty"`
	Strategy    StrategyKind `json:"strategy,omitempty"`
	Err         error        `json:"-"`
	Error       string       `json:"error,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

func (s ActionState) Loading() bool {
	return s.Status == StatusRunning
}

// ProgressUpdate is one progress tick of a running action.
type ProgressUpdate struct {
	Action     Action  `json:"action"`
	RunID      string  `json:"run_id,omitempty"`
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Rate       float64 `json:"rate"`
}

// NewProgressUpdate fills in the derived fields for a tick that happened
// elapsed after the run started.
func NewProgressUpdate(action Action, runID string, done, total int, elapsed time.Duration) ProgressUpdate {
	u := ProgressUpdate{Action: action, RunID: runID, Current: done, Total: total}
	if total > 0 {
		u.Percentage = float64(done) / float64(total) * 100
	}
	if elapsed > 0 {
		u.Rate = float64(done) / elapsed.Seconds()
	}
	return u
}

type ControllerOptions struct {
	Count       int
	Strategy    StrategyKind
	Generator   *Generator
	MaxInFlight int
	Logger      *slog.Logger
	Progress    ProgressFunc
}

// Controller runs the reset, write and read actions against one store and
// owns the presence flag. Only one action runs at a time.
type Controller struct {
	store       storage.Store
	recorder    *Recorder
	generator   *Generator
	logger      *slog.Logger
	progress    ProgressFunc
	maxInFlight int

	presence Presence
	changes  broadcaster[struct{}]
	ticks    broadcaster[ProgressUpdate]

	mu       sync.Mutex
	count    int
	strategy StrategyKind
	states   map[Action]*ActionState
}

func NewController(store storage.Store, recorder *Recorder, opts ControllerOptions) *Controller {
	if opts.Count <= 0 {
		opts.Count = DefaultCount
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategySequential
	}
	if opts.Generator == nil {
		opts.Generator = NewGenerator(GeneratorOptions{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Controller{
		store:       store,
		recorder:    recorder,
		generator:   opts.Generator,
		logger:      opts.Logger,
		progress:    opts.Progress,
		maxInFlight: opts.MaxInFlight,
		count:       opts.Count,
		strategy:    opts.Strategy,
		states:      make(map[Action]*ActionState, len(Actions)),
	}
	for _, a := range Actions {
		c.states[a] = &ActionState{Action: a, Status: StatusIdle}
	}
	return c
}

// Init probes the sentinel key. HasData reports false until it returns.
func (c *Controller) Init(ctx context.Context) error {
	_, found, err := c.store.Get(ctx, SentinelKey)
	if err != nil {
		return fmt.Errorf("failed to probe %s: %w", SentinelKey, err)
	}
	c.setPresence(found)
	return nil
}

func (c *Controller) ExecuteReset(ctx context.Context) error {
	return c.execute(ctx, ActionReset, 0)
}

func (c *Controller) ExecuteWrite(ctx context.Context) error {
	return c.execute(ctx, ActionWrite, c.Count())
}

func (c *Controller) ExecuteRead(ctx context.Context) error {
	return c.execute(ctx, ActionRead, c.Count())
}

func (c *Controller) ExecuteWriteN(ctx context.Context, count int) error {
	return c.execute(ctx, ActionWrite, count)
}

func (c *Controller) ExecuteReadN(ctx context.Context, count int) error {
	return c.execute(ctx, ActionRead, count)
}

// Start launches action in the background using the configured count. The
// returned channel yields the action's result once. ctx must outlive the
// run.
func (c *Controller) Start(ctx context.Context, action Action) (string, <-chan error, error) {
	count := 0
	if action != ActionReset {
		count = c.Count()
	}
	return c.StartN(ctx, action, count)
}

// StartN is Start with an explicit count. Reset ignores count.
func (c *Controller) StartN(ctx context.Context, action Action, count int) (string, <-chan error, error) {
	run, err := c.begin(action, count)
	if err != nil {
		return "", nil, err
	}

	done := make(chan error, 1)
	go func() {
		err := c.perform(ctx, run)
		c.finish(run, err)
		done <- err
		close(done)
	}()
	return run.RunID, done, nil
}

func (c *Controller) execute(ctx context.Context, action Action, count int) error {
	run, err := c.begin(action, count)
	if err != nil {
		return err
	}

	err = c.perform(ctx, run)
	c.finish(run, err)
	return err
}

// begin moves action to Running. Invalid counts fail the action right away.
func (c *Controller) begin(action Action, count int) (ActionState, error) {
	c.mu.Lock()

	state, ok := c.states[action]
	if !ok {
		c.mu.Unlock()
		return ActionState{}, fmt.Errorf("unknown action: %s", action)
	}
	if state.Loading() {
		c.mu.Unlock()
		return ActionState{}, fmt.Errorf("%w: %s", ErrActionRunning, action)
	}
	for other, s := range c.states {
		if other != action && s.Loading() {
			c.mu.Unlock()
			return ActionState{}, fmt.Errorf("%w: %s is running", ErrBusy, other)
		}
	}

	now := time.Now()
	*state = ActionState{
		Action:    action,
		Status:    StatusRunning,
		RunID:     uuid.New().String(),
		StartedAt: &now,
	}
	if action != ActionReset {
		state.Count = count
		state.Strategy = c.strategy
	}
	run := *state
	c.mu.Unlock()

	c.changes.publish(struct{}{})

	if action != ActionReset {
		if err := validateCount(count); err != nil {
			c.finish(run, err)
			return ActionState{}, err
		}
	}

	c.logger.Info("action started",
		slog.String("action", string(action)),
		slog.String("run_id", run.RunID),
		slog.Int("count", run.Count),
		slog.String("strategy", string(run.Strategy)),
	)
	return run, nil
}

func (c *Controller) finish(run ActionState, err error) {
	now := time.Now()

	c.mu.Lock()
	state := c.states[run.Action]
	if state.RunID == run.RunID {
		state.CompletedAt = &now
		if err != nil {
			state.Status = StatusFailed
			state.Err = err
			state.Error = err.Error()
		} else {
			state.Status = StatusSucceeded
		}
	}
	c.mu.Unlock()

	elapsed := now.Sub(*run.StartedAt)
	if err != nil {
		c.logger.Error("action failed",
			slog.String("action", string(run.Action)),
			slog.String("run_id", run.RunID),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
	} else {
		c.logger.Info("action completed",
			slog.String("action", string(run.Action)),
			slog.String("run_id", run.RunID),
			slog.Duration("elapsed", elapsed),
		)
	}

	c.changes.publish(struct{}{})
}

func (c *Controller) perform(ctx context.Context, run ActionState) error {
	switch run.Action {
	case ActionReset:
		return c.reset(ctx)
	case ActionWrite, ActionRead:
		return c.drive(ctx, run)
	default:
		return fmt.Errorf("unknown action: %s", run.Action)
	}
}

// reset is not transactional: a failed Clear leaves metrics and presence
// as they were.
func (c *Controller) reset(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	c.recorder.Reset()
	c.setPresence(false)
	return nil
}

func (c *Controller) drive(ctx context.Context, run ActionState) error {
	strategy, err := NewStrategy(run.Strategy, StrategyDeps{
		Store:       c.store,
		Recorder:    c.recorder,
		MaxInFlight: c.maxInFlight,
		Progress: func(done, total int) {
			if c.progress != nil {
				c.progress(done, total)
			}
			c.ticks.publish(NewProgressUpdate(run.Action, run.RunID, done, total, time.Since(*run.StartedAt)))
		},
	})
	if err != nil {
		return err
	}

	workload, err := c.generator.Generate(run.Count)
	if err != nil {
		return err
	}

	if run.Action == ActionRead {
		return strategy.Read(ctx, workload)
	}

	if err := strategy.Write(ctx, workload); err != nil {
		return err
	}
	c.setPresence(true)
	return nil
}

func (c *Controller) setPresence(v bool) {
	if c.presence.Set(v) {
		c.changes.publish(struct{}{})
	}
}

func (c *Controller) HasData() bool {
	return c.presence.Get()
}

func (c *Controller) Presence() *Presence {
	return &c.presence
}

// Watch signals every action or presence change.
func (c *Controller) Watch() (<-chan struct{}, func()) {
	return c.changes.subscribe()
}

// WatchProgress streams progress ticks of write and read runs. A slow
// reader only sees the latest tick.
func (c *Controller) WatchProgress() (<-chan ProgressUpdate, func()) {
	return c.ticks.subscribe()
}

func (c *Controller) State(action Action) ActionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.states[action]; ok {
		return *state
	}
	return ActionState{Action: action, Status: StatusIdle}
}

func (c *Controller) States() map[Action]ActionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := make(map[Action]ActionState, len(c.states))
	for a, s := range c.states {
		states[a] = *s
	}
	return states
}

func (c *Controller) AnyLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.states {
		if s.Loading() {
			return true
		}
	}
	return false
}

func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Controller) SetCount(count int) error {
	if err := validateCount(count); err != nil {
		return err
	}

	c.mu.Lock()
	c.count = count
	c.mu.Unlock()
	c.changes.publish(struct{}{})
	return nil
}

func (c *Controller) StrategyKind() StrategyKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strategy
}

func (c *Controller) SetStrategy(kind StrategyKind) error {
	if _, err := ParseStrategy(string(kind)); err != nil {
		return err
	}

	c.mu.Lock()
	c.strategy = kind
	c.mu.Unlock()
	c.changes.publish(struct{}{})
	return nil
}

func (c *Controller) Metrics() map[string]Bucket {
	return c.recorder.Metrics()
}

func (c *Controller) Summaries() map[string]Summary {
	return Summarize(c.recorder.Metrics())
}

// PrintInfo dumps the current metrics to the logger and resets them.
func (c *Controller) PrintInfo() {
	c.recorder.PrintMetrics(c.logger)
	c.recorder.Reset()
	c.changes.publish(struct{}{})
}
