package server

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/user/kvbench/internal/benchmark"
)

const defaultRunHistory = 100

// RunRecord is one action run as seen through the API.
type RunRecord struct {
	ID          string                       `json:"id"`
	Action      benchmark.Action             `json:"action"`
	Status      benchmark.Status             `json:"status"`
	Count       int                          `json:"count,omitempty"`
	Strategy    benchmark.StrategyKind       `json:"strategy,omitempty"`
	StartedAt   time.Time                    `json:"started_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
	CompletedAt *time.Time                   `json:"completed_at,omitempty"`
	Summaries   map[string]benchmark.Summary `json:"summaries,omitempty"`
	Error       string                       `json:"error,omitempty"`
}

// RunStore keeps the most recent runs, dropping the oldest past its limit.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]*RunRecord
	order []string
	limit int
}

func NewRunStore(limit int) *RunStore {
	if limit <= 0 {
		limit = defaultRunHistory
	}
	return &RunStore{
		runs:  make(map[string]*RunRecord),
		limit: limit,
	}
}

func (rs *RunStore) Add(run *RunRecord) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.runs[run.ID] = run
	rs.order = append(rs.order, run.ID)
	for len(rs.order) > rs.limit {
		delete(rs.runs, rs.order[0])
		rs.order = rs.order[1:]
	}
}

func (rs *RunStore) Get(id string) (RunRecord, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	run, exists := rs.runs[id]
	if !exists {
		return RunRecord{}, false
	}
	return *run, true
}

// List returns every kept run, newest first.
func (rs *RunStore) List() []RunRecord {
	rs.mu.RLock()
	runs := make([]RunRecord, 0, len(rs.runs))
	for _, run := range rs.runs {
		runs = append(runs, *run)
	}
	rs.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs
}

func (rs *RunStore) Complete(id string, summaries map[string]benchmark.Summary, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if run, exists := rs.runs[id]; exists {
		completedAt := time.Now()
		run.CompletedAt = &completedAt
		run.UpdatedAt = completedAt

		if err != nil {
			run.Status = benchmark.StatusFailed
			run.Error = err.Error()
		} else {
			run.Status = benchmark.StatusSucceeded
			run.Summaries = summaries
		}
	}
}

// launch starts action on the controller and records it until it settles.
func (s *Server) launch(action benchmark.Action, count *int) (string, error) {
	var (
		runID string
		done  <-chan error
		err   error
	)
	if count != nil {
		runID, done, err = s.controller.StartN(s.ctx, action, *count)
	} else {
		runID, done, err = s.controller.Start(s.ctx, action)
	}
	if err != nil {
		return "", err
	}

	state := s.controller.State(action)
	now := time.Now()
	s.runs.Add(&RunRecord{
		ID:        runID,
		Action:    action,
		Status:    benchmark.StatusRunning,
		Count:     state.Count,
		Strategy:  state.Strategy,
		StartedAt: now,
		UpdatedAt: now,
	})

	s.wg.Add(1)
	go s.await(runID, action, done)
	return runID, nil
}

func (s *Server) await(runID string, action benchmark.Action, done <-chan error) {
	defer s.wg.Done()

	err := <-done
	if s.metrics != nil {
		s.metrics.ObserveAction(s.controller.State(action))
		s.metrics.SetHasData(s.controller.HasData())
	}
	s.runs.Complete(runID, s.controller.Summaries(), err)

	if err != nil {
		s.logger.Warn("run failed", slog.String("run_id", runID), slog.String("action", string(action)), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("run completed", slog.String("run_id", runID), slog.String("action", string(action)))
	}
}

// wait blocks until every launched run has settled or ctx is done.
func (s *Server) wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
