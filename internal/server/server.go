package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/user/kvbench/internal/benchmark"
	"github.com/user/kvbench/internal/monitoring"
	"github.com/user/kvbench/pkg/sysinfo"
)

type Options struct {
	Addr       string
	SystemInfo *sysinfo.SystemInfo
	Metrics    *monitoring.Metrics
	Logger     *slog.Logger
	// RunHistory caps how many runs /api/v1/runs remembers.
	RunHistory int
}

// Server exposes a Controller over HTTP. Actions run in the background and
// outlive the request that started them.
type Server struct {
	router     *mux.Router
	controller *benchmark.Controller
	runs       *RunStore
	metrics    *monitoring.Metrics
	sysInfo    *sysinfo.SystemInfo
	upgrader   websocket.Upgrader
	logger     *slog.Logger
	addr       string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	http   *http.Server
}

type StateSnapshot struct {
	Type       string                                     `json:"type"`
	HasData    bool                                       `json:"has_data"`
	AnyLoading bool                                       `json:"any_loading"`
	Count      int                                        `json:"count"`
	Strategy   benchmark.StrategyKind                     `json:"strategy"`
	Actions    map[benchmark.Action]benchmark.ActionState `json:"actions"`
}

type ProgressMessage struct {
	Type string `json:"type"`
	benchmark.ProgressUpdate
}

type actionRequest struct {
	Count *int `json:"count"`
}

type settingsRequest struct {
	Count    *int    `json:"count"`
	Strategy *string `json:"strategy"`
}

func NewServer(controller *benchmark.Controller, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:     mux.NewRouter(),
		controller: controller,
		runs:       NewRunStore(opts.RunHistory),
		metrics:    opts.Metrics,
		sysInfo:    opts.SystemInfo,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: opts.Logger,
		addr:   opts.Addr,
		ctx:    ctx,
		cancel: cancel,
	}
	if s.metrics != nil {
		s.metrics.SetHasData(controller.HasData())
	}

	s.setupRoutes()
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)

	// API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/system-info", s.handleSystemInfo).Methods("GET")
	api.HandleFunc("/state", s.handleState).Methods("GET")
	api.HandleFunc("/actions/{action}", s.handleAction).Methods("POST")
	api.HandleFunc("/settings", s.handleSettings).Methods("PUT")
	api.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	api.HandleFunc("/metrics/print", s.handlePrintMetrics).Methods("POST")
	api.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")
	api.HandleFunc("/events", s.handleEvents).Methods("GET")

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("kvbench web server starting", slog.String("addr", s.addr))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running actions to
// settle. Actions still running when ctx expires are cancelled.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if waitErr := s.wait(ctx); waitErr != nil {
		s.cancel()
		return waitErr
	}
	s.cancel()
	return err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) snapshot() StateSnapshot {
	return StateSnapshot{
		Type:       "state",
		HasData:    s.controller.HasData(),
		AnyLoading: s.controller.AnyLoading(),
		Count:      s.controller.Count(),
		Strategy:   s.controller.StrategyKind(),
		Actions:    s.controller.States(),
	}
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	if s.sysInfo == nil {
		http.Error(w, "System info unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.sysInfo)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action, err := benchmark.ParseAction(mux.Vars(r)["action"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	// The body is optional; an empty one runs with the configured count.
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID, err := s.launch(action, req.Count)
	switch {
	case errors.Is(err, benchmark.ErrBusy), errors.Is(err, benchmark.ErrActionRunning):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, benchmark.ErrInvalidWorkloadSize):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"action": string(action),
		"status": "started",
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Count != nil {
		if err := s.controller.SetCount(*req.Count); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Strategy != nil {
		kind, err := benchmark.ParseStrategy(*req.Strategy)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.controller.SetStrategy(kind); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"has_data": s.controller.HasData(),
		"metrics":  s.controller.Summaries(),
	})
}

func (s *Server) handlePrintMetrics(w http.ResponseWriter, r *http.Request) {
	s.controller.PrintInfo()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runs.List())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, exists := s.runs.Get(id)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleEvents streams a state snapshot on connect and after every change,
// interleaved with progress ticks of the running action.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	changes, stopChanges := s.controller.Watch()
	defer stopChanges()
	ticks, stopTicks := s.controller.WatchProgress()
	defer stopTicks()

	// The client never sends anything meaningful; reading detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(s.snapshot()); err != nil {
		return
	}

	for {
		var msg any
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
			msg = s.snapshot()
		case u, ok := <-ticks:
			if !ok {
				return
			}
			msg = ProgressMessage{Type: "progress", ProgressUpdate: u}
		case <-closed:
			return
		case <-s.ctx.Done():
			return
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("event stream closed", slog.String("error", err.Error()))
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
