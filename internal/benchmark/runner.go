package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/user/kvbench/pkg/sysinfo"
)

// Report is the outcome of one scripted Runner session.
type Report struct {
	Config      Config             `json:"config"`
	HasData     bool               `json:"has_data"`
	Summaries   map[string]Summary `json:"summaries"`
	Resources   sysinfo.Usage      `json:"resources"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
}

type RunOptions struct {
	SkipReset bool
	SkipRead  bool
}

// Runner plays the reset, write and read actions in order the way a user
// pressing the buttons would, then collects the summaries.
type Runner struct {
	controller *Controller
	config     Config
	logger     *slog.Logger
}

func NewRunner(controller *Controller, config Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{controller: controller, config: config, logger: logger}
}

func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	report := &Report{
		Config:    r.config,
		StartedAt: time.Now(),
	}

	before := sysinfo.SampleUsage()

	if err := r.controller.Init(ctx); err != nil {
		return nil, err
	}
	r.logger.Debug("store probed", slog.Bool("has_data", r.controller.HasData()))

	if !opts.SkipReset {
		if err := r.controller.ExecuteReset(ctx); err != nil {
			return nil, fmt.Errorf("reset failed: %w", err)
		}
	}

	if err := r.controller.ExecuteWrite(ctx); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	if !opts.SkipRead {
		if err := r.controller.ExecuteRead(ctx); err != nil {
			return nil, fmt.Errorf("read failed: %w", err)
		}
	}

	after := sysinfo.SampleUsage()
	report.Resources = after.Delta(before)
	report.HasData = r.controller.HasData()
	report.Summaries = r.controller.Summaries()
	report.CompletedAt = time.Now()

	// Force garbage collection so the next run starts from a clean heap
	runtime.GC()

	return report, nil
}

// ProgressBar draws one terminal progress bar per action run.
func ProgressBar(w io.Writer, description string) ProgressFunc {
	var mu sync.Mutex
	var bar *progressbar.ProgressBar

	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(w)
				}),
			)
		}

		bar.Set(done)
		if done >= total {
			bar = nil
		}
	}
}
