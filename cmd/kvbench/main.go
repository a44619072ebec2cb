package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/kvbench/internal/benchmark"
	"github.com/user/kvbench/internal/config"
	"github.com/user/kvbench/internal/logging"
	"github.com/user/kvbench/internal/monitoring"
	"github.com/user/kvbench/internal/output"
	"github.com/user/kvbench/internal/server"
	"github.com/user/kvbench/internal/storage"
	"github.com/user/kvbench/pkg/sysinfo"
)

var (
	configPath   string
	count        int
	strategy     string
	backend      string
	dataPath     string
	redisAddr    string
	seed         int64
	maxInFlight  int
	outputFormat string
	outputFile   string
	verbose      bool
	showProgress bool
	noReset      bool
	webMode      bool
	webPort      int
)

var rootCmd = &cobra.Command{
	Use:   "kvbench",
	Short: "A write/read benchmark for key-value stores",
	Long: `kvbench drives synthetic write and read workloads against a key-value
store and reports per-operation timing statistics.

Each run resets the store, writes a shuffled workload, reads it back and
prints total, min, max and average latency for every measured operation.
Workloads run sequentially, as a single batch, or fully in parallel against
an in-memory map, an embedded Badger database or a Redis server.`,
	SilenceUsage: true,
	RunE:         runBenchmark,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.Flags().IntVarP(&count, "count", "n", benchmark.DefaultCount, "Number of items per workload")
	rootCmd.Flags().StringVarP(&strategy, "strategy", "s", "sequential", "Execution strategy (sequential, batched, parallel)")
	rootCmd.Flags().StringVarP(&backend, "backend", "b", storage.BackendBadger, "Storage backend (memory, badger, redis)")
	rootCmd.Flags().StringVar(&dataPath, "data-path", "", "Badger data directory")
	rootCmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for reproducible workloads")
	rootCmd.Flags().IntVar(&maxInFlight, "max-in-flight", 0, "Bound on concurrent calls for the parallel strategy (0 = unbounded)")
	rootCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format (table, json, csv)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.Flags().BoolVar(&showProgress, "progress", true, "Show progress bar")
	rootCmd.Flags().BoolVar(&noReset, "no-reset", false, "Keep existing data instead of resetting first")
	rootCmd.Flags().BoolVarP(&webMode, "web", "w", false, "Run in web server mode")
	rootCmd.Flags().IntVar(&webPort, "port", 8080, "Web server port")
}

// loadConfig layers explicitly set flags over the config file.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("count") {
		cfg.Benchmark.Count = count
	}
	if flags.Changed("strategy") {
		cfg.Benchmark.Strategy = strategy
	}
	if flags.Changed("seed") {
		cfg.Benchmark.Seed = &seed
	}
	if flags.Changed("max-in-flight") {
		cfg.Benchmark.MaxInFlight = maxInFlight
	}
	if flags.Changed("no-reset") {
		cfg.Benchmark.SkipReset = noReset
	}
	if flags.Changed("progress") || configPath == "" {
		cfg.Benchmark.Progress = showProgress
	}
	if flags.Changed("backend") {
		cfg.Storage.Backend = backend
	}
	if flags.Changed("data-path") {
		cfg.Storage.DataPath = dataPath
	}
	if flags.Changed("redis-addr") {
		cfg.Storage.Redis.Addr = redisAddr
	}
	if flags.Changed("format") {
		cfg.Output.Format = outputFormat
	}
	if flags.Changed("output") {
		cfg.Output.File = outputFile
	}
	if flags.Changed("port") {
		cfg.Server.Port = webPort
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closeLog := logging.NewLogger(cfg.Logging)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Collect system information
	sysInfo, err := sysinfo.Collect()
	if err != nil {
		return fmt.Errorf("failed to collect system info: %w", err)
	}
	logger.Debug("system information",
		slog.String("os", sysInfo.OS),
		slog.String("arch", sysInfo.Architecture),
		slog.String("cpu", sysInfo.CPUModel),
		slog.Int("cores", sysInfo.CPUCores),
		slog.Uint64("memory", sysInfo.TotalMemory),
	)

	store, err := storage.Open(ctx, cfg.StorageSettings())
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}
	defer store.Close()

	settings := cfg.BenchmarkSettings()
	generator := benchmark.NewGenerator(benchmark.GeneratorOptions{
		Prefix:  settings.KeyPrefix,
		Payload: settings.Payload,
		Seed:    settings.Seed,
	})

	if webMode {
		return serve(ctx, cfg, store, generator, sysInfo, logger)
	}

	var progress benchmark.ProgressFunc
	if cfg.Benchmark.Progress {
		progress = benchmark.ProgressBar(os.Stderr, string(settings.Strategy))
	}

	recorder := benchmark.NewRecorder()
	controller := benchmark.NewController(store, recorder, benchmark.ControllerOptions{
		Count:       settings.Count,
		Strategy:    settings.Strategy,
		Generator:   generator,
		MaxInFlight: settings.MaxInFlight,
		Logger:      logger,
		Progress:    progress,
	})

	runner := benchmark.NewRunner(controller, settings, logger)
	report, err := runner.Run(ctx, benchmark.RunOptions{SkipReset: cfg.Benchmark.SkipReset})
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	// Format and output results
	formatter, err := output.NewFormatter(cfg.Output.Format)
	if err != nil {
		return fmt.Errorf("invalid output format: %w", err)
	}

	var writer io.Writer = os.Stdout
	if cfg.Output.File != "" {
		file, err := os.Create(cfg.Output.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		writer = file
	}

	if err := formatter.Format(writer, output.FromReport(sysInfo, report)); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	return nil
}

func serve(ctx context.Context, cfg *config.Config, store storage.Store, generator *benchmark.Generator, sysInfo *sysinfo.SystemInfo, logger *slog.Logger) error {
	settings := cfg.BenchmarkSettings()
	metrics := monitoring.NewMetrics()

	recorder := benchmark.NewRecorder(benchmark.WithObserver(metrics))
	controller := benchmark.NewController(store, recorder, benchmark.ControllerOptions{
		Count:       settings.Count,
		Strategy:    settings.Strategy,
		Generator:   generator,
		MaxInFlight: settings.MaxInFlight,
		Logger:      logger,
	})
	if err := controller.Init(ctx); err != nil {
		return err
	}

	srv := server.NewServer(controller, server.Options{
		Addr:       fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		SystemInfo: sysInfo,
		Metrics:    metrics,
		Logger:     logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	logger.Info("press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
