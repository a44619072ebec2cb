package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/user/kvbench/internal/benchmark"
	"github.com/user/kvbench/internal/config"
	"github.com/user/kvbench/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	count := flag.Int("count", 0, "Number of keys the write run stored (default: config count)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-config file.yaml] [-count n]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *count > 0 {
		cfg.Benchmark.Count = *count
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Open
	store, err := storage.Open(ctx, cfg.StorageSettings())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s store: %v\n", cfg.Storage.Backend, err)
		os.Exit(1)
	}
	defer store.Close()

	settings := cfg.BenchmarkSettings()
	fmt.Printf("Backend: %s\n", cfg.Storage.Backend)
	fmt.Printf("Key prefix: %s\n", settings.KeyPrefix)
	fmt.Printf("Expected keys: %d\n", settings.Count)

	fmt.Println("\nReading back workload keys...")
	result, err := benchmark.Verify(ctx, store, settings.KeyPrefix, settings.Count)
	if err != nil {
		fmt.Printf("✗ Verify error: %v\n", err)
		store.Close()
		os.Exit(1)
	}

	if result.Sentinel {
		fmt.Printf("✓ Sentinel %q present\n", benchmark.SentinelKey)
	} else {
		fmt.Printf("✗ Sentinel %q missing\n", benchmark.SentinelKey)
	}

	if result.Found == result.Expected {
		fmt.Printf("✓ Found all %d keys\n", result.Found)
	} else {
		fmt.Printf("✗ Found %d of %d keys\n", result.Found, result.Expected)
		for i, key := range result.Missing {
			if i == 10 {
				fmt.Printf("  ... and %d more\n", len(result.Missing)-i)
				break
			}
			fmt.Printf("  missing %s\n", key)
		}
	}

	if !result.Complete() {
		store.Close()
		os.Exit(1)
	}
	fmt.Println("\nStore verification complete!")
}
