package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/kvbench/internal/benchmark"
	"github.com/user/kvbench/internal/storage"
)

type Config struct {
	Benchmark BenchmarkConfig `yaml:"benchmark" json:"benchmark"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Output    OutputConfig    `yaml:"output" json:"output"`
}

type BenchmarkConfig struct {
	Count       int    `yaml:"count" json:"count"`
	Strategy    string `yaml:"strategy" json:"strategy"`
	KeyPrefix   string `yaml:"key_prefix" json:"key_prefix"`
	Payload     string `yaml:"payload" json:"payload"`
	Seed        *int64 `yaml:"seed,omitempty" json:"seed,omitempty"`
	MaxInFlight int    `yaml:"max_in_flight" json:"max_in_flight"`
	SkipReset   bool   `yaml:"skip_reset" json:"skip_reset"`
	Progress    bool   `yaml:"progress" json:"progress"`
}

type StorageConfig struct {
	Backend    string      `yaml:"backend" json:"backend"`
	DataPath   string      `yaml:"data_path" json:"data_path"`
	InMemory   bool        `yaml:"in_memory" json:"in_memory"`
	SyncWrites bool        `yaml:"sync_writes" json:"sync_writes"`
	Redis      RedisConfig `yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

type OutputConfig struct {
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	loadFromEnvironment(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func DefaultConfig() *Config {
	return &Config{
		Benchmark: BenchmarkConfig{
			Count:     benchmark.DefaultCount,
			Strategy:  string(benchmark.StrategySequential),
			KeyPrefix: benchmark.DefaultKeyPrefix,
			Payload:   string(benchmark.PayloadCorpus),
		},
		Storage: StorageConfig{
			Backend:  storage.BackendBadger,
			DataPath: "./data/kvbench",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Output: OutputConfig{
			Format: "table",
		},
	}
}

func loadFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to unmarshal YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return nil
}

func loadFromEnvironment(config *Config) {
	// Benchmark configuration
	if count := os.Getenv("KVBENCH_COUNT"); count != "" {
		if n, err := strconv.Atoi(count); err == nil {
			config.Benchmark.Count = n
		}
	}
	if strategy := os.Getenv("KVBENCH_STRATEGY"); strategy != "" {
		config.Benchmark.Strategy = strategy
	}
	if seed := os.Getenv("KVBENCH_SEED"); seed != "" {
		if s, err := strconv.ParseInt(seed, 10, 64); err == nil {
			config.Benchmark.Seed = &s
		}
	}
	if maxInFlight := os.Getenv("KVBENCH_MAX_IN_FLIGHT"); maxInFlight != "" {
		if n, err := strconv.Atoi(maxInFlight); err == nil {
			config.Benchmark.MaxInFlight = n
		}
	}

	// Storage configuration
	if backend := os.Getenv("KVBENCH_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if dataPath := os.Getenv("KVBENCH_STORAGE_DATA_PATH"); dataPath != "" {
		config.Storage.DataPath = dataPath
	}
	if inMemory := os.Getenv("KVBENCH_STORAGE_IN_MEMORY"); inMemory != "" {
		if b, err := strconv.ParseBool(inMemory); err == nil {
			config.Storage.InMemory = b
		}
	}
	if addr := os.Getenv("KVBENCH_REDIS_ADDR"); addr != "" {
		config.Storage.Redis.Addr = addr
	}
	if password := os.Getenv("KVBENCH_REDIS_PASSWORD"); password != "" {
		config.Storage.Redis.Password = password
	}

	// Logging configuration
	if level := os.Getenv("KVBENCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("KVBENCH_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	// Server configuration
	if host := os.Getenv("KVBENCH_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("KVBENCH_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}

func (c *Config) Validate() error {
	// Benchmark validation
	if c.Benchmark.Count <= 0 {
		return fmt.Errorf("count must be positive: %d", c.Benchmark.Count)
	}
	if _, err := benchmark.ParseStrategy(c.Benchmark.Strategy); err != nil {
		return err
	}
	if _, err := benchmark.ParsePayloadMode(c.Benchmark.Payload); err != nil {
		return err
	}
	if c.Benchmark.KeyPrefix == "" {
		return fmt.Errorf("key prefix cannot be empty")
	}
	if c.Benchmark.MaxInFlight < 0 {
		return fmt.Errorf("max in flight cannot be negative: %d", c.Benchmark.MaxInFlight)
	}

	// Storage validation
	switch c.Storage.Backend {
	case storage.BackendMemory:
	case storage.BackendBadger:
		if !c.Storage.InMemory && c.Storage.DataPath == "" {
			return fmt.Errorf("data path cannot be empty when not using in-memory storage")
		}
	case storage.BackendRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("redis address cannot be empty")
		}
	default:
		return fmt.Errorf("%w: %s", storage.ErrUnknownBackend, c.Storage.Backend)
	}

	// Logging validation
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validOutputs := map[string]bool{
		"table": true, "json": true, "csv": true,
	}
	if !validOutputs[strings.ToLower(c.Output.Format)] {
		return fmt.Errorf("invalid output format: %s", c.Output.Format)
	}

	return nil
}

// BenchmarkSettings converts the benchmark section into the run config
// reported alongside results.
func (c *Config) BenchmarkSettings() benchmark.Config {
	return benchmark.Config{
		Count:       c.Benchmark.Count,
		Strategy:    benchmark.StrategyKind(c.Benchmark.Strategy),
		Backend:     c.Storage.Backend,
		KeyPrefix:   c.Benchmark.KeyPrefix,
		Payload:     benchmark.PayloadMode(c.Benchmark.Payload),
		Seed:        c.Benchmark.Seed,
		MaxInFlight: c.Benchmark.MaxInFlight,
	}
}

func (c *Config) StorageSettings() storage.Config {
	return storage.Config{
		Backend: c.Storage.Backend,
		Badger: storage.BadgerConfig{
			DataPath:   c.Storage.DataPath,
			InMemory:   c.Storage.InMemory,
			SyncWrites: c.Storage.SyncWrites,
		},
		Redis: storage.RedisConfig{
			Addr:     c.Storage.Redis.Addr,
			Password: c.Storage.Redis.Password,
			DB:       c.Storage.Redis.DB,
		},
	}
}

func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
