package benchmark

import (
	"errors"
	"fmt"
)

type StrategyKind string

const (
	StrategySequential StrategyKind = "sequential"
	StrategyBatched    StrategyKind = "batched"
	StrategyParallel   StrategyKind = "parallel"
)

const (
	DefaultCount     = 1000
	DefaultKeyPrefix = "rnd-key-"

	// SentinelKey marks a populated store across restarts.
	SentinelKey   = "isFilled"
	SentinelValue = "filled"
)

var (
	ErrInvalidWorkloadSize = errors.New("invalid workload size")
	ErrUnknownStrategy     = errors.New("unknown strategy")
	ErrActionRunning       = errors.New("action already running")
	ErrBusy                = errors.New("another action is running")
)

// Config describes one benchmark run as reported alongside its results.
type Config struct {
	Count       int          `json:"count" yaml:"count"`
	Strategy    StrategyKind `json:"strategy" yaml:"strategy"`
	Backend     string       `json:"backend" yaml:"backend"`
	KeyPrefix   string       `json:"key_prefix" yaml:"key_prefix"`
	Payload     PayloadMode  `json:"payload" yaml:"payload"`
	Seed        *int64       `json:"seed,omitempty" yaml:"seed,omitempty"`
	MaxInFlight int          `json:"max_in_flight" yaml:"max_in_flight"`
}

func ParseStrategy(name string) (StrategyKind, error) {
	switch kind := StrategyKind(name); kind {
	case StrategySequential, StrategyBatched, StrategyParallel:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
}

func validateCount(count int) error {
	if count <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkloadSize, count)
	}
	return nil
}
