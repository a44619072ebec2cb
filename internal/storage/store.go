package storage

import (
	"context"
	"errors"
	"fmt"
)

// Store is the asynchronous key-value backend driven by the benchmark.
// Values are strings and a missing key is reported by found == false,
// not by an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error

	// Batch operations
	MultiGet(ctx context.Context, keys []string) ([]KeyValue, error)
	MultiSet(ctx context.Context, pairs []KeyValue) error

	Close() error
}

// KeyValue is one entry of a batch call. Found is only meaningful in
// MultiGet results.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Found bool   `json:"found"`
}

var ErrUnknownBackend = errors.New("unknown storage backend")

// StorageError wraps a failed backend call.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func wrapErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Key: key, Err: err}
}
