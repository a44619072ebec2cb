package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

type BadgerConfig struct {
	DataPath   string
	InMemory   bool
	SyncWrites bool
}

// BadgerStore persists the benchmark data in an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

func NewBadgerStore(config BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(config.DataPath)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithSyncWrites(config.SyncWrites)
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &BadgerStore{db: db}, nil
}

func (bs *BadgerStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, wrapErr("get", key, err)
	}

	var value []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapErr("get", key, err)
	}
	return string(value), true, nil
}

func (bs *BadgerStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return wrapErr("set", key, err)
	}

	err := bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	return wrapErr("set", key, err)
}

func (bs *BadgerStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return wrapErr("clear", "", err)
	}
	return wrapErr("clear", "", bs.db.DropAll())
}

// MultiGet reads every key inside a single read transaction.
func (bs *BadgerStore) MultiGet(ctx context.Context, keys []string) ([]KeyValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("multiGet", "", err)
	}

	results := make([]KeyValue, len(keys))
	err := bs.db.View(func(txn *badger.Txn) error {
		for i, key := range keys {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				results[i] = KeyValue{Key: key}
				continue
			}
			if err != nil {
				return err
			}

			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			results[i] = KeyValue{Key: key, Value: string(value), Found: true}
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("multiGet", "", err)
	}
	return results, nil
}

// MultiSet goes through a WriteBatch so large batches are split across
// transactions by badger itself.
func (bs *BadgerStore) MultiSet(ctx context.Context, pairs []KeyValue) error {
	if err := ctx.Err(); err != nil {
		return wrapErr("multiSet", "", err)
	}

	wb := bs.db.NewWriteBatch()
	defer wb.Cancel()

	for _, kv := range pairs {
		if err := wb.Set([]byte(kv.Key), []byte(kv.Value)); err != nil {
			return wrapErr("multiSet", kv.Key, err)
		}
	}
	return wrapErr("multiSet", "", wb.Flush())
}

func (bs *BadgerStore) Close() error {
	return bs.db.Close()
}
