package benchmark

import (
	"context"
	"fmt"
	"strconv"

	"github.com/user/kvbench/internal/storage"
)

// VerifyResult describes what a previous write run left in a store.
type VerifyResult struct {
	Sentinel bool     `json:"sentinel"`
	Expected int      `json:"expected"`
	Found    int      `json:"found"`
	Missing  []string `json:"missing,omitempty"`
}

// Complete reports whether the sentinel and every expected key are present.
func (r VerifyResult) Complete() bool {
	return r.Sentinel && r.Found == r.Expected
}

// Verify checks a store for the keys prefix1..prefixN written by a write
// run of count items, in one batch call.
func Verify(ctx context.Context, store storage.Store, prefix string, count int) (VerifyResult, error) {
	if err := validateCount(count); err != nil {
		return VerifyResult{}, err
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	_, sentinel, err := store.Get(ctx, SentinelKey)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to probe %s: %w", SentinelKey, err)
	}

	keys := make([]string, count)
	for i := range keys {
		keys[i] = prefix + strconv.Itoa(i+1)
	}
	values, err := store.MultiGet(ctx, keys)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("failed to read back %d keys: %w", count, err)
	}

	result := VerifyResult{Sentinel: sentinel, Expected: count}
	for _, kv := range values {
		if kv.Found {
			result.Found++
		} else {
			result.Missing = append(result.Missing, kv.Key)
		}
	}
	return result, nil
}
