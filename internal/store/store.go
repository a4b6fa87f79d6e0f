// Package store persists the SDK's small key/value state (identity, anonymous
// uid, device token, last seen build) across process restarts.
package store

import (
	"context"
	"fmt"
	"strconv"
)

// Store is a string key/value store with key-level atomicity. PutMany applies
// a batch atomically; a nil value in the batch removes the key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	PutMany(ctx context.Context, values map[string]*string) error
}

// GetBool reads a boolean written by PutBool. Absent keys report false.
func GetBool(ctx context.Context, s Store, key string) (bool, bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, ok, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, true, fmt.Errorf("parse bool %s: %w", key, err)
	}
	return b, true, nil
}

func PutBool(ctx context.Context, s Store, key string, value bool) error {
	return s.Put(ctx, key, strconv.FormatBool(value))
}

// GetInt64 reads an integer written by PutInt64. Absent keys report 0.
func GetInt64(ctx context.Context, s Store, key string) (int64, bool, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("parse int %s: %w", key, err)
	}
	return n, true, nil
}

func PutInt64(ctx context.Context, s Store, key string, value int64) error {
	return s.Put(ctx, key, strconv.FormatInt(value, 10))
}

// Ptr is a convenience for building PutMany batches.
func Ptr(s string) *string { return &s }
