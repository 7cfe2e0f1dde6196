// Package store provides the bounded key/value persistence every other
// component depends on: a hard capacity ceiling, typed capacity errors, and
// the shared degradation ladder callers use instead of crashing on quota.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for an absent key.
	ErrNotFound = errors.New("store: key not found")

	// ErrCapacityExceeded is returned by Put when the write would push the
	// store past its capacity ceiling. Prior state is left untouched.
	ErrCapacityExceeded = errors.New("store: capacity exceeded")
)

// Store is the single injected persistence abstraction. All mutations to a
// key are read-modify-write: callers reload the current value immediately
// before each append instead of caching a stale copy, because the same key
// may be updated by a transport delivery between two local operations.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
}
