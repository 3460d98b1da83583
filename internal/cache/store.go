// Package cache provides the fast-expiring key/value state shared by the tracker components.
//
// Every entry carries a logical timestamp. SwapIfNewer is the single per-key atomic primitive
// the tracker relies on for last-timestamp-wins semantics; there is no lock spanning keys.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Entry is a cached value stamped with a logical timestamp in unix milliseconds.
type Entry struct {
	Timestamp int64
	Data      []byte
}

type Store interface {
	// Get returns the entry stored under key or ErrMiss.
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores e unconditionally and resets the expiry.
	Set(ctx context.Context, key string, e Entry, ttl time.Duration) error

	// SwapIfNewer stores e unless the current entry has a strictly greater timestamp.
	// It returns the entry that was present before the call (nil when absent) and whether e was stored.
	SwapIfNewer(ctx context.Context, key string, e Entry, ttl time.Duration) (prev *Entry, swapped bool, err error)

	Delete(ctx context.Context, key string) error

	// Keys lists the live keys that start with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Push prepends data to the list at key and resets the list expiry.
	Push(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Range returns up to limit list items, newest first.
	Range(ctx context.Context, key string, limit int) ([][]byte, error)

	Close() error
}

// Millis converts t to the timestamp representation used by entries.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
