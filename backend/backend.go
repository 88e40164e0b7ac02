// Package backend defines the storage abstraction used by fncache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no
// prepended/appended metadata, no re-encoding, no mutation). If a store
// performs internal transforms (e.g., compression), they MUST be fully
// reversed so that the bytes returned by Get are identical to the bytes
// provided to Set.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrClearUnsupported is returned by Clear when the store cannot enumerate
// keys for the requested scope (e.g. a prefix clear on memcached).
var ErrClearUnsupported = errors.New("backend: clear not supported for this scope")

// CountUnknown is returned by Clear when entries were removed but the store
// cannot report how many (e.g. a memcached flush).
const CountUnknown = -1

// Backend is a minimal byte store with TTLs. Implementations must be safe
// for concurrent use.
type Backend interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means "no expiry": the entry persists
	// until removed by Clear or by the store's own eviction policy.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Clear removes all entries whose key starts with prefix; an empty
	// prefix removes everything. Returns the number of removed entries,
	// CountUnknown where the store cannot report it, or
	// ErrClearUnsupported where the scope cannot be enumerated.
	Clear(ctx context.Context, prefix string) (int, error)

	// Exists reports whether key currently holds a live entry. May be
	// derived from Get where the store has no cheaper probe.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
