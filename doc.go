// Package fncache turns ordinary Go functions into cached functions using the
// cache-aside pattern: check the backend first, execute on a miss, store the
// result for subsequent calls.
//
// Components:
//   - Backend: byte store with TTL (memory, Redis, Memcached, DynamoDB,
//     BigCache, Ristretto).
//   - Coder: (de)serializes results <-> []byte (JSON, Msgpack, CBOR, ...).
//   - KeyBuilder: derives a cache key from a function's identity and its
//     arguments.
//   - Manager: holds the active Backend, Coder, key prefix and default
//     expiry. Construct one explicitly with New, or install a process-wide
//     default with Init.
//
// Wrapping:
//
//	getUser := fncache.Cached1(nil, func(ctx context.Context, id int) (User, error) {
//	    return loadUser(ctx, id)
//	}, fncache.WithExpire(time.Minute))
//
//	u, err := getUser(ctx, 42) // miss: executes and stores
//	u, err = getUser(ctx, 42)  // hit: decoded from the backend
//
// Plain (non context-aware) functions are lifted with Sync/Sync1/...:
//
//	fib := fncache.Cached1(nil, fncache.Sync1(slowFib))
//
// A decorated call behaves exactly like the undecorated call on every error
// path: the wrapped function's errors pass through unchanged and are never
// cached. The only invisible recovery is a payload that fails to decode,
// which is treated as a miss and repopulated.
package fncache
