package fncache

import "time"

// Hooks are lightweight callbacks for high-signal decorator events.
// Implementations MUST be cheap and non-blocking; the decorator calls them
// on hot paths. Wrap with hooks/async to decouple slow consumers.
type Hooks interface {
	// A decorated call was served from the backend.
	Hit(key string)

	// No entry was found; the wrapped function will execute.
	Miss(key string)

	// A stored payload failed to decode and was treated as a miss.
	// The wrapped function re-executes and repopulates the entry.
	DecodeFallback(key string, err error)

	// A freshly computed result was written to the backend.
	Stored(key string, ttl time.Duration)

	// The backend rejected the write after a successful execution.
	// The computed value was still returned to the caller.
	StoreError(key string, err error)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) Hit(string)                    {}
func (NopHooks) Miss(string)                   {}
func (NopHooks) DecodeFallback(string, error)  {}
func (NopHooks) Stored(string, time.Duration)  {}
func (NopHooks) StoreError(string, error)      {}
