package fncache

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when the process-wide manager is used before
// Init (or after Reset).
var ErrNotInitialized = errors.New("fncache: not initialized; call Init first")

// ConfigurationError reports an invalid Config passed to New or Init.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("fncache: invalid configuration: %s", e.Reason)
}

// BackendError wraps an I/O failure talking to the storage backend.
// A plain miss is never a BackendError.
type BackendError struct {
	Op  string // "get", "set", "clear", "exists"
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("fncache: backend %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// EncodeError wraps a Coder failure while serializing a computed result.
type EncodeError struct {
	Key string
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("fncache: encode for %q: %v", e.Key, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError wraps a Coder failure while deserializing a cached payload.
// The decorator recovers from it locally (treated as a miss); it is still
// observable through Hooks.DecodeFallback.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("fncache: decode for %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// KeyBuildError reports that a cache key could not be derived. Arg is the
// zero-based position of the offending argument, or -1 when the failure is
// not attributable to a single argument.
type KeyBuildError struct {
	Fn  string
	Arg int
	Err error
}

func (e *KeyBuildError) Error() string {
	if e.Arg >= 0 {
		return fmt.Sprintf("fncache: key build for %s: argument %d: %v", e.Fn, e.Arg, e.Err)
	}
	return fmt.Sprintf("fncache: key build for %s: %v", e.Fn, e.Err)
}

func (e *KeyBuildError) Unwrap() error { return e.Err }
