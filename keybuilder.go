package fncache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/unkn0wn-root/fncache/internal/argenc"
)

// KeyBuilder maps a callable identity and its call arguments to a cache key.
// Builders must be pure: identical (fn, args) must always yield the same key,
// and different arguments should yield different keys.
type KeyBuilder func(fn string, args []any) (string, error)

// DefaultKeyBuilder combines the callable identity with a digest over a
// deterministic encoding of the arguments. Map-valued arguments are encoded
// with sorted keys, so the same logical call always hits the same slot.
// Arguments with no deterministic representation (funcs, channels) fail
// with *KeyBuildError naming the offending position.
func DefaultKeyBuilder(fn string, args []any) (string, error) {
	if len(args) == 0 {
		return fn, nil
	}
	var buf bytes.Buffer
	for i, a := range args {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := argenc.Value(&buf, a); err != nil {
			return "", &KeyBuildError{Fn: fn, Arg: i, Err: err}
		}
	}
	sum := sha256.Sum256(buf.Bytes())
	return fn + ":" + hex.EncodeToString(sum[:16]), nil
}

// SimpleKeyBuilder keys by callable identity alone: every call to the
// wrapped function shares a single cache slot regardless of arguments.
func SimpleKeyBuilder(fn string, _ []any) (string, error) {
	return fn, nil
}
