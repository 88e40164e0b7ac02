package fncache

import (
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/fncache/coder"
)

// binding is the per-wrap configuration of a cached function. It is fixed
// when CachedN returns; zero fields fall back to the Manager at call time.
type binding struct {
	name       string
	namespace  string
	expire     time.Duration // 0 => manager default; <0 => forced no TTL
	keyBuilder KeyBuilder
	coder      coder.Coder
	shared     *singleflight.Group
}

func newBinding(fnName string, opts []Option) *binding {
	b := &binding{name: fnName}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Option customizes a single wrapped function.
type Option func(*binding)

// WithExpire overrides the manager's default TTL for this binding.
func WithExpire(d time.Duration) Option {
	return func(b *binding) { b.expire = d }
}

// WithNoExpiry stores entries without a TTL even when the manager has a
// default expiry configured.
func WithNoExpiry() Option {
	return func(b *binding) { b.expire = -1 }
}

// WithNamespace inserts a namespace segment between the manager prefix and
// the derived key: prefix + namespace + ":" + key.
func WithNamespace(ns string) Option {
	return func(b *binding) { b.namespace = ns }
}

// WithName overrides the callable identity used for key derivation. The
// default is the function's runtime name, which is unstable for closures
// ("...func1"); name those explicitly.
func WithName(name string) Option {
	return func(b *binding) { b.name = name }
}

// WithKeyBuilder overrides the manager's key builder for this binding.
func WithKeyBuilder(kb KeyBuilder) Option {
	return func(b *binding) { b.keyBuilder = kb }
}

// WithCoder overrides the manager's coder for this binding.
func WithCoder(c coder.Coder) Option {
	return func(b *binding) { b.coder = c }
}

// WithSharedExecution makes concurrent misses on the same key share a
// single execution of the wrapped function instead of each executing
// independently. Callers of a shared execution receive the same result
// value; treat pointer results as read-only.
func WithSharedExecution() Option {
	return func(b *binding) { b.shared = new(singleflight.Group) }
}

// Convenience fixed-expire bindings.

func OneMinute() Option { return WithExpire(time.Minute) }
func OneHour() Option   { return WithExpire(time.Hour) }
func OneDay() Option    { return WithExpire(24 * time.Hour) }
