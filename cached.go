package fncache

import (
	"context"
	"reflect"
	"runtime"
	"time"

	"github.com/unkn0wn-root/fncache/coder"
)

// Func is the native shape of a cacheable function: context-aware, result
// plus error. Plain functions are lifted with Sync/Sync1/...
type Func[R any] func(context.Context) (R, error)
type Func1[A, R any] func(context.Context, A) (R, error)
type Func2[A, B, R any] func(context.Context, A, B) (R, error)
type Func3[A, B, C, R any] func(context.Context, A, B, C) (R, error)

// Sync adapts a plain function that neither blocks on I/O nor observes
// cancellation. The cache-aside flow is identical for both shapes; only the
// invocation step differs.
func Sync[R any](fn func() (R, error)) Func[R] {
	return func(context.Context) (R, error) { return fn() }
}

func Sync1[A, R any](fn func(A) (R, error)) Func1[A, R] {
	return func(_ context.Context, a A) (R, error) { return fn(a) }
}

func Sync2[A, B, R any](fn func(A, B) (R, error)) Func2[A, B, R] {
	return func(_ context.Context, a A, b B) (R, error) { return fn(a, b) }
}

func Sync3[A, B, C, R any](fn func(A, B, C) (R, error)) Func3[A, B, C, R] {
	return func(_ context.Context, a A, b B, c C) (R, error) { return fn(a, b, c) }
}

// Cached wraps a no-argument function. The returned function has the same
// shape; each call resolves a cache key, serves a hit from the backend, or
// executes fn and stores the result.
//
// m may be nil, in which case the process-wide Manager installed by Init is
// resolved on every call (ErrNotInitialized when there is none).
func Cached[R any](m *Manager, fn Func[R], opts ...Option) Func[R] {
	b := newBinding(funcName(fn), opts)
	return func(ctx context.Context) (R, error) {
		return run[R](ctx, m, b, nil, fn)
	}
}

// Cached1 wraps a one-argument function.
func Cached1[A, R any](m *Manager, fn Func1[A, R], opts ...Option) Func1[A, R] {
	b := newBinding(funcName(fn), opts)
	return func(ctx context.Context, a A) (R, error) {
		return run[R](ctx, m, b, []any{a}, func(ctx context.Context) (R, error) {
			return fn(ctx, a)
		})
	}
}

// Cached2 wraps a two-argument function.
func Cached2[A, B, R any](m *Manager, fn Func2[A, B, R], opts ...Option) Func2[A, B, R] {
	b := newBinding(funcName(fn), opts)
	return func(ctx context.Context, a A, bb B) (R, error) {
		return run[R](ctx, m, b, []any{a, bb}, func(ctx context.Context) (R, error) {
			return fn(ctx, a, bb)
		})
	}
}

// Cached3 wraps a three-argument function.
func Cached3[A, B, C, R any](m *Manager, fn Func3[A, B, C, R], opts ...Option) Func3[A, B, C, R] {
	b := newBinding(funcName(fn), opts)
	return func(ctx context.Context, a A, bb B, c C) (R, error) {
		return run[R](ctx, m, b, []any{a, bb, c}, func(ctx context.Context) (R, error) {
			return fn(ctx, a, bb, c)
		})
	}
}

// run is the cache-aside algorithm shared by every arity. No state survives
// a call except what lives in the backend.
func run[R any](ctx context.Context, m *Manager, b *binding, args []any, invoke func(context.Context) (R, error)) (R, error) {
	var zero R
	if m == nil {
		var err error
		if m, err = Default(); err != nil {
			return zero, err
		}
	}

	cod := b.coder
	if cod == nil {
		cod = m.coder
	}
	kb := b.keyBuilder
	if kb == nil {
		kb = m.keyBuilder
	}

	derived, err := kb(b.name, args)
	if err != nil {
		return zero, err
	}
	key := m.prefix
	if b.namespace != "" {
		key += b.namespace + ":"
	}
	key += derived

	raw, ok, err := m.backend.Get(ctx, key)
	if err != nil {
		return zero, &BackendError{Op: "get", Key: key, Err: err}
	}
	if ok {
		var out R
		derr := cod.Decode(raw, &out)
		if derr == nil {
			m.hooks.Hit(key)
			return out, nil
		}
		// Coder/version skew must not turn a key into a permanent error:
		// treat the entry as a miss, re-execute and overwrite it.
		m.hooks.DecodeFallback(key, &DecodeError{Key: key, Err: derr})
		m.log.Debug("cached payload failed to decode; treating as miss", Fields{"key": key, "err": derr})
	} else {
		m.hooks.Miss(key)
	}

	ttl := m.effectiveTTL(b.expire)
	if b.shared != nil {
		v, err, _ := b.shared.Do(key, func() (any, error) {
			return executeAndStore[R](ctx, m, cod, key, ttl, invoke)
		})
		if err != nil {
			return zero, err
		}
		return v.(R), nil
	}
	return executeAndStore[R](ctx, m, cod, key, ttl, invoke)
}

func executeAndStore[R any](ctx context.Context, m *Manager, cod coder.Coder, key string, ttl time.Duration, invoke func(context.Context) (R, error)) (R, error) {
	var zero R

	out, err := invoke(ctx)
	if err != nil {
		// the cache must never persist the side effects of a failed
		// computation
		return zero, err
	}

	payload, err := cod.Encode(out)
	if err != nil {
		return zero, &EncodeError{Key: key, Err: err}
	}
	if serr := m.backend.Set(ctx, key, payload, ttl); serr != nil {
		// Population is best-effort: the computed value is valid, so it is
		// returned; the failure is surfaced via hooks and the log.
		werr := &BackendError{Op: "set", Key: key, Err: serr}
		m.hooks.StoreError(key, werr)
		m.log.Warn("cache population failed; returning computed value", Fields{"key": key, "err": serr})
		return out, nil
	}
	m.hooks.Stored(key, ttl)
	return out, nil
}

// funcName resolves the fully-qualified runtime name of fn, e.g.
// "github.com/acme/users.Load". Closures get a "funcN" suffix; use WithName
// for those.
func funcName(fn any) string {
	pc := reflect.ValueOf(fn).Pointer()
	if f := runtime.FuncForPC(pc); f != nil {
		return f.Name()
	}
	return "unknown"
}
