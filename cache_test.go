package fncache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	be "github.com/unkn0wn-root/fncache/backend"
	"github.com/unkn0wn-root/fncache/coder"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memBackend struct {
	mu sync.Mutex
	m  map[string]memEntry
}

var _ be.Backend = (*memBackend)(nil)

func newMemBackend() *memBackend { return &memBackend{m: make(map[string]memEntry)} }

func (b *memBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(b.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	b.mu.Lock()
	b.m[key] = memEntry{v: value, exp: exp}
	b.mu.Unlock()
	return nil
}

func (b *memBackend) Clear(_ context.Context, prefix string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for k := range b.m {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			delete(b.m, k)
			n++
		}
	}
	return n, nil
}

func (b *memBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

func (b *memBackend) Close(context.Context) error { return nil }

func (b *memBackend) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.m))
	for k := range b.m {
		out = append(out, k)
	}
	return out
}

// getErrBackend fails every Get with a transport-style error.
type getErrBackend struct {
	*memBackend
	err error
}

func (b *getErrBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, b.err
}

// setErrBackend fails every Set; Get works.
type setErrBackend struct {
	*memBackend
	err error
}

func (b *setErrBackend) Set(context.Context, string, []byte, time.Duration) error {
	return b.err
}

// recHooks records decorator events for assertions.
type recHooks struct {
	mu          sync.Mutex
	hits        []string
	misses      []string
	fallbacks   []string
	stored      map[string]time.Duration
	storeErrors []error
}

var _ Hooks = (*recHooks)(nil)

func newRecHooks() *recHooks { return &recHooks{stored: make(map[string]time.Duration)} }

func (h *recHooks) Hit(key string) {
	h.mu.Lock()
	h.hits = append(h.hits, key)
	h.mu.Unlock()
}

func (h *recHooks) Miss(key string) {
	h.mu.Lock()
	h.misses = append(h.misses, key)
	h.mu.Unlock()
}

func (h *recHooks) DecodeFallback(key string, _ error) {
	h.mu.Lock()
	h.fallbacks = append(h.fallbacks, key)
	h.mu.Unlock()
}

func (h *recHooks) Stored(key string, ttl time.Duration) {
	h.mu.Lock()
	h.stored[key] = ttl
	h.mu.Unlock()
}

func (h *recHooks) StoreError(_ string, err error) {
	h.mu.Lock()
	h.storeErrors = append(h.storeErrors, err)
	h.mu.Unlock()
}

func newTestManager(t *testing.T, b be.Backend, mod func(*Config)) *Manager {
	t.Helper()
	cfg := Config{
		Backend: b,
		Coder:   coder.JSON{},
	}
	if mod != nil {
		mod(&cfg)
	}
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

// ==============================
// Cache-aside flow
// ==============================

// TestCacheAsideFlow covers the concrete scenario from the package contract:
// prefix "t:", default expire 60s, f(5) returns {"v":5}, second call served
// without re-invoking f.
func TestCacheAsideFlow(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	m := newTestManager(t, mb, func(c *Config) {
		c.Prefix = "t:"
		c.Expire = 60 * time.Second
	})

	var calls atomic.Int32
	f := Cached1(m, func(_ context.Context, x int) (map[string]int, error) {
		calls.Add(1)
		return map[string]int{"v": x}, nil
	}, WithName("test.f"))

	got, err := f(ctx, 5)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if got["v"] != 5 {
		t.Fatalf("first call value = %v", got)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one invocation, got %d", calls.Load())
	}

	// backend holds the entry under prefix + derived key
	derived, err := DefaultKeyBuilder("test.f", []any{5})
	if err != nil {
		t.Fatalf("DefaultKeyBuilder: %v", err)
	}
	if _, ok, _ := mb.Get(ctx, "t:"+derived); !ok {
		t.Fatalf("backend missing entry %q; keys=%v", "t:"+derived, mb.keys())
	}

	// warm cache: repeated calls never re-invoke
	for i := 0; i < 5; i++ {
		got, err = f(ctx, 5)
		if err != nil || got["v"] != 5 {
			t.Fatalf("warm call %d: got=%v err=%v", i, got, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("warm cache re-invoked wrapped fn: calls=%d", calls.Load())
	}

	// different argument is a different slot
	if _, err := f(ctx, 6); err != nil {
		t.Fatalf("f(6): %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected second invocation for new argument, got %d", calls.Load())
	}
}

// TestErrorNotCached verifies failure isolation: when the wrapped function
// fails, nothing is written and the error reaches the caller unchanged.
func TestErrorNotCached(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	m := newTestManager(t, mb, nil)

	sentinel := errors.New("user lookup failed")
	getUserData := Cached1(m, func(_ context.Context, id int) (string, error) {
		return "", sentinel
	}, WithName("test.getUserData"))

	if _, err := getUserData(ctx, 1); !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped error passthrough, got %v", err)
	}

	derived, _ := DefaultKeyBuilder("test.getUserData", []any{1})
	if _, ok, _ := mb.Get(ctx, derived); ok {
		t.Fatalf("backend holds an entry for a failed computation")
	}
	if len(mb.keys()) != 0 {
		t.Fatalf("backend not empty after failed call: %v", mb.keys())
	}
}

// TestDecodeFallback: a corrupt payload is treated as a miss, re-executed
// and repopulated instead of becoming a permanent error.
func TestDecodeFallback(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	hooks := newRecHooks()
	m := newTestManager(t, mb, func(c *Config) { c.Hooks = hooks })

	var calls atomic.Int32
	f := Cached1(m, func(_ context.Context, x int) (int, error) {
		calls.Add(1)
		return x * 2, nil
	}, WithName("test.double"))

	if _, err := f(ctx, 3); err != nil {
		t.Fatalf("seed call: %v", err)
	}

	// corrupt the stored payload directly in the backend
	derived, _ := DefaultKeyBuilder("test.double", []any{3})
	if err := mb.Set(ctx, derived, []byte("not-json{"), 0); err != nil {
		t.Fatalf("inject corrupt: %v", err)
	}

	got, err := f(ctx, 3)
	if err != nil {
		t.Fatalf("call on corrupt payload: %v", err)
	}
	if got != 6 {
		t.Fatalf("got %d, want 6", got)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected re-execution on decode failure, calls=%d", calls.Load())
	}
	if len(hooks.fallbacks) != 1 {
		t.Fatalf("expected one DecodeFallback event, got %d", len(hooks.fallbacks))
	}

	// entry was repopulated with a valid payload
	if _, err := f(ctx, 3); err != nil {
		t.Fatalf("post-repopulate call: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("repopulated entry did not serve a hit, calls=%d", calls.Load())
	}
}

func TestBackendGetErrorPropagates(t *testing.T) {
	ctx := context.Background()
	ioErr := errors.New("connection refused")
	m := newTestManager(t, &getErrBackend{memBackend: newMemBackend(), err: ioErr}, nil)

	var calls atomic.Int32
	f := Cached(m, func(context.Context) (int, error) {
		calls.Add(1)
		return 1, nil
	})

	_, err := f(ctx)
	var bErr *BackendError
	if !errors.As(err, &bErr) {
		t.Fatalf("expected *BackendError, got %T: %v", err, err)
	}
	if bErr.Op != "get" || !errors.Is(err, ioErr) {
		t.Fatalf("unexpected BackendError: %+v", bErr)
	}
	if calls.Load() != 0 {
		t.Fatalf("wrapped fn must not run when the backend read fails")
	}
}

// TestStoreErrorBestEffort: cache population is best-effort. A failed write
// surfaces via hooks, but the computed value is still returned.
func TestStoreErrorBestEffort(t *testing.T) {
	ctx := context.Background()
	ioErr := errors.New("write timeout")
	hooks := newRecHooks()
	m := newTestManager(t, &setErrBackend{memBackend: newMemBackend(), err: ioErr}, func(c *Config) {
		c.Hooks = hooks
	})

	f := Cached1(m, func(_ context.Context, x int) (int, error) { return x + 1, nil },
		WithName("test.incr"))

	got, err := f(ctx, 41)
	if err != nil {
		t.Fatalf("call with failing write must still succeed, got %v", err)
	}
	if got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
	if len(hooks.storeErrors) != 1 {
		t.Fatalf("expected one StoreError event, got %d", len(hooks.storeErrors))
	}
	var bErr *BackendError
	if !errors.As(hooks.storeErrors[0], &bErr) || bErr.Op != "set" {
		t.Fatalf("StoreError should carry a set BackendError, got %v", hooks.storeErrors[0])
	}
}

func TestEncodeErrorPropagates(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newMemBackend(), nil)

	// JSON cannot encode a channel
	f := Cached(m, func(context.Context) (chan int, error) {
		return make(chan int), nil
	}, WithName("test.badResult"))

	_, err := f(ctx)
	var eErr *EncodeError
	if !errors.As(err, &eErr) {
		t.Fatalf("expected *EncodeError, got %T: %v", err, err)
	}
}

func TestKeyBuildErrorNamesArgument(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newMemBackend(), nil)

	var calls atomic.Int32
	f := Cached2(m, func(_ context.Context, ok string, bad func()) (int, error) {
		calls.Add(1)
		return 0, nil
	}, WithName("test.badArg"))

	_, err := f(ctx, "fine", func() {})
	var kErr *KeyBuildError
	if !errors.As(err, &kErr) {
		t.Fatalf("expected *KeyBuildError, got %T: %v", err, err)
	}
	if kErr.Arg != 1 {
		t.Fatalf("expected offending argument 1, got %d", kErr.Arg)
	}
	if calls.Load() != 0 {
		t.Fatalf("wrapped fn must not run when the key cannot be built")
	}
}

// ==============================
// Expiration
// ==============================

func TestExpireOverride(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newMemBackend(), nil) // no default expiry

	var calls atomic.Int32
	f := Cached(m, func(context.Context) (int, error) {
		calls.Add(1)
		return 7, nil
	}, WithName("test.expiring"), WithExpire(40*time.Millisecond))

	if _, err := f(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := f(ctx); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("warm call re-invoked, calls=%d", calls.Load())
	}

	time.Sleep(60 * time.Millisecond)

	if _, err := f(ctx); err != nil {
		t.Fatalf("post-expiry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expired entry must force re-execution, calls=%d", calls.Load())
	}
}

func TestNoExpiryOverridesManagerDefault(t *testing.T) {
	ctx := context.Background()
	hooks := newRecHooks()
	m := newTestManager(t, newMemBackend(), func(c *Config) {
		c.Expire = 10 * time.Millisecond
		c.Hooks = hooks
	})

	f := Cached(m, func(context.Context) (string, error) { return "pinned", nil },
		WithName("test.pinned"), WithNoExpiry())

	if _, err := f(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for k, ttl := range hooks.stored {
		if ttl != 0 {
			t.Fatalf("WithNoExpiry stored %q with ttl %v", k, ttl)
		}
	}
}

func TestConvenienceExpireOptions(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		opt  Option
		want time.Duration
	}{
		{OneMinute(), time.Minute},
		{OneHour(), time.Hour},
		{OneDay(), 24 * time.Hour},
	}
	for _, tc := range cases {
		hooks := newRecHooks()
		m := newTestManager(t, newMemBackend(), func(c *Config) { c.Hooks = hooks })
		f := Cached(m, func(context.Context) (int, error) { return 1, nil },
			WithName("test.conv"), tc.opt)
		if _, err := f(ctx); err != nil {
			t.Fatalf("call: %v", err)
		}
		for _, ttl := range hooks.stored {
			if ttl != tc.want {
				t.Fatalf("stored ttl = %v, want %v", ttl, tc.want)
			}
		}
	}
}

// ==============================
// Binding overrides
// ==============================

func TestSimpleKeyBuilderSharesOneSlot(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newMemBackend(), nil)

	var calls atomic.Int32
	f := Cached1(m, func(_ context.Context, x int) (int, error) {
		calls.Add(1)
		return x, nil
	}, WithName("test.shared"), WithKeyBuilder(SimpleKeyBuilder))

	first, err := f(ctx, 1)
	if err != nil {
		t.Fatalf("f(1): %v", err)
	}
	second, err := f(ctx, 2)
	if err != nil {
		t.Fatalf("f(2): %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("simple builder must share a slot, calls=%d", calls.Load())
	}
	if first != 1 || second != 1 {
		t.Fatalf("second call should return the cached first value, got %d/%d", first, second)
	}
}

func TestNamespaceShapesKey(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	m := newTestManager(t, mb, func(c *Config) { c.Prefix = "app:" })

	f := Cached(m, func(context.Context) (int, error) { return 1, nil },
		WithName("test.ns"), WithNamespace("users"))
	if _, err := f(ctx); err != nil {
		t.Fatalf("call: %v", err)
	}

	keys := mb.keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], "app:users:") {
		t.Fatalf("expected key under app:users:, got %v", keys)
	}
}

func TestCoderOverridePerBinding(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	m := newTestManager(t, mb, nil) // manager coder: JSON

	var calls atomic.Int32
	f := Cached(m, func(context.Context) (string, error) {
		calls.Add(1)
		return "plain", nil
	}, WithName("test.str"), WithCoder(coder.String{}))

	if _, err := f(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := f(ctx)
	if err != nil || got != "plain" || calls.Load() != 1 {
		t.Fatalf("override round-trip: got=%q err=%v calls=%d", got, err, calls.Load())
	}

	// stored payload is the raw string, not JSON-quoted
	keys := mb.keys()
	if len(keys) != 1 {
		t.Fatalf("expected one entry, got %v", keys)
	}
	raw, _, _ := mb.Get(ctx, keys[0])
	if string(raw) != "plain" {
		t.Fatalf("String coder payload = %q", raw)
	}
}

// ==============================
// Concurrency
// ==============================

// TestConcurrentMissesBothExecute documents the default semantics: no
// implicit per-key lock, concurrent misses each execute and the last writer
// wins at the storage layer.
func TestConcurrentMissesBothExecute(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newMemBackend(), nil)

	var calls atomic.Int32
	var barrier sync.WaitGroup
	barrier.Add(2) // both callers must be inside fn before either returns

	f := Cached(m, func(context.Context) (int, error) {
		calls.Add(1)
		barrier.Done()
		barrier.Wait()
		return 1, nil
	}, WithName("test.race"))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f(ctx); err != nil {
				t.Errorf("concurrent call: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 2 {
		t.Fatalf("expected both concurrent misses to execute, calls=%d", calls.Load())
	}
}

func TestSharedExecutionSingleInvocation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newMemBackend(), nil)

	var calls atomic.Int32
	release := make(chan struct{})
	f := Cached(m, func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 99, nil
	}, WithName("test.flight"), WithSharedExecution())

	const n = 8
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := f(ctx)
			if err != nil {
				t.Errorf("shared call: %v", err)
			}
			results[i] = v
		}(i)
	}

	// let every goroutine join the in-flight execution
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("shared execution invoked fn %d times", calls.Load())
	}
	for i, v := range results {
		if v != 99 {
			t.Fatalf("caller %d got %d, want 99", i, v)
		}
	}
}

// ==============================
// Process-wide default manager
// ==============================

func TestDefaultManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(Reset)
	Reset()

	var calls atomic.Int32
	f := Cached1(nil, func(_ context.Context, x int) (int, error) {
		calls.Add(1)
		return x, nil
	}, WithName("test.global"))

	// before Init every decorated call fails
	if _, err := f(ctx, 1); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := Default(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Default before Init should fail")
	}

	mb := newMemBackend()
	if err := Init(Config{Backend: mb, Coder: coder.JSON{}, Prefix: "g:"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := f(ctx, 1); err != nil {
		t.Fatalf("call after Init: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls=%d", calls.Load())
	}

	// re-Init replaces the whole configuration: new backend => cold cache
	if err := Init(Config{Backend: newMemBackend(), Coder: coder.JSON{}}); err != nil {
		t.Fatalf("re-Init: %v", err)
	}
	if _, err := f(ctx, 1); err != nil {
		t.Fatalf("call after re-Init: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("re-Init should have replaced the backend, calls=%d", calls.Load())
	}

	Reset()
	if _, err := f(ctx, 1); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized after Reset, got %v", err)
	}
}
