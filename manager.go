package fncache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/fncache/backend"
	"github.com/unkn0wn-root/fncache/coder"
)

// Config tunes a Manager. Backend and Coder are required; everything else
// has sensible defaults.
type Config struct {
	// Required
	Backend backend.Backend
	Coder   coder.Coder

	KeyBuilder KeyBuilder    // nil => DefaultKeyBuilder
	Prefix     string        // prepended to every derived key; default ""
	Expire     time.Duration // default TTL for decorated entries; 0 => no expiry
	Logger     Logger        // nil => NopLogger
	Hooks      Hooks         // nil => NopHooks
}

// Manager holds the configuration a decorated function resolves on each
// call: the active backend, coder, key builder, key prefix and default
// expiry. A Manager is immutable after New; share one across goroutines.
type Manager struct {
	backend    backend.Backend
	coder      coder.Coder
	keyBuilder KeyBuilder
	prefix     string
	expire     time.Duration
	log        Logger
	hooks      Hooks
}

// New constructs a Manager. It returns *ConfigurationError when Backend or
// Coder is missing.
func New(cfg Config) (*Manager, error) {
	if cfg.Backend == nil {
		return nil, &ConfigurationError{Reason: "backend is required"}
	}
	if cfg.Coder == nil {
		return nil, &ConfigurationError{Reason: "coder is required"}
	}

	m := &Manager{
		backend: cfg.Backend,
		coder:   cfg.Coder,
		prefix:  cfg.Prefix,
		expire:  cfg.Expire,
	}
	m.keyBuilder = cfg.KeyBuilder
	if m.keyBuilder == nil {
		m.keyBuilder = DefaultKeyBuilder
	}
	m.log = coalesce[Logger](cfg.Logger, NopLogger{})
	m.hooks = coalesce[Hooks](cfg.Hooks, NopHooks{})
	return m, nil
}

// Backend returns the configured backend.
func (m *Manager) Backend() backend.Backend { return m.backend }

// Coder returns the configured coder.
func (m *Manager) Coder() coder.Coder { return m.coder }

// KeyBuilder returns the configured key builder.
func (m *Manager) KeyBuilder() KeyBuilder { return m.keyBuilder }

// Prefix returns the configured key prefix.
func (m *Manager) Prefix() string { return m.prefix }

// Expire returns the default expiry; 0 means entries have no TTL.
func (m *Manager) Expire() time.Duration { return m.expire }

// Get reads a raw payload. The key is prefixed like decorated keys are.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool, error) {
	k := m.prefix + key
	raw, ok, err := m.backend.Get(ctx, k)
	if err != nil {
		return nil, false, &BackendError{Op: "get", Key: k, Err: err}
	}
	return raw, ok, nil
}

// Set writes a raw payload under the prefixed key. expire == 0 falls back
// to the manager default; pass a negative expire to force "no TTL".
func (m *Manager) Set(ctx context.Context, key string, value []byte, expire time.Duration) error {
	k := m.prefix + key
	if err := m.backend.Set(ctx, k, value, m.effectiveTTL(expire)); err != nil {
		return &BackendError{Op: "set", Key: k, Err: err}
	}
	return nil
}

// Exists reports whether the prefixed key currently holds an entry.
func (m *Manager) Exists(ctx context.Context, key string) (bool, error) {
	k := m.prefix + key
	ok, err := m.backend.Exists(ctx, k)
	if err != nil {
		return false, &BackendError{Op: "exists", Key: k, Err: err}
	}
	return ok, nil
}

// Clear removes all entries under prefix+namespace; an empty namespace
// clears everything under the manager prefix. Returns the removed count
// where the backend can report it.
func (m *Manager) Clear(ctx context.Context, namespace string) (int, error) {
	p := m.prefix + namespace
	n, err := m.backend.Clear(ctx, p)
	if err != nil {
		return n, &BackendError{Op: "clear", Key: p, Err: err}
	}
	return n, nil
}

// Close releases the backend's resources.
func (m *Manager) Close(ctx context.Context) error {
	return m.backend.Close(ctx)
}

func (m *Manager) effectiveTTL(expire time.Duration) time.Duration {
	switch {
	case expire == 0:
		return m.expire
	case expire < 0:
		return 0 // forced "no expiry"
	default:
		return expire
	}
}

// The process-wide default manager. Init swaps the whole configuration in
// one atomic store, so readers always observe a complete snapshot.
var defaultManager atomic.Pointer[Manager]

// Init installs the process-wide default Manager used by decorated
// functions created with a nil *Manager. Call it once at startup, before
// any decorated call executes; calling it again fully replaces the prior
// configuration (useful in tests).
func Init(cfg Config) error {
	m, err := New(cfg)
	if err != nil {
		return err
	}
	defaultManager.Store(m)
	return nil
}

// Reset clears the process-wide default back to uninitialized. Intended for
// test isolation; must not race in-flight decorated calls.
func Reset() {
	defaultManager.Store(nil)
}

// Default returns the process-wide Manager, or ErrNotInitialized when Init
// has not run.
func Default() (*Manager, error) {
	m := defaultManager.Load()
	if m == nil {
		return nil, ErrNotInitialized
	}
	return m, nil
}
