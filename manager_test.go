package fncache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unkn0wn-root/fncache/coder"
)

func TestNewValidation(t *testing.T) {
	var cfgErr *ConfigurationError

	if _, err := New(Config{Coder: coder.JSON{}}); !errors.As(err, &cfgErr) {
		t.Fatalf("missing backend: got %v", err)
	}
	if _, err := New(Config{Backend: newMemBackend()}); !errors.As(err, &cfgErr) {
		t.Fatalf("missing coder: got %v", err)
	}

	m, err := New(Config{Backend: newMemBackend(), Coder: coder.JSON{}})
	if err != nil {
		t.Fatalf("minimal config: %v", err)
	}
	if m.KeyBuilder() == nil {
		t.Fatal("nil KeyBuilder should default")
	}
	if m.Prefix() != "" || m.Expire() != 0 {
		t.Fatalf("unexpected defaults: prefix=%q expire=%v", m.Prefix(), m.Expire())
	}
}

func TestManagerPassthroughOps(t *testing.T) {
	ctx := context.Background()
	mb := newMemBackend()
	m := newTestManager(t, mb, func(c *Config) { c.Prefix = "p:" })

	if err := m.Set(ctx, "users:1", []byte("alice"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// prefix is applied transparently on both sides
	if _, ok, _ := mb.Get(ctx, "p:users:1"); !ok {
		t.Fatalf("backend keys = %v, want p:users:1", mb.keys())
	}
	v, ok, err := m.Get(ctx, "users:1")
	if err != nil || !ok || string(v) != "alice" {
		t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
	}

	ok, err = m.Exists(ctx, "users:1")
	if err != nil || !ok {
		t.Fatalf("Exists: ok=%v err=%v", ok, err)
	}

	m.Set(ctx, "users:2", []byte("bob"), 0)
	m.Set(ctx, "orders:1", []byte("x"), 0)

	n, err := m.Clear(ctx, "users:")
	if err != nil || n != 2 {
		t.Fatalf("Clear(users:) = %d, %v; want 2", n, err)
	}
	if ok, _ := m.Exists(ctx, "orders:1"); !ok {
		t.Fatal("Clear removed keys outside the namespace")
	}

	n, err = m.Clear(ctx, "")
	if err != nil || n != 1 {
		t.Fatalf("Clear(all) = %d, %v; want 1", n, err)
	}
}

func TestManagerWrapsBackendErrors(t *testing.T) {
	ctx := context.Background()
	ioErr := errors.New("down")
	m := newTestManager(t, &getErrBackend{memBackend: newMemBackend(), err: ioErr}, nil)

	_, _, err := m.Get(ctx, "k")
	var bErr *BackendError
	if !errors.As(err, &bErr) || bErr.Op != "get" || !errors.Is(err, ioErr) {
		t.Fatalf("Get error = %v", err)
	}

	m = newTestManager(t, &setErrBackend{memBackend: newMemBackend(), err: ioErr}, nil)
	err = m.Set(ctx, "k", []byte("v"), 0)
	if !errors.As(err, &bErr) || bErr.Op != "set" {
		t.Fatalf("Set error = %v", err)
	}
}

func TestEffectiveTTL(t *testing.T) {
	m := newTestManager(t, newMemBackend(), func(c *Config) { c.Expire = time.Minute })

	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, time.Minute},        // fall back to manager default
		{-1, 0},                 // negative forces "no expiry"
		{time.Second, time.Second},
	}
	for _, tc := range cases {
		if got := m.effectiveTTL(tc.in); got != tc.want {
			t.Errorf("effectiveTTL(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
