// Package ristretto provides an in-process Backend on top of
// dgraph-io/ristretto. Writes are admission-controlled: under memory
// pressure ristretto may silently drop a Set, which the cache-aside flow
// tolerates (the next call recomputes).
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	be "github.com/unkn0wn-root/fncache/backend"
)

type Backend struct {
	c *rc.Cache
}

var _ be.Backend = (*Backend)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Backend, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	payload, _ := v.([]byte)
	if payload == nil {
		// drop unexpected entry shape
		b.c.Del(key)
		return nil, false, nil
	}
	return payload, true, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cost := int64(len(value))
	if ttl > 0 {
		b.c.SetWithTTL(key, value, cost, ttl)
	} else {
		b.c.Set(key, value, cost)
	}
	return nil
}

// Clear can only drop the whole cache; ristretto does not enumerate keys,
// so a prefix clear reports ErrClearUnsupported.
func (b *Backend) Clear(_ context.Context, prefix string) (int, error) {
	if prefix != "" {
		return 0, be.ErrClearUnsupported
	}
	b.c.Clear()
	return be.CountUnknown, nil
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

func (b *Backend) Close(_ context.Context) error {
	b.c.Wait()
	b.c.Close()
	return nil
}

// Metrics exposes ristretto's counters if enabled in Config. Not part of
// the Backend interface.
func (b *Backend) Metrics() *rc.Metrics { return b.c.Metrics }
