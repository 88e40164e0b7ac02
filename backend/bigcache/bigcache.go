// Package bigcache provides an in-process Backend on top of
// allegro/bigcache. BigCache has no per-entry TTL; every entry lives for
// the configured global LifeWindow, so per-binding expire overrides are
// ignored by this backend.
package bigcache

import (
	"context"
	"strings"
	"time"

	bc "github.com/allegro/bigcache/v3"

	be "github.com/unkn0wn-root/fncache/backend"
)

type Backend struct {
	c *bc.BigCache
}

var _ be.Backend = (*Backend)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Backend, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Backend{c: c}, nil
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := b.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	return v, err == nil, err
}

func (b *Backend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	// per-entry TTL unsupported; global LifeWindow applies
	return b.c.Set(key, value)
}

func (b *Backend) Clear(_ context.Context, prefix string) (int, error) {
	if prefix == "" {
		n := b.c.Len()
		if err := b.c.Reset(); err != nil {
			return 0, err
		}
		return n, nil
	}

	// collect first; deleting while iterating is undefined
	var keys []string
	it := b.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue // entry evicted mid-iteration
		}
		if strings.HasPrefix(info.Key(), prefix) {
			keys = append(keys, info.Key())
		}
	}
	n := 0
	for _, k := range keys {
		if err := b.c.Delete(k); err == nil {
			n++
		}
	}
	return n, nil
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

func (b *Backend) Close(_ context.Context) error {
	return b.c.Close()
}
