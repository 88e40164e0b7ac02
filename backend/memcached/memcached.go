// Package memcached provides a Backend on top of bradfitz/gomemcache.
//
// Memcached cannot enumerate keys, so Clear with a prefix reports
// ErrClearUnsupported; clearing everything flushes the whole server and
// reports CountUnknown. Keep cache data on a dedicated instance if you rely
// on Clear.
package memcached

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	be "github.com/unkn0wn-root/fncache/backend"
)

var ErrNoServers = errors.New("memcached backend: no client and no servers")

// Memcached treats exptime above 30 days as an absolute unix timestamp, so
// per-item TTLs are capped to relative range.
const maxRelativeTTL = 30 * 24 * time.Hour

type Backend struct {
	mc *memcache.Client
}

var _ be.Backend = (*Backend)(nil)

type Config struct {
	// Client is an existing client to ride on. Takes precedence over Servers.
	Client *memcache.Client
	// Servers are host:port addresses used to build a client when Client
	// is nil.
	Servers []string
	// Timeout is the socket timeout for clients built from Servers.
	// 0 keeps the gomemcache default.
	Timeout time.Duration
}

func New(cfg Config) (*Backend, error) {
	switch {
	case cfg.Client != nil:
		return &Backend{mc: cfg.Client}, nil
	case len(cfg.Servers) > 0:
		mc := memcache.New(cfg.Servers...)
		if cfg.Timeout > 0 {
			mc.Timeout = cfg.Timeout
		}
		return &Backend{mc: mc}, nil
	default:
		return nil, ErrNoServers
	}
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	it, err := b.mc.Get(key)
	if err == memcache.ErrCacheMiss {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it.Value, true, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return b.mc.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: exptime(ttl),
	})
}

func (b *Backend) Clear(_ context.Context, prefix string) (int, error) {
	if prefix != "" {
		return 0, be.ErrClearUnsupported
	}
	if err := b.mc.FlushAll(); err != nil {
		return 0, err
	}
	return be.CountUnknown, nil
}

// Exists is derived from Get; memcached has no cheaper probe.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

func (b *Backend) Close(context.Context) error {
	return b.mc.Close()
}

func exptime(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0 // no expiry
	}
	if ttl > maxRelativeTTL {
		ttl = maxRelativeTTL
	}
	secs := int64(math.Ceil(ttl.Seconds()))
	return int32(secs)
}
