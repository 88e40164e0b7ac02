// Package redis provides a Backend on top of go-redis. A UniversalClient
// covers both a single node and a cluster given an address list.
package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	be "github.com/unkn0wn-root/fncache/backend"
)

var ErrNoClient = errors.New("redis backend: no client and no addresses")

type Backend struct {
	rdb         goredis.UniversalClient
	closeClient bool
	scanCount   int64
}

var _ be.Backend = (*Backend)(nil)

type Config struct {
	// Client is an existing client to ride on. Takes precedence over Addrs.
	Client goredis.UniversalClient
	// CloseClient releases Client on Close. Set true only if this backend
	// exclusively owns it. Clients built from Addrs are always owned.
	CloseClient bool

	// Addrs builds a new UniversalClient when Client is nil: one address
	// for a single node, several for a cluster.
	Addrs    []string
	Username string
	Password string
	DB       int // single-node only

	// ScanCount is the COUNT hint used by Clear's SCAN loop. 0 => 100.
	ScanCount int64
}

func New(cfg Config) (*Backend, error) {
	b := &Backend{scanCount: cfg.ScanCount}
	if b.scanCount <= 0 {
		b.scanCount = 100
	}
	switch {
	case cfg.Client != nil:
		b.rdb = cfg.Client
		b.closeClient = cfg.CloseClient
	case len(cfg.Addrs) > 0:
		b.rdb = goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		b.closeClient = true
	default:
		return nil, ErrNoClient
	}
	return b, nil
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := b.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return v, true, nil
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // non-positive TTL means "no expiry" per backend contract
	}
	return b.rdb.Set(ctx, key, value, ttl).Err()
}

// Clear walks the keyspace with SCAN (never KEYS) and deletes matches.
// On a cluster client every master is visited, since SCAN issued through
// the cluster client only reaches one node.
func (b *Backend) Clear(ctx context.Context, prefix string) (int, error) {
	match := prefix + "*"
	if cc, ok := b.rdb.(*goredis.ClusterClient); ok {
		// Deletes go one key at a time here: a multi-key DEL whose keys
		// hash to different slots is a CROSSSLOT error.
		var removed atomic.Int64
		err := cc.ForEachMaster(ctx, func(ctx context.Context, shard *goredis.Client) error {
			iter := shard.Scan(ctx, 0, match, b.scanCount).Iterator()
			for iter.Next(ctx) {
				n, err := shard.Del(ctx, iter.Val()).Result()
				removed.Add(n)
				if err != nil {
					return err
				}
			}
			return iter.Err()
		})
		return int(removed.Load()), err
	}

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := b.rdb.Scan(ctx, cursor, match, b.scanCount).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := b.rdb.Del(ctx, keys...).Result()
			removed += int(n)
			if err != nil {
				return removed, err
			}
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close releases the underlying client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (b *Backend) Close(context.Context) error {
	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
