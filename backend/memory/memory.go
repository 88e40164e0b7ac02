// Package memory provides an in-process Backend backed by a plain map.
// Expired entries are dropped lazily on access and by an optional janitor
// goroutine.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	be "github.com/unkn0wn-root/fncache/backend"
)

type entry struct {
	value []byte
	exp   time.Time // zero => no TTL
}

type Backend struct {
	mu     sync.RWMutex
	m      map[string]entry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

var _ be.Backend = (*Backend)(nil)

type Config struct {
	// CleanupInterval is the janitor cadence for dropping expired entries
	// that are never read again. 0 disables the janitor; expired entries
	// are then only dropped when accessed.
	CleanupInterval time.Duration
}

func New(cfg Config) *Backend {
	b := &Backend{m: make(map[string]entry)}
	if cfg.CleanupInterval > 0 {
		b.ticker = time.NewTicker(cfg.CleanupInterval)
		b.stopCh = make(chan struct{})
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for {
				select {
				case <-b.ticker.C:
					b.sweep()
				case <-b.stopCh:
					return
				}
			}
		}()
	}
	return b
}

func (b *Backend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	e, ok := b.m[key]
	b.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(time.Now()) {
		b.mu.Lock()
		// re-check under the write lock; a fresh Set may have raced in
		if cur, ok := b.m[key]; ok && cur.expired(time.Now()) {
			delete(b.m, key)
		}
		b.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *Backend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	b.mu.Lock()
	b.m[key] = entry{value: value, exp: exp}
	b.mu.Unlock()
	return nil
}

func (b *Backend) Clear(_ context.Context, prefix string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prefix == "" {
		n := len(b.m)
		b.m = make(map[string]entry)
		return n, nil
	}
	n := 0
	for k := range b.m {
		if strings.HasPrefix(k, prefix) {
			delete(b.m, k)
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
	b.closeOnce.Do(func() {
		if b.stopCh != nil {
			close(b.stopCh)
			b.ticker.Stop()
			b.wg.Wait()
		}
	})
	return nil
}

// Len reports the number of stored entries, expired or not. Test helper.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.m)
}

func (b *Backend) sweep() {
	now := time.Now()
	b.mu.Lock()
	for k, e := range b.m {
		if e.expired(now) {
			delete(b.m, k)
		}
	}
	b.mu.Unlock()
}

func (e entry) expired(now time.Time) bool {
	return !e.exp.IsZero() && now.After(e.exp)
}
