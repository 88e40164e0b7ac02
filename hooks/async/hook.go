// Package asynchook decouples hook consumers from the decorator's hot path.
// Events are enqueued into a bounded channel and delivered by worker
// goroutines; when the queue is full the event is dropped, never blocked on.
//
// usage:
//
//	raw := sloghook.New(slog.Default(), sloghook.Options{HitEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	fncache.Init(fncache.Config{ ..., Hooks: hooks })
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/fncache"
)

type kind uint8

const (
	evHit kind = iota
	evMiss
	evDecodeFallback
	evStored
	evStoreError
)

type event struct {
	kind kind
	key  string
	ttl  time.Duration
	err  error
}

type Hooks struct {
	inner fncache.Hooks
	ch    chan event
	wg    sync.WaitGroup

	closeOnce sync.Once
}

var _ fncache.Hooks = (*Hooks)(nil)

// New starts workers goroutines draining a queue of size queueLen.
// workers < 1 is treated as 1.
func New(inner fncache.Hooks, workers, queueLen int) *Hooks {
	if workers < 1 {
		workers = 1
	}
	if queueLen < 1 {
		queueLen = 256
	}
	h := &Hooks{
		inner: inner,
		ch:    make(chan event, queueLen),
	}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go h.worker()
	}
	return h
}

// Close stops accepting events and waits for the queue to drain.
func (h *Hooks) Close() {
	h.closeOnce.Do(func() {
		close(h.ch)
		h.wg.Wait()
	})
}

func (h *Hooks) worker() {
	defer h.wg.Done()
	for ev := range h.ch {
		switch ev.kind {
		case evHit:
			h.inner.Hit(ev.key)
		case evMiss:
			h.inner.Miss(ev.key)
		case evDecodeFallback:
			h.inner.DecodeFallback(ev.key, ev.err)
		case evStored:
			h.inner.Stored(ev.key, ev.ttl)
		case evStoreError:
			h.inner.StoreError(ev.key, ev.err)
		}
	}
}

// enqueue never blocks; a full queue drops the event.
func (h *Hooks) enqueue(ev event) {
	defer func() {
		// sending on a closed channel after Close; drop
		_ = recover()
	}()
	select {
	case h.ch <- ev:
	default:
	}
}

func (h *Hooks) Hit(key string)  { h.enqueue(event{kind: evHit, key: key}) }
func (h *Hooks) Miss(key string) { h.enqueue(event{kind: evMiss, key: key}) }

func (h *Hooks) DecodeFallback(key string, err error) {
	h.enqueue(event{kind: evDecodeFallback, key: key, err: err})
}

func (h *Hooks) Stored(key string, ttl time.Duration) {
	h.enqueue(event{kind: evStored, key: key, ttl: ttl})
}

func (h *Hooks) StoreError(key string, err error) {
	h.enqueue(event{kind: evStoreError, key: key, err: err})
}
