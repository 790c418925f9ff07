// Package asynchook moves hook delivery off the cache's foreground paths.
//
//	raw := sloghook.New(slog.Default(), sloghook.Options{ExpiredOnReadEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := doccache.New(doccache.Options{Store: st, Hooks: hooks})
//
// Events are dropped, never blocked on, when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/doccache"
)

type Hooks struct {
	inner   doccache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends on q
	closed  bool
	dropped atomic.Uint64
}

var _ doccache.Hooks = (*Hooks)(nil)

func New(inner doccache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events emitted after
// Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was full
// or the hooks were closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) ExpiredOnRead(k string)        { h.try(func() { h.inner.ExpiredOnRead(k) }) }
func (h *Hooks) SweepStarted(cutoff time.Time) { h.try(func() { h.inner.SweepStarted(cutoff) }) }
func (h *Hooks) SweepCoalesced()               { h.try(func() { h.inner.SweepCoalesced() }) }
func (h *Hooks) SelfHeal(k, r string)          { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) SweepCompleted(cutoff time.Time, took time.Duration) {
	h.try(func() { h.inner.SweepCompleted(cutoff, took) })
}
func (h *Hooks) SweepFailed(cutoff time.Time, err error) {
	h.try(func() { h.inner.SweepFailed(cutoff, err) })
}
