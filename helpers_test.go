package doccache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/doccache/store"
	"github.com/unkn0wn-root/doccache/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// spyStore wraps the memory store, counting calls and injecting failures.
type spyStore struct {
	*memory.Store

	finds, upserts, deletes, extends, sweeps atomic.Int64

	failFind  error
	failWrite error
	failSweep error

	sweepGate  chan struct{} // when non-nil, DeleteExpiredBefore blocks until closed
	sweepCalls chan time.Time
	sweepPanic bool
	lastExtend atomic.Pointer[time.Time]
}

var _ store.Store = (*spyStore)(nil)

func newSpyStore() *spyStore {
	return &spyStore{Store: memory.New(), sweepCalls: make(chan time.Time, 64)}
}

func (s *spyStore) FindByKey(ctx context.Context, key string, includeValue bool) (*store.Record, error) {
	s.finds.Add(1)
	if s.failFind != nil {
		return nil, store.Fail("spy", "find", key, s.failFind)
	}
	if err := ctx.Err(); err != nil {
		return nil, store.Fail("spy", "find", key, err)
	}
	return s.Store.FindByKey(ctx, key, includeValue)
}

func (s *spyStore) UpsertReplace(ctx context.Context, rec store.Record) error {
	s.upserts.Add(1)
	if s.failWrite != nil {
		return store.Fail("spy", "upsert", rec.Key, s.failWrite)
	}
	return s.Store.UpsertReplace(ctx, rec)
}

func (s *spyStore) DeleteByKey(ctx context.Context, key string) error {
	s.deletes.Add(1)
	if s.failWrite != nil {
		return store.Fail("spy", "delete", key, s.failWrite)
	}
	return s.Store.DeleteByKey(ctx, key)
}

func (s *spyStore) ExtendExpiry(ctx context.Context, key string, expiresAt time.Time) error {
	s.extends.Add(1)
	s.lastExtend.Store(&expiresAt)
	if s.failWrite != nil {
		return store.Fail("spy", "extend", key, s.failWrite)
	}
	return s.Store.ExtendExpiry(ctx, key, expiresAt)
}

func (s *spyStore) DeleteExpiredBefore(ctx context.Context, now time.Time) error {
	s.sweeps.Add(1)
	defer func() { s.sweepCalls <- now }()
	if s.sweepGate != nil {
		<-s.sweepGate
	}
	if s.sweepPanic {
		panic("sweep exploded")
	}
	if s.failSweep != nil {
		return store.Fail("spy", "sweep", "", s.failSweep)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.DeleteExpiredBefore(ctx, now)
}

func (s *spyStore) waitSweep(t *testing.T) time.Time {
	t.Helper()
	select {
	case at := <-s.sweepCalls:
		return at
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a sweep")
		return time.Time{}
	}
}

func (s *spyStore) noSweep(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case at := <-s.sweepCalls:
		t.Fatalf("unexpected sweep with cutoff %v", at)
	case <-time.After(within):
	}
}

// recordingHooks counts every hook call.
type recordingHooks struct {
	expiredOnRead, started, completed, failed, coalesced, selfHeal atomic.Int64

	mu      sync.Mutex
	lastErr error
	healed  []string
}

var _ Hooks = (*recordingHooks)(nil)

func (h *recordingHooks) ExpiredOnRead(string)                    { h.expiredOnRead.Add(1) }
func (h *recordingHooks) SweepStarted(time.Time)                  { h.started.Add(1) }
func (h *recordingHooks) SweepCompleted(time.Time, time.Duration) { h.completed.Add(1) }
func (h *recordingHooks) SweepCoalesced()                         { h.coalesced.Add(1) }

func (h *recordingHooks) SweepFailed(_ time.Time, err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
	h.failed.Add(1)
}

func (h *recordingHooks) SelfHeal(key, reason string) {
	h.mu.Lock()
	h.healed = append(h.healed, key+":"+reason)
	h.mu.Unlock()
	h.selfHeal.Add(1)
}

func newTestCache(t *testing.T, st store.Store, clk *fakeClock, optsOpt func(*Options)) *cache {
	t.Helper()
	opts := Options{
		Store:        st,
		Clock:        clk.Now,
		ScanInterval: time.Minute,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	c, err := newCache(opts)
	if err != nil {
		t.Fatalf("newCache: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c
}

func mustGet(t *testing.T, c Cache, key string) ([]byte, bool) {
	t.Helper()
	v, ok, err := c.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	return v, ok
}

func mustSet(t *testing.T, c Cache, key string, v []byte, opts EntryOptions) {
	t.Helper()
	if err := c.Set(context.Background(), key, v, opts); err != nil {
		t.Fatalf("Set(%q): %v", key, err)
	}
}

var errBoom = errors.New("connection refused")
