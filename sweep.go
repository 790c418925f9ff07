package doccache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/doccache/store"
)

const sweepFlightKey = "sweep"

// sweeper removes logically expired records in the background.
//
// lastSweep is the only state: a check that finds it stale must win a CAS
// on it before dispatching, so concurrent callers racing in the same window
// produce at most one sweep. The singleflight group collapses the rare case
// where a new window opens while the previous sweep is still running.
type sweeper struct {
	st       store.Store
	interval time.Duration
	timeout  time.Duration
	log      Logger
	hooks    Hooks
	clock    func() time.Time

	lastSweep atomic.Int64 // unix nanos
	flight    singleflight.Group
	inflight  sync.WaitGroup
	mu        sync.RWMutex // guards closed against inflight.Add
	closed    bool

	// optional dedicated ticker
	ticker    *time.Ticker
	stopCh    chan struct{}
	loopWg    sync.WaitGroup
	closeOnce sync.Once
}

func newSweeper(st store.Store, interval, timeout time.Duration, log Logger, hooks Hooks, clock func() time.Time) *sweeper {
	s := &sweeper{
		st:       st,
		interval: positiveOr(interval, defaultScanInterval),
		timeout:  positiveOr(timeout, defaultSweepTimeout),
		log:      log,
		hooks:    hooks,
		clock:    clock,
	}
	s.lastSweep.Store(clock().UnixNano())
	return s
}

// maybeSweep dispatches a detached sweep when more than one interval has
// passed since the last one. It never blocks on the store.
func (s *sweeper) maybeSweep(now time.Time) bool {
	last := s.lastSweep.Load()
	if last+int64(s.interval) >= now.UnixNano() {
		return false
	}
	if !s.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		// another caller won this window
		return false
	}
	return s.dispatch(now)
}

// dispatch hands a sweep to a detached goroutine. It reports false once the
// sweeper is closed.
func (s *sweeper) dispatch(cutoff time.Time) bool {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false
	}
	s.inflight.Add(1)
	s.mu.RUnlock()

	go func() {
		defer s.inflight.Done()
		ran := false
		_, _, _ = s.flight.Do(sweepFlightKey, func() (any, error) {
			ran = true
			s.run(cutoff)
			return nil, nil
		})
		if !ran {
			s.hooks.SweepCoalesced()
			s.log.Debug("sweep coalesced with in-flight sweep", Fields{"cutoff": cutoff})
		}
	}()
	return true
}

// run owns its own context: caller cancellation must not reach a sweep
// that has already been handed off.
func (s *sweeper) run(cutoff time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.hooks.SweepStarted(cutoff)
	start := time.Now()
	err := s.deleteExpired(ctx, cutoff)
	took := time.Since(start)
	if err != nil {
		s.hooks.SweepFailed(cutoff, err)
		s.log.Warn("sweep failed; expired records left for a later sweep", Fields{"cutoff": cutoff, "err": err})
		return
	}
	s.hooks.SweepCompleted(cutoff, took)
	s.log.Debug("sweep completed", Fields{"cutoff": cutoff, "took": took})
}

func (s *sweeper) deleteExpired(ctx context.Context, cutoff time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("doccache: sweep panic: %v", r)
		}
	}()
	return s.st.DeleteExpiredBefore(ctx, cutoff)
}

// sweepNow runs a sweep in the caller's goroutine and returns its error.
func (s *sweeper) sweepNow(ctx context.Context, now time.Time) error {
	s.lastSweep.Store(now.UnixNano())
	_, err, _ := s.flight.Do(sweepFlightKey, func() (any, error) {
		return nil, s.deleteExpired(ctx, now)
	})
	return err
}

// startLoop sweeps on a fixed cadence regardless of traffic.
func (s *sweeper) startLoop() {
	s.ticker = time.NewTicker(s.interval)
	s.stopCh = make(chan struct{})
	s.loopWg.Add(1)
	go s.loop()
}

func (s *sweeper) loop() {
	defer s.loopWg.Done()
	for {
		select {
		case <-s.ticker.C:
			now := s.clock()
			s.lastSweep.Store(now.UnixNano())
			s.dispatch(now)
		case <-s.stopCh:
			return
		}
	}
}

// close stops the loop and waits for dispatched sweeps, bounded by ctx.
func (s *sweeper) close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.loopWg.Wait()
		}
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
