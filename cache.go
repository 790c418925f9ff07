package doccache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/doccache/store"
)

type cache struct {
	st      store.Store
	log     Logger
	hooks   Hooks
	clock   func() time.Time
	enabled bool
	closed  atomic.Bool
	sweep   *sweeper
}

func newCache(opts Options) (*cache, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("doccache: %w: store is required", ErrInvalidConfiguration)
	}

	c := &cache{
		st:      opts.Store,
		enabled: !opts.Disabled,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	if opts.Clock != nil {
		c.clock = opts.Clock
	} else {
		c.clock = time.Now
	}

	c.sweep = newSweeper(c.st, opts.ScanInterval, opts.SweepTimeout, c.log, c.hooks, c.clock)
	if c.enabled && opts.BackgroundSweep {
		c.sweep.startLoop()
	}
	return c, nil
}

func (c *cache) Enabled() bool { return c.enabled }

func (c *cache) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}
	// let in-flight sweeps finish before the store goes away
	serr := c.sweep.close(ctx)
	return errors.Join(serr, c.st.Close(ctx))
}

func (c *cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := c.check(key); err != nil {
		return nil, false, err
	}
	if !c.enabled {
		return nil, false, nil
	}
	now := c.clock()
	rec, err := c.read(ctx, key, now, true)
	if err != nil {
		return nil, false, err
	}
	c.sweep.maybeSweep(now)
	if rec == nil {
		return nil, false, nil
	}
	if rec.Value == nil {
		return []byte{}, true, nil
	}
	return rec.Value, true, nil
}

func (c *cache) Refresh(ctx context.Context, key string) error {
	if err := c.check(key); err != nil {
		return err
	}
	if !c.enabled {
		return nil
	}
	now := c.clock()
	if _, err := c.read(ctx, key, now, false); err != nil {
		return err
	}
	c.sweep.maybeSweep(now)
	return nil
}

func (c *cache) Set(ctx context.Context, key string, value []byte, opts EntryOptions) error {
	if err := c.check(key); err != nil {
		return err
	}
	if value == nil {
		return ErrInvalidValue
	}
	if !c.enabled {
		return nil
	}
	now := c.clock()
	exp, err := ResolveSetExpiration(now, opts)
	if err != nil {
		var ee *ExpirationError
		if errors.As(err, &ee) {
			ee.Key = key
		}
		return err
	}
	rec := store.Record{
		Key:                      key,
		Value:                    value,
		AbsoluteExpiration:       exp.AbsoluteExpiration,
		SlidingExpirationSeconds: exp.SlidingExpirationSeconds,
		ExpiresAt:                exp.ExpiresAt,
	}
	if err := c.st.UpsertReplace(ctx, rec); err != nil {
		return err
	}
	c.sweep.maybeSweep(now)
	return nil
}

func (c *cache) Remove(ctx context.Context, key string) error {
	if err := c.check(key); err != nil {
		return err
	}
	if !c.enabled {
		return nil
	}
	now := c.clock()
	if err := c.st.DeleteByKey(ctx, key); err != nil {
		return err
	}
	c.sweep.maybeSweep(now)
	return nil
}

func (c *cache) Sweep(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.enabled {
		return nil
	}
	return c.sweep.sweepNow(ctx, c.clock())
}

func (c *cache) GetAsync(ctx context.Context, key string) *Future[Lookup] {
	return goFuture(ctx, func(ctx context.Context) (Lookup, error) {
		v, ok, err := c.Get(ctx, key)
		return Lookup{Value: v, Found: ok}, err
	})
}

func (c *cache) SetAsync(ctx context.Context, key string, value []byte, opts EntryOptions) *Future[struct{}] {
	return goFuture(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Set(ctx, key, value, opts)
	})
}

func (c *cache) RemoveAsync(ctx context.Context, key string) *Future[struct{}] {
	return goFuture(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Remove(ctx, key)
	})
}

func (c *cache) RefreshAsync(ctx context.Context, key string) *Future[struct{}] {
	return goFuture(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Refresh(ctx, key)
	})
}

func (c *cache) check(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

// read loads a record and applies the read-path policy: expired records are
// deleted and reported as a miss, live ones with an expiration get their
// window renewed. The returned record is the one read before renewal.
func (c *cache) read(ctx context.Context, key string, now time.Time, withValue bool) (*store.Record, error) {
	rec, err := c.st.FindByKey(ctx, key, withValue)
	if err != nil || rec == nil {
		return nil, err
	}
	if rec.Expired(now) {
		if err := c.st.DeleteByKey(ctx, key); err != nil {
			return nil, err
		}
		c.hooks.ExpiredOnRead(key)
		c.log.Debug("deleted expired record on read", Fields{"key": key, "expiresAt": *rec.ExpiresAt})
		return nil, nil
	}
	if !rec.HasExpiration() {
		return rec, nil
	}
	next := ComputeExpiresAt(now, rec.SlidingExpirationSeconds, rec.AbsoluteExpiration)
	if next == nil || next.Equal(*rec.ExpiresAt) {
		return rec, nil
	}
	if err := c.st.ExtendExpiry(ctx, key, *next); err != nil {
		return nil, err
	}
	return rec, nil
}
