package doccache

import (
	"context"
	"time"

	"github.com/unkn0wn-root/doccache/store"
)

// Cache is the byte-level cache API. Every method is safe for concurrent use.
//
// Absent, expired and removed keys are indistinguishable: Get reports
// ok=false for all three, with a nil error.
type Cache interface {
	Enabled() bool
	Close(context.Context) error

	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, opts EntryOptions) error
	Remove(ctx context.Context, key string) error
	// Refresh renews a sliding window without transferring the value.
	Refresh(ctx context.Context, key string) error

	// Non-blocking variants. Cancelling ctx aborts the foreground store call
	// only; a background sweep already handed off keeps running.
	GetAsync(ctx context.Context, key string) *Future[Lookup]
	SetAsync(ctx context.Context, key string, value []byte, opts EntryOptions) *Future[struct{}]
	RemoveAsync(ctx context.Context, key string) *Future[struct{}]
	RefreshAsync(ctx context.Context, key string) *Future[struct{}]

	// Sweep deletes every logically expired record now, in the caller's goroutine.
	Sweep(ctx context.Context) error
}

// Lookup is the result of GetAsync.
type Lookup struct {
	Value []byte
	Found bool
}

// Options tune the cache. Only Store is required; others have sensible defaults.
type Options struct {
	// Required
	Store store.Store

	Logger          Logger           // if nil, NopLogger is used
	Hooks           Hooks            // if nil, NopHooks is used
	ScanInterval    time.Duration    // minimum time between sweeps; <=0 => 5m
	SweepTimeout    time.Duration    // bound on one background sweep; <=0 => 1m
	BackgroundSweep bool             // also sweep on a ticker, independent of traffic
	Clock           func() time.Time // nil => time.Now
	Disabled        bool             // default false (enabled)
}

func New(opts Options) (Cache, error) {
	return newCache(opts)
}
