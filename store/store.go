// Package store defines the backing-store abstraction used by doccache.
//
// A Store owns no expiration policy. It translates the cache's logical
// operations (find, replace, delete, extend, sweep) into calls against a
// document or key/value system and reports failures unchanged.
//
// Implementations MUST be safe for concurrent use and MUST be byte-for-byte
// transparent for Record.Value: FindByKey(key, true) returns exactly the bytes
// last written by UpsertReplace for that key. An empty, non-nil value must
// come back as an empty, non-nil slice.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnavailable marks connectivity, timeout and other transient failures
	// of the backing store. Every error returned by a Store method matches it.
	ErrUnavailable = errors.New("store: backing store unavailable")

	// ErrInvalidConfig is returned by backend constructors for contradictory
	// or incomplete settings.
	ErrInvalidConfig = errors.New("store: invalid configuration")
)

// Store is the minimal set of key-based primitives the cache needs.
type Store interface {
	// FindByKey returns (rec, nil) on hit and (nil, nil) on miss.
	// With includeValue=false the value is projected out and rec.Value is nil.
	FindByKey(ctx context.Context, key string, includeValue bool) (*Record, error)

	// UpsertReplace inserts rec or fully replaces the record stored under rec.Key.
	// It is atomic at the single-record level.
	UpsertReplace(ctx context.Context, rec Record) error

	// DeleteByKey removes a record. Missing keys are not an error.
	DeleteByKey(ctx context.Context, key string) error

	// ExtendExpiry sets ExpiresAt only if the stored record still carries a
	// non-nil ExpiresAt. Non-expiring and missing records are left alone.
	ExtendExpiry(ctx context.Context, key string, expiresAt time.Time) error

	// DeleteExpiredBefore removes every record whose ExpiresAt <= now. Best-effort.
	DeleteExpiredBefore(ctx context.Context, now time.Time) error

	// EnsureIndexes declares the ascending index on ExpiresAt that keeps
	// DeleteExpiredBefore proportional to the number of expired records.
	EnsureIndexes(ctx context.Context) error

	// Close releases resources owned by the store.
	Close(ctx context.Context) error
}

// OpError wraps a backing-store failure with the operation that hit it.
// It matches ErrUnavailable and unwraps to the driver error.
type OpError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s store: %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s store: %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// Fail builds an *OpError. It returns nil when err is nil so callers can
// write `return store.Fail("mongo", "delete", key, err)` unconditionally.
func Fail(backend, op, key string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Backend: backend, Op: op, Key: key, Err: err}
}

// InvalidConfig formats a configuration error that matches ErrInvalidConfig.
func InvalidConfig(backend, format string, args ...any) error {
	return fmt.Errorf("%s store: %w: %s", backend, ErrInvalidConfig, fmt.Sprintf(format, args...))
}
