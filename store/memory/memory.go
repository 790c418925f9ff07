// Package memory is an in-process store.Store. It is what the doccache tests
// run against, and it is usable on its own when the cache only has to be
// shared between goroutines of a single process.
package memory

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/unkn0wn-root/doccache/store"
)

// Store keeps records in a concurrent map. Per-key updates go through
// MapOf.Compute, which gives the same single-record atomicity a document
// store offers.
type Store struct {
	m *xsync.MapOf[string, store.Record]
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{m: xsync.NewMapOf[string, store.Record]()}
}

func (s *Store) FindByKey(_ context.Context, key string, includeValue bool) (*store.Record, error) {
	rec, ok := s.m.Load(key)
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	if !includeValue {
		out.Value = nil
	}
	return &out, nil
}

func (s *Store) UpsertReplace(_ context.Context, rec store.Record) error {
	s.m.Store(rec.Key, rec.Clone())
	return nil
}

func (s *Store) DeleteByKey(_ context.Context, key string) error {
	s.m.Delete(key)
	return nil
}

func (s *Store) ExtendExpiry(_ context.Context, key string, expiresAt time.Time) error {
	s.m.Compute(key, func(old store.Record, loaded bool) (store.Record, bool) {
		if !loaded {
			// nothing stored; ask Compute to drop the placeholder
			return old, true
		}
		if old.ExpiresAt != nil {
			old.ExpiresAt = store.TimePtr(expiresAt)
		}
		return old, false
	})
	return nil
}

func (s *Store) DeleteExpiredBefore(_ context.Context, now time.Time) error {
	var candidates []string
	s.m.Range(func(k string, r store.Record) bool {
		if r.Expired(now) {
			candidates = append(candidates, k)
		}
		return true
	})
	for _, k := range candidates {
		// re-check under the per-key lock; a concurrent Set may have revived it
		s.m.Compute(k, func(old store.Record, loaded bool) (store.Record, bool) {
			return old, !loaded || old.Expired(now)
		})
	}
	return nil
}

// EnsureIndexes is a no-op: the sweep is a full scan of the map.
func (s *Store) EnsureIndexes(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }

// Len returns the number of physically present records, expired or not.
func (s *Store) Len() int { return s.m.Size() }

// Peek returns the stored record without any expiration handling.
func (s *Store) Peek(key string) (store.Record, bool) {
	rec, ok := s.m.Load(key)
	if !ok {
		return store.Record{}, false
	}
	return rec.Clone(), true
}
