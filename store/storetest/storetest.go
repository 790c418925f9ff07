// Package storetest is a conformance suite for store.Store implementations.
//
// A backend test calls Run with a factory that returns an empty store. Every
// subtest gets its own store; the factory is responsible for cleanup through
// t.Cleanup.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/doccache/store"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) store.Store

// base is second aligned so every backend (including millisecond BSON dates)
// round-trips it exactly.
var base = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"MissIsNil", testMissIsNil},
		{"UpsertFindRoundTrip", testUpsertFindRoundTrip},
		{"EmptyValueStaysNonNil", testEmptyValue},
		{"BinaryValueTransparent", testBinaryValue},
		{"MetadataOnlyRead", testMetadataOnly},
		{"ReplaceIsFull", testReplaceIsFull},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"ExtendOnlyExpiring", testExtendOnlyExpiring},
		{"ExtendMissingIsNoop", testExtendMissing},
		{"DeleteExpiredBefore", testDeleteExpiredBefore},
		{"ConcurrentUpserts", testConcurrentUpserts},
		{"EnsureIndexesIdempotent", testEnsureIndexes},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

func at(d time.Duration) *time.Time {
	return store.TimePtr(base.Add(d))
}

func secs(v float64) *float64 { return &v }

func requireSameTime(t *testing.T, want, got *time.Time, field string) {
	t.Helper()
	if want == nil {
		require.Nil(t, got, field)
		return
	}
	require.NotNil(t, got, field)
	require.True(t, want.Equal(*got), "%s: want %v got %v", field, want, got)
}

func requireMeta(t *testing.T, want store.Record, got *store.Record) {
	t.Helper()
	require.NotNil(t, got)
	require.Equal(t, want.Key, got.Key)
	requireSameTime(t, want.ExpiresAt, got.ExpiresAt, "ExpiresAt")
	requireSameTime(t, want.AbsoluteExpiration, got.AbsoluteExpiration, "AbsoluteExpiration")
	require.Equal(t, want.SlidingExpirationSeconds, got.SlidingExpirationSeconds)
}

func testMissIsNil(t *testing.T, s store.Store) {
	c := ctx(t)
	for _, withValue := range []bool{true, false} {
		rec, err := s.FindByKey(c, "absent", withValue)
		require.NoError(t, err)
		require.Nil(t, rec)
	}
}

func testUpsertFindRoundTrip(t *testing.T, s store.Store) {
	c := ctx(t)
	want := store.Record{
		Key:                      "k1",
		Value:                    []byte("hello"),
		AbsoluteExpiration:       at(time.Hour),
		SlidingExpirationSeconds: secs(90),
		ExpiresAt:                at(90 * time.Second),
	}
	require.NoError(t, s.UpsertReplace(c, want))

	got, err := s.FindByKey(c, "k1", true)
	require.NoError(t, err)
	requireMeta(t, want, got)
	require.Equal(t, []byte("hello"), got.Value)
}

func testEmptyValue(t *testing.T, s store.Store) {
	c := ctx(t)
	require.NoError(t, s.UpsertReplace(c, store.Record{Key: "empty", Value: []byte{}}))

	got, err := s.FindByKey(c, "empty", true)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Value)
	require.Len(t, got.Value, 0)
	require.Nil(t, got.ExpiresAt)
}

func testBinaryValue(t *testing.T, s store.Store) {
	c := ctx(t)
	v := make([]byte, 256)
	for i := range v {
		v[i] = byte(i)
	}
	require.NoError(t, s.UpsertReplace(c, store.Record{Key: "bin", Value: v}))

	got, err := s.FindByKey(c, "bin", true)
	require.NoError(t, err)
	require.Equal(t, v, got.Value)
}

func testMetadataOnly(t *testing.T, s store.Store) {
	c := ctx(t)
	want := store.Record{
		Key:                      "meta",
		Value:                    []byte("large payload"),
		SlidingExpirationSeconds: secs(30),
		ExpiresAt:                at(30 * time.Second),
	}
	require.NoError(t, s.UpsertReplace(c, want))

	got, err := s.FindByKey(c, "meta", false)
	require.NoError(t, err)
	requireMeta(t, want, got)
	require.Nil(t, got.Value)
}

func testReplaceIsFull(t *testing.T, s store.Store) {
	c := ctx(t)
	require.NoError(t, s.UpsertReplace(c, store.Record{
		Key:                "r",
		Value:              []byte("first"),
		AbsoluteExpiration: at(time.Minute),
		ExpiresAt:          at(time.Minute),
	}))
	require.NoError(t, s.UpsertReplace(c, store.Record{Key: "r", Value: []byte("second")}))

	got, err := s.FindByKey(c, "r", true)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), got.Value)
	require.Nil(t, got.ExpiresAt)
	require.Nil(t, got.AbsoluteExpiration)
	require.Nil(t, got.SlidingExpirationSeconds)
}

func testDeleteIdempotent(t *testing.T, s store.Store) {
	c := ctx(t)
	require.NoError(t, s.UpsertReplace(c, store.Record{Key: "d", Value: []byte("v")}))
	require.NoError(t, s.DeleteByKey(c, "d"))
	require.NoError(t, s.DeleteByKey(c, "d"))
	require.NoError(t, s.DeleteByKey(c, "never-existed"))

	got, err := s.FindByKey(c, "d", true)
	require.NoError(t, err)
	require.Nil(t, got)
}

func testExtendOnlyExpiring(t *testing.T, s store.Store) {
	c := ctx(t)
	require.NoError(t, s.UpsertReplace(c, store.Record{
		Key:                      "sliding",
		Value:                    []byte("v"),
		SlidingExpirationSeconds: secs(10),
		ExpiresAt:                at(10 * time.Second),
	}))
	require.NoError(t, s.UpsertReplace(c, store.Record{Key: "forever", Value: []byte("v")}))

	require.NoError(t, s.ExtendExpiry(c, "sliding", base.Add(20*time.Second)))
	require.NoError(t, s.ExtendExpiry(c, "forever", base.Add(20*time.Second)))

	got, err := s.FindByKey(c, "sliding", true)
	require.NoError(t, err)
	requireSameTime(t, at(20*time.Second), got.ExpiresAt, "ExpiresAt")
	require.Equal(t, []byte("v"), got.Value)

	got, err = s.FindByKey(c, "forever", false)
	require.NoError(t, err)
	require.Nil(t, got.ExpiresAt)
}

func testExtendMissing(t *testing.T, s store.Store) {
	c := ctx(t)
	require.NoError(t, s.ExtendExpiry(c, "ghost", base.Add(time.Minute)))

	got, err := s.FindByKey(c, "ghost", false)
	require.NoError(t, err)
	require.Nil(t, got)
}

func testDeleteExpiredBefore(t *testing.T, s store.Store) {
	c := ctx(t)
	put := func(key string, exp *time.Time) {
		require.NoError(t, s.UpsertReplace(c, store.Record{
			Key: key, Value: []byte(key), AbsoluteExpiration: exp, ExpiresAt: exp,
		}))
	}
	put("past", at(-time.Minute))
	put("boundary", at(0))
	put("future", at(time.Minute))
	put("forever", nil)

	require.NoError(t, s.DeleteExpiredBefore(c, base))

	for key, alive := range map[string]bool{
		"past": false, "boundary": false, "future": true, "forever": true,
	} {
		got, err := s.FindByKey(c, key, false)
		require.NoError(t, err)
		require.Equal(t, alive, got != nil, "key %q", key)
	}

	// sweeping again is harmless
	require.NoError(t, s.DeleteExpiredBefore(c, base))
}

func testConcurrentUpserts(t *testing.T, s store.Store) {
	c := ctx(t)
	const n = 32
	g, gctx := errgroup.WithContext(c)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			key := fmt.Sprintf("c-%d", i)
			return s.UpsertReplace(gctx, store.Record{Key: key, Value: []byte(key)})
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < n; i++ {
		key := fmt.Sprintf("c-%d", i)
		got, err := s.FindByKey(c, key, true)
		require.NoError(t, err)
		require.Equal(t, []byte(key), got.Value)
	}
}

func testEnsureIndexes(t *testing.T, s store.Store) {
	c := ctx(t)
	require.NoError(t, s.EnsureIndexes(c))
	require.NoError(t, s.EnsureIndexes(c))
}
