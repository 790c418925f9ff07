// Package doccache is a distributed key/value cache whose records live in a
// shared document store, so every process pointed at the same store sees the
// same entries.
//
// Components:
//   - store.Store: key-based persistence (MongoDB, Redis, PostgreSQL/SQLite via
//     GORM, or in-process memory).
//   - Cache: Get/Set/Remove/Refresh over raw bytes, with blocking and
//     Future-returning variants.
//   - Typed[V]: the same operations over values encoded with a codec.Codec[V].
//
// Expiration:
//
// Each record carries an optional absolute ceiling, an optional sliding window
// and the currently effective expiresAt. Reads renew the sliding window up to
// the ceiling; a record whose expiresAt is at or before now is deleted by the
// read that finds it and reported as absent. Set with an absolute expiration
// that is not in the future fails with ErrInvalidExpiration.
//
// Sweeping:
//
// Records nobody reads are removed by a sweep that any operation may trigger
// once ScanInterval has elapsed since the previous one. The sweep runs
// detached from the caller and its failures only reach Logger and Hooks.
// Options.BackgroundSweep adds a ticker so sweeps also happen without traffic.
//
//	st, _ := mongo.Open(ctx, mongo.Config{URI: uri, Database: "app", Collection: "cache"})
//	c, _ := doccache.New(doccache.Options{Store: st, ScanInterval: time.Minute})
//	defer c.Close(ctx)
//
//	_ = c.Set(ctx, "session:42", payload, doccache.EntryOptions{}.WithSlidingExpiration(20 * time.Minute))
//	v, ok, err := c.Get(ctx, "session:42")
package doccache
