// Package redis is a store.Store on Redis.
//
// Each record is a framed string (see internal/wire) and every record with an
// expiration is also a member of a per-namespace sorted set scored by
// expiresAt. That sorted set is the sweep index: DeleteExpiredBefore walks it
// with ZRANGEBYSCORE, so its cost follows the number of expired records.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/doccache/internal/util"
	"github.com/unkn0wn-root/doccache/internal/wire"
	"github.com/unkn0wn-root/doccache/store"
)

const (
	backend           = "redis"
	defaultSweepBatch = 500
)

var ErrNilClient = errors.New("redis store: nil client")

// extendScript patches expiresAt in place, but only for records that are in
// the expiry index (i.e. that carry an expiration).
//
// KEYS[1]=record KEYS[2]=index ARGV[1]=member ARGV[2]=expiresAt bytes ARGV[3]=score ARGV[4]=offset
var extendScript = goredis.NewScript(`
if redis.call('ZSCORE', KEYS[2], ARGV[1]) == false then
	return 0
end
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('ZREM', KEYS[2], ARGV[1])
	return 0
end
redis.call('SETRANGE', KEYS[1], tonumber(ARGV[4]), ARGV[2])
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 1
`)

// sweepScript deletes one batch of expired records.
//
// KEYS[1]=index ARGV[1]=cutoff score ARGV[2]=batch ARGV[3]=record key prefix
var sweepScript = goredis.NewScript(`
local members = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, m in ipairs(members) do
	redis.call('DEL', ARGV[3] .. m)
	redis.call('ZREM', KEYS[1], m)
end
return #members
`)

type Store struct {
	rdb         goredis.UniversalClient
	ns          string
	closeClient bool
	batch       int
}

var _ store.Store = (*Store)(nil)

type Config struct {
	Client      goredis.UniversalClient
	Namespace   string // required; must not contain '{' or '}'
	CloseClient bool   // set true only if this store exclusively owns the client
	SweepBatch  int    // records deleted per sweep script call; <=0 => 500
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if !util.ValidNamespace(cfg.Namespace) {
		return nil, store.InvalidConfig(backend, "namespace %q must be non-empty and free of braces", cfg.Namespace)
	}
	batch := cfg.SweepBatch
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &Store{rdb: cfg.Client, ns: cfg.Namespace, closeClient: cfg.CloseClient, batch: batch}, nil
}

// Open parses a redis:// URL, pings the server and returns a store that owns
// the client.
func Open(ctx context.Context, url, namespace string) (*Store, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, store.InvalidConfig(backend, "parse url: %v", err)
	}
	rdb := goredis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, store.Fail(backend, "ping", "", err)
	}
	s, err := New(Config{Client: rdb, Namespace: namespace, CloseClient: true})
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) FindByKey(ctx context.Context, key string, includeValue bool) (*store.Record, error) {
	rk := util.RecordKey(s.ns, key)

	var (
		b   []byte
		err error
	)
	if includeValue {
		b, err = s.rdb.Get(ctx, rk).Bytes()
		if err == goredis.Nil {
			return nil, nil // miss
		}
	} else {
		// GETRANGE on a missing key returns "", not nil
		b, err = s.rdb.GetRange(ctx, rk, 0, wire.HeaderLen-1).Bytes()
		if err == nil && len(b) == 0 {
			return nil, nil
		}
	}
	if err != nil {
		return nil, store.Fail(backend, "find", key, err)
	}

	var rec store.Record
	if includeValue {
		rec, err = wire.DecodeRecord(b)
	} else {
		rec, err = wire.DecodeHeader(b)
	}
	if err != nil {
		// foreign or damaged bytes under our prefix; self-heal
		if derr := s.DeleteByKey(ctx, key); derr != nil {
			return nil, derr
		}
		return nil, nil
	}
	rec.Key = key
	return &rec, nil
}

func (s *Store) UpsertReplace(ctx context.Context, rec store.Record) error {
	frame := wire.EncodeRecord(rec)
	ik := util.IndexKey(s.ns)
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, util.RecordKey(s.ns, rec.Key), frame, 0)
		if rec.ExpiresAt != nil {
			p.ZAdd(ctx, ik, goredis.Z{Score: ceilScore(*rec.ExpiresAt), Member: rec.Key})
		} else {
			p.ZRem(ctx, ik, rec.Key)
		}
		return nil
	})
	return store.Fail(backend, "upsert", rec.Key, err)
}

func (s *Store) DeleteByKey(ctx context.Context, key string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Del(ctx, util.RecordKey(s.ns, key))
		p.ZRem(ctx, util.IndexKey(s.ns), key)
		return nil
	})
	return store.Fail(backend, "delete", key, err)
}

func (s *Store) ExtendExpiry(ctx context.Context, key string, expiresAt time.Time) error {
	keys := []string{util.RecordKey(s.ns, key), util.IndexKey(s.ns)}
	err := extendScript.Run(ctx, s.rdb, keys,
		key, wire.EncodeTime(expiresAt), ceilScore(expiresAt), wire.ExpiresAtOffset).Err()
	return store.Fail(backend, "extend", key, err)
}

func (s *Store) DeleteExpiredBefore(ctx context.Context, now time.Time) error {
	cutoff := floorScore(now)
	ik := []string{util.IndexKey(s.ns)}
	prefix := util.RecordPrefix(s.ns)
	for {
		n, err := sweepScript.Run(ctx, s.rdb, ik, cutoff, s.batch, prefix).Int()
		if err != nil {
			return store.Fail(backend, "sweep", "", err)
		}
		if n < s.batch {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return store.Fail(backend, "sweep", "", err)
		}
	}
}

// EnsureIndexes is a no-op: the expiry sorted set is maintained on every write.
func (s *Store) EnsureIndexes(context.Context) error { return nil }

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// Scores are unix microseconds. A record is rounded up and the cutoff down so
// the sweep never removes a record that is not yet expired.
func ceilScore(t time.Time) float64 {
	us := t.UnixMicro() // floors, also before 1970
	if t.Nanosecond()%1000 > 0 {
		us++
	}
	return float64(us)
}

func floorScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}
