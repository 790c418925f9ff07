// Package mongo is a store.Store on a MongoDB collection.
//
// Documents keep the field names of existing deployments:
//
//	{ _id, value, expiresAt, absoluteExpiration, slidingExpirationInSeconds }
//
// expiresAt is null for records that never expire, and carries an ascending
// index so the sweep only touches expired documents.
package mongo

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unkn0wn-root/doccache/store"
)

const (
	backend = "mongo"

	fieldKey       = "_id"
	fieldValue     = "value"
	fieldExpiresAt = "expiresAt"

	expiresAtIndex = "expiresAt_1"
)

type document struct {
	Key                        string     `bson:"_id"`
	Value                      []byte     `bson:"value"`
	ExpiresAt                  *time.Time `bson:"expiresAt"`
	AbsoluteExpiration         *time.Time `bson:"absoluteExpiration"`
	SlidingExpirationInSeconds *float64   `bson:"slidingExpirationInSeconds"`
}

type Store struct {
	coll        *mongo.Collection
	client      *mongo.Client // set only when the store owns the connection
	closeClient atomic.Bool
}

var _ store.Store = (*Store)(nil)

// Open validates cfg, connects, pings and prepares the collection.
// The returned store owns the client and disconnects it on Close.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, cfg.clientOptions())
	if err != nil {
		return nil, store.Fail(backend, "connect", "", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, store.Fail(backend, "ping", "", err)
	}
	s := &Store{
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		client: client,
	}
	s.closeClient.Store(true)
	if !cfg.SkipIndexes {
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
	}
	return s, nil
}

// New wraps a collection of an already connected database. The caller keeps
// ownership of the client.
func New(ctx context.Context, db *mongo.Database, collection string) (*Store, error) {
	if db == nil {
		return nil, store.InvalidConfig(backend, "database is required")
	}
	if collection == "" {
		return nil, store.InvalidConfig(backend, "collection name is required")
	}
	s := &Store{coll: db.Collection(collection)}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func byKey(key string) bson.M { return bson.M{fieldKey: key} }

func (s *Store) FindByKey(ctx context.Context, key string, includeValue bool) (*store.Record, error) {
	opts := options.FindOne()
	if !includeValue {
		opts.SetProjection(bson.M{fieldValue: 0})
	}
	var doc document
	err := s.coll.FindOne(ctx, byKey(key), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Fail(backend, "find", key, err)
	}
	rec := store.Record{
		Key:                      doc.Key,
		AbsoluteExpiration:       utc(doc.AbsoluteExpiration),
		SlidingExpirationSeconds: doc.SlidingExpirationInSeconds,
		ExpiresAt:                utc(doc.ExpiresAt),
	}
	if includeValue {
		rec.Value = doc.Value
		if rec.Value == nil {
			rec.Value = []byte{}
		}
	}
	return &rec, nil
}

func (s *Store) UpsertReplace(ctx context.Context, rec store.Record) error {
	doc := document{
		Key:                        rec.Key,
		Value:                      rec.Value,
		ExpiresAt:                  rec.ExpiresAt,
		AbsoluteExpiration:         rec.AbsoluteExpiration,
		SlidingExpirationInSeconds: rec.SlidingExpirationSeconds,
	}
	_, err := s.coll.ReplaceOne(ctx, byKey(rec.Key), doc, options.Replace().SetUpsert(true))
	return store.Fail(backend, "upsert", rec.Key, err)
}

func (s *Store) DeleteByKey(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, byKey(key))
	return store.Fail(backend, "delete", key, err)
}

func (s *Store) ExtendExpiry(ctx context.Context, key string, expiresAt time.Time) error {
	filter := bson.M{
		fieldKey:       key,
		fieldExpiresAt: bson.M{"$ne": nil},
	}
	update := bson.M{"$set": bson.M{fieldExpiresAt: expiresAt.UTC()}}
	_, err := s.coll.UpdateOne(ctx, filter, update)
	return store.Fail(backend, "extend", key, err)
}

func (s *Store) DeleteExpiredBefore(ctx context.Context, now time.Time) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{fieldExpiresAt: bson.M{"$lte": now.UTC()}})
	return store.Fail(backend, "sweep", "", err)
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldExpiresAt, Value: 1}},
		Options: options.Index().SetName(expiresAtIndex),
	})
	return store.Fail(backend, "ensure index", "", err)
}

func (s *Store) Close(ctx context.Context) error {
	if !s.closeClient.Swap(false) {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Collection exposes the underlying collection, e.g. for inspection in tests.
func (s *Store) Collection() *mongo.Collection { return s.coll }

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
