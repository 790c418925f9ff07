package doccache

import (
	"context"

	"github.com/unkn0wn-root/doccache/codec"
)

// Typed layers a Codec over a byte Cache.
//
//	sessions := doccache.NewTyped[Session](cache, codec.Msgpack[Session]{})
//	_ = sessions.Set(ctx, id, s, doccache.EntryOptions{}.WithSlidingExpiration(20 * time.Minute))
//	s, ok, err := sessions.Get(ctx, id)
type Typed[V any] struct {
	c     Cache
	codec codec.Codec[V]
	log   Logger
	hooks Hooks
}

// TypedOption configures a Typed facade.
type TypedOption[V any] func(*Typed[V])

func WithTypedLogger[V any](l Logger) TypedOption[V] {
	return func(t *Typed[V]) { t.log = l }
}

func WithTypedHooks[V any](h Hooks) TypedOption[V] {
	return func(t *Typed[V]) { t.hooks = h }
}

func NewTyped[V any](c Cache, cd codec.Codec[V], opts ...TypedOption[V]) *Typed[V] {
	t := &Typed[V]{c: c, codec: cd, log: NopLogger{}, hooks: NopHooks{}}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Get decodes the cached payload. Bytes the codec cannot decode are removed
// and reported as a miss.
func (t *Typed[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, ok, err := t.c.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := t.codec.Decode(raw)
	if err != nil {
		t.hooks.SelfHeal(key, "value_decode")
		f := Fields{"key": key, "codec": t.codec.Name(), "err": err}
		if rerr := t.c.Remove(ctx, key); rerr != nil {
			f["removeErr"] = rerr
			t.log.Warn("undecodable value could not be removed", f)
		} else {
			t.log.Warn("dropped undecodable value", f)
		}
		return zero, false, nil
	}
	return v, true, nil
}

func (t *Typed[V]) Set(ctx context.Context, key string, value V, opts EntryOptions) error {
	raw, err := t.codec.Encode(value)
	if err != nil {
		return err
	}
	if raw == nil {
		raw = []byte{}
	}
	return t.c.Set(ctx, key, raw, opts)
}

func (t *Typed[V]) Remove(ctx context.Context, key string) error {
	return t.c.Remove(ctx, key)
}

func (t *Typed[V]) Refresh(ctx context.Context, key string) error {
	return t.c.Refresh(ctx, key)
}
