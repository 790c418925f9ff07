package doccache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/doccache/codec"
	"github.com/unkn0wn-root/doccache/store"
)

type user struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

func TestTypedRoundTrip(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	c := newTestCache(t, newSpyStore(), clk, nil)

	for _, cd := range []codec.Codec[user]{codec.JSON[user]{}, codec.Msgpack[user]{}, codec.MustCBOR[user](true)} {
		users := NewTyped[user](c, cd)
		want := user{ID: "1", Name: "Ada"}
		if err := users.Set(ctx, "u:1", want, EntryOptions{}.WithSlidingExpiration(time.Minute)); err != nil {
			t.Fatalf("%s Set: %v", cd.Name(), err)
		}
		got, ok, err := users.Get(ctx, "u:1")
		if err != nil || !ok || got != want {
			t.Fatalf("%s Get: got=%+v ok=%v err=%v", cd.Name(), got, ok, err)
		}
		if err := users.Refresh(ctx, "u:1"); err != nil {
			t.Fatalf("%s Refresh: %v", cd.Name(), err)
		}
		if err := users.Remove(ctx, "u:1"); err != nil {
			t.Fatalf("%s Remove: %v", cd.Name(), err)
		}
		if _, ok, _ := users.Get(ctx, "u:1"); ok {
			t.Fatalf("%s: removed key still readable", cd.Name())
		}
	}
}

func TestTypedSelfHealsUndecodable(t *testing.T) {
	ctx := context.Background()
	st := newSpyStore()
	h := &recordingHooks{}
	c := newTestCache(t, st, newFakeClock(), nil)
	users := NewTyped[user](c, codec.JSON[user]{}, WithTypedHooks[user](h), WithTypedLogger[user](NopLogger{}))

	// another writer left bytes this codec cannot read
	if err := st.UpsertReplace(ctx, store.Record{Key: "u:bad", Value: []byte("not-json")}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok, err := users.Get(ctx, "u:bad"); err != nil || ok {
		t.Fatalf("undecodable value should read as a miss: ok=%v err=%v", ok, err)
	}
	if _, ok := st.Peek("u:bad"); ok {
		t.Fatalf("undecodable value was not removed")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.healed) != 1 || h.healed[0] != "u:bad:value_decode" {
		t.Fatalf("SelfHeal hook calls = %v", h.healed)
	}
}

type warnLogger struct {
	NopLogger
	mu    sync.Mutex
	warns []Fields
}

func (l *warnLogger) Warn(_ string, f Fields) {
	l.mu.Lock()
	l.warns = append(l.warns, f)
	l.mu.Unlock()
}

func TestTypedReportsFailedSelfHeal(t *testing.T) {
	ctx := context.Background()
	st := newSpyStore()
	lg := &warnLogger{}
	c := newTestCache(t, st, newFakeClock(), nil)
	users := NewTyped[user](c, codec.JSON[user]{}, WithTypedLogger[user](lg))

	if err := st.Store.UpsertReplace(ctx, store.Record{Key: "u:bad", Value: []byte("not-json")}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	st.failWrite = errBoom

	if _, ok, err := users.Get(ctx, "u:bad"); err != nil || ok {
		t.Fatalf("undecodable value should read as a miss: ok=%v err=%v", ok, err)
	}
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if len(lg.warns) != 1 {
		t.Fatalf("warn calls = %d want 1", len(lg.warns))
	}
	rerr, _ := lg.warns[0]["removeErr"].(error)
	if !errors.Is(rerr, ErrStoreUnavailable) || !errors.Is(rerr, errBoom) {
		t.Fatalf("failed removal not logged, fields=%v", lg.warns[0])
	}
}

func TestTypedEmptyEncoding(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, newSpyStore(), newFakeClock(), nil)
	raw := NewTyped[[]byte](c, codec.Bytes{})

	if err := raw.Set(ctx, "nil", nil, EntryOptions{}); err != nil {
		t.Fatalf("nil payload should be stored as empty: %v", err)
	}
	got, ok, err := raw.Get(ctx, "nil")
	if err != nil || !ok || got == nil || len(got) != 0 {
		t.Fatalf("got=%v ok=%v err=%v", got, ok, err)
	}
}
