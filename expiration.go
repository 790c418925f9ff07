package doccache

import (
	"time"

	"github.com/unkn0wn-root/doccache/store"
)

// EntryOptions controls how long a value written by Set stays valid.
// Nil fields are unset; EntryOptions{} stores a value that never expires.
// A field that is set but zero is not the same as unset: a zero relative
// expiration resolves to now and is rejected.
//
// AbsoluteExpiration and AbsoluteExpirationRelativeToNow are two ways of
// saying the same thing. When both are set AbsoluteExpiration wins; callers
// should set only one.
//
//	opts := doccache.EntryOptions{}.WithSlidingExpiration(20 * time.Minute)
type EntryOptions struct {
	AbsoluteExpiration              *time.Time
	AbsoluteExpirationRelativeToNow *time.Duration
	SlidingExpiration               *time.Duration
}

func (o EntryOptions) WithAbsoluteExpiration(t time.Time) EntryOptions {
	o.AbsoluteExpiration = &t
	return o
}

func (o EntryOptions) WithAbsoluteExpirationRelativeToNow(d time.Duration) EntryOptions {
	o.AbsoluteExpirationRelativeToNow = &d
	return o
}

func (o EntryOptions) WithSlidingExpiration(d time.Duration) EntryOptions {
	o.SlidingExpiration = &d
	return o
}

// Expiration is the resolved, persistable form of EntryOptions.
type Expiration struct {
	AbsoluteExpiration       *time.Time
	SlidingExpirationSeconds *float64
	ExpiresAt                *time.Time
}

// ComputeExpiresAt derives the effective expiry at now. Nil means the entry
// never expires. The sliding extension is capped by the absolute ceiling.
func ComputeExpiresAt(now time.Time, slidingSeconds *float64, absolute *time.Time) *time.Time {
	if slidingSeconds == nil {
		if absolute == nil {
			return nil
		}
		return store.TimePtr(*absolute)
	}
	next := now.Add(time.Duration(*slidingSeconds * float64(time.Second)))
	if absolute != nil && next.After(*absolute) {
		return store.TimePtr(*absolute)
	}
	return store.TimePtr(next)
}

// ResolveSetExpiration turns entry options into persisted expiration fields.
// A ceiling at or before now is rejected rather than stored dead.
func ResolveSetExpiration(now time.Time, opts EntryOptions) (Expiration, error) {
	var exp Expiration

	if opts.SlidingExpiration != nil {
		if *opts.SlidingExpiration <= 0 {
			return exp, &ExpirationError{Reason: "sliding expiration must be positive"}
		}
		s := opts.SlidingExpiration.Seconds()
		exp.SlidingExpirationSeconds = &s
	}

	switch {
	case opts.AbsoluteExpiration != nil:
		exp.AbsoluteExpiration = store.TimePtr(*opts.AbsoluteExpiration)
	case opts.AbsoluteExpirationRelativeToNow != nil:
		exp.AbsoluteExpiration = store.TimePtr(now.Add(*opts.AbsoluteExpirationRelativeToNow))
	}
	if exp.AbsoluteExpiration != nil && !exp.AbsoluteExpiration.After(now) {
		return Expiration{}, &ExpirationError{Reason: "absolute expiration must be in the future"}
	}

	exp.ExpiresAt = ComputeExpiresAt(now, exp.SlidingExpirationSeconds, exp.AbsoluteExpiration)
	return exp, nil
}
