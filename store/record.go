package store

import "time"

// Record is one cache entry as persisted in the backing store.
//
// The three expiration fields are independently nullable:
//   - ExpiresAt is nil iff AbsoluteExpiration and SlidingExpirationSeconds are both nil.
//   - When AbsoluteExpiration is set, ExpiresAt never exceeds it.
type Record struct {
	Key                      string
	Value                    []byte
	AbsoluteExpiration       *time.Time
	SlidingExpirationSeconds *float64
	ExpiresAt                *time.Time
}

// HasExpiration reports whether the record carries any expiration policy.
func (r *Record) HasExpiration() bool {
	return r.ExpiresAt != nil
}

// Expired reports whether the record is logically expired at now.
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Sliding returns the sliding window as a duration, or 0 when unset.
func (r *Record) Sliding() time.Duration {
	if r.SlidingExpirationSeconds == nil {
		return 0
	}
	return time.Duration(*r.SlidingExpirationSeconds * float64(time.Second))
}

// Clone returns a deep copy so stores can hand out records without aliasing.
func (r Record) Clone() Record {
	out := Record{Key: r.Key}
	if r.Value != nil {
		out.Value = append(make([]byte, 0, len(r.Value)), r.Value...)
	}
	if r.AbsoluteExpiration != nil {
		t := *r.AbsoluteExpiration
		out.AbsoluteExpiration = &t
	}
	if r.SlidingExpirationSeconds != nil {
		s := *r.SlidingExpirationSeconds
		out.SlidingExpirationSeconds = &s
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		out.ExpiresAt = &t
	}
	return out
}

// TimePtr returns a pointer to a UTC copy of t with the monotonic reading stripped.
func TimePtr(t time.Time) *time.Time {
	u := t.Round(0).UTC()
	return &u
}
