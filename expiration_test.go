package doccache

import (
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func secondsPtr(v float64) *float64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func TestComputeExpiresAt(t *testing.T) {
	cases := []struct {
		name     string
		sliding  *float64
		absolute *time.Time
		want     *time.Time
	}{
		{"never", nil, nil, nil},
		{"absolute only", nil, timePtr(t0.Add(time.Hour)), timePtr(t0.Add(time.Hour))},
		{"sliding only", secondsPtr(30), nil, timePtr(t0.Add(30 * time.Second))},
		{"sliding under ceiling", secondsPtr(30), timePtr(t0.Add(time.Hour)), timePtr(t0.Add(30 * time.Second))},
		{"sliding capped", secondsPtr(120), timePtr(t0.Add(time.Minute)), timePtr(t0.Add(time.Minute))},
		{"fractional", secondsPtr(1.5), nil, timePtr(t0.Add(1500 * time.Millisecond))},
	}
	for _, tc := range cases {
		got := ComputeExpiresAt(t0, tc.sliding, tc.absolute)
		if (got == nil) != (tc.want == nil) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
		if got != nil && !got.Equal(*tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, *got, *tc.want)
		}
	}
}

func TestComputeExpiresAtDoesNotAlias(t *testing.T) {
	abs := t0.Add(time.Hour)
	got := ComputeExpiresAt(t0, nil, &abs)
	*got = time.Time{}
	if !abs.Equal(t0.Add(time.Hour)) {
		t.Fatalf("result must not alias the absolute input")
	}
}

func TestResolveSetExpiration(t *testing.T) {
	exp, err := ResolveSetExpiration(t0, EntryOptions{})
	if err != nil || exp.ExpiresAt != nil || exp.AbsoluteExpiration != nil || exp.SlidingExpirationSeconds != nil {
		t.Fatalf("zero options must mean never expires: %+v err=%v", exp, err)
	}

	exp, err = ResolveSetExpiration(t0, EntryOptions{}.WithAbsoluteExpirationRelativeToNow(time.Hour))
	if err != nil || !exp.AbsoluteExpiration.Equal(t0.Add(time.Hour)) || !exp.ExpiresAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("relative absolute: %+v err=%v", exp, err)
	}

	exp, err = ResolveSetExpiration(t0, EntryOptions{}.WithSlidingExpiration(90*time.Second))
	if err != nil || *exp.SlidingExpirationSeconds != 90 || !exp.ExpiresAt.Equal(t0.Add(90*time.Second)) {
		t.Fatalf("sliding: %+v err=%v", exp, err)
	}
}

func TestResolveExplicitAbsoluteWins(t *testing.T) {
	explicit := t0.Add(10 * time.Minute)
	exp, err := ResolveSetExpiration(t0, EntryOptions{}.
		WithAbsoluteExpiration(explicit).
		WithAbsoluteExpirationRelativeToNow(time.Hour))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !exp.AbsoluteExpiration.Equal(explicit) {
		t.Fatalf("explicit absolute should win, got %v", exp.AbsoluteExpiration)
	}
}

func TestResolveStripsZoneAndMonotonic(t *testing.T) {
	local := time.Now().In(time.FixedZone("X", 3600)).Add(time.Hour)
	exp, err := ResolveSetExpiration(time.Now(), EntryOptions{}.WithAbsoluteExpiration(local))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if exp.AbsoluteExpiration.Location() != time.UTC {
		t.Fatalf("persisted times must be UTC, got %v", exp.AbsoluteExpiration.Location())
	}
	if exp.AbsoluteExpiration.String() != exp.AbsoluteExpiration.Round(0).String() {
		t.Fatalf("monotonic reading must be stripped")
	}
}

func TestResolveRejectsDeadOrNegative(t *testing.T) {
	for name, opts := range map[string]EntryOptions{
		"absolute at now":   EntryOptions{}.WithAbsoluteExpiration(t0),
		"absolute in past":  EntryOptions{}.WithAbsoluteExpiration(t0.Add(-time.Minute)),
		"relative zero":     EntryOptions{}.WithAbsoluteExpirationRelativeToNow(0),
		"relative negative": EntryOptions{}.WithAbsoluteExpirationRelativeToNow(-time.Second),
		"zero sliding":      EntryOptions{}.WithSlidingExpiration(0),
		"negative sliding":  EntryOptions{}.WithSlidingExpiration(-time.Millisecond),
		"past with sliding": EntryOptions{}.WithAbsoluteExpiration(t0.Add(-time.Minute)).WithSlidingExpiration(time.Minute),
	} {
		_, err := ResolveSetExpiration(t0, opts)
		if !errors.Is(err, ErrInvalidExpiration) {
			t.Fatalf("%s: want ErrInvalidExpiration, got %v", name, err)
		}
	}
}
