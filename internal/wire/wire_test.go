package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/unkn0wn-root/doccache/store"
)

func mustDecode(t *testing.T, b []byte) store.Record {
	t.Helper()
	rec, err := DecodeRecord(b)
	if err != nil {
		t.Fatalf("DecodeRecord error: %v", err)
	}
	return rec
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func TestRecordRoundTrip(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 123456789, time.UTC)
	later := now.Add(time.Hour)
	sliding := 1.5

	cases := []store.Record{
		{Value: []byte{}},
		{Value: []byte("hello")},
		{Value: []byte{0, 1, 2}, ExpiresAt: &later, AbsoluteExpiration: &later},
		{Value: []byte("s"), ExpiresAt: &now, SlidingExpirationSeconds: &sliding},
		{Value: []byte("both"), ExpiresAt: &now, AbsoluteExpiration: &later, SlidingExpirationSeconds: &sliding},
	}
	for i, tc := range cases {
		got := mustDecode(t, EncodeRecord(tc))
		if !bytes.Equal(got.Value, tc.Value) || got.Value == nil {
			t.Fatalf("case %d value mismatch: got %x want %x", i, got.Value, tc.Value)
		}
		if !sameTime(got.ExpiresAt, tc.ExpiresAt) || !sameTime(got.AbsoluteExpiration, tc.AbsoluteExpiration) {
			t.Fatalf("case %d time mismatch: got=%+v want=%+v", i, got, tc)
		}
		if (got.SlidingExpirationSeconds == nil) != (tc.SlidingExpirationSeconds == nil) ||
			(got.SlidingExpirationSeconds != nil && *got.SlidingExpirationSeconds != *tc.SlidingExpirationSeconds) {
			t.Fatalf("case %d sliding mismatch", i)
		}
	}
}

func TestHeaderOnlyDecode(t *testing.T) {
	exp := time.Unix(1700000000, 0).UTC()
	enc := EncodeRecord(store.Record{Value: []byte("payload"), ExpiresAt: &exp})

	rec, err := DecodeHeader(enc[:HeaderLen])
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if rec.Value != nil {
		t.Fatalf("header decode must not carry a value")
	}
	if !sameTime(rec.ExpiresAt, &exp) {
		t.Fatalf("expiresAt mismatch: %v", rec.ExpiresAt)
	}
}

func TestPatchExpiresAtInPlace(t *testing.T) {
	exp := time.Unix(1700000000, 0).UTC()
	enc := EncodeRecord(store.Record{Value: []byte("v"), ExpiresAt: &exp})

	next := exp.Add(90 * time.Second)
	copy(enc[ExpiresAtOffset:], EncodeTime(next))

	rec := mustDecode(t, enc)
	if !sameTime(rec.ExpiresAt, &next) {
		t.Fatalf("patched expiresAt = %v want %v", rec.ExpiresAt, next)
	}
	if string(rec.Value) != "v" {
		t.Fatalf("value damaged by patch: %q", rec.Value)
	}
}

func TestRejectsTrailingBytes(t *testing.T) {
	enc := EncodeRecord(store.Record{Value: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := DecodeRecord(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestCorruptHeadersAndLengths(t *testing.T) {
	s := 2.0
	exp := time.Unix(1700000000, 0)
	enc := EncodeRecord(store.Record{Value: []byte("abc"), SlidingExpirationSeconds: &s, ExpiresAt: &exp})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := DecodeRecord(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := DecodeRecord(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badFlags := append([]byte(nil), enc...)
	badFlags[5] |= 0x80
	if _, err := DecodeRecord(badFlags); err == nil {
		t.Fatalf("expected error on unknown flag bits")
	}

	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[30:34], uint32(len("abc")+1))
	if _, err := DecodeRecord(tooLong); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	if _, err := DecodeRecord(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}
	if _, err := DecodeHeader(enc[:HeaderLen-1]); err == nil {
		t.Fatalf("expected error on short header")
	}

	nan := append([]byte(nil), enc...)
	binary.BigEndian.PutUint64(nan[22:30], math.Float64bits(math.NaN()))
	if _, err := DecodeRecord(nan); err == nil {
		t.Fatalf("expected error on NaN sliding window")
	}
}

func TestDecodeCopiesValue(t *testing.T) {
	enc := EncodeRecord(store.Record{Value: []byte("Z")})
	rec := mustDecode(t, enc)
	rec.Value[0] = 'Q'
	if again := mustDecode(t, enc); again.Value[0] != 'Z' {
		t.Fatalf("decoded value must not alias the frame buffer")
	}
}
