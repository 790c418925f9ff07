// Package wire is the binary record frame used by key/value backends that
// cannot store structured documents.
//
// Record:
//
//	magic(4) | ver(1) | flags(1) | expiresAt(i64 be) | absolute(i64 be) | sliding(f64 be) | vlen(u32 be) | value(vlen)
//
// Times are unix nanoseconds. A field whose flag bit is clear is zero on the
// wire and nil after decoding. The header has a fixed size so a backend can
// read metadata alone (GETRANGE 0 HeaderLen-1) or patch expiresAt in place
// (SETRANGE ExpiresAtOffset).
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/unkn0wn-root/doccache/store"
)

const version byte = 1

const (
	flagExpiresAt byte = 1 << iota
	flagAbsolute
	flagSliding
)

const (
	// ExpiresAtOffset is the byte offset of the expiresAt field.
	ExpiresAtOffset = 6
	// HeaderLen is the size of everything before the value bytes.
	HeaderLen = 4 + 1 + 1 + 8 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("doccache: corrupt record")
	magic4     = [...]byte{'D', 'O', 'C', 'R'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// EncodeRecord frames rec. The key is not part of the frame.
func EncodeRecord(rec store.Record) []byte {
	buf := make([]byte, HeaderLen, HeaderLen+len(rec.Value))
	copy(buf, magic4[:])
	buf[4] = version

	var flags byte
	if rec.ExpiresAt != nil {
		flags |= flagExpiresAt
		binary.BigEndian.PutUint64(buf[6:14], uint64(rec.ExpiresAt.UnixNano()))
	}
	if rec.AbsoluteExpiration != nil {
		flags |= flagAbsolute
		binary.BigEndian.PutUint64(buf[14:22], uint64(rec.AbsoluteExpiration.UnixNano()))
	}
	if rec.SlidingExpirationSeconds != nil {
		flags |= flagSliding
		binary.BigEndian.PutUint64(buf[22:30], math.Float64bits(*rec.SlidingExpirationSeconds))
	}
	buf[5] = flags
	binary.BigEndian.PutUint32(buf[30:34], uint32(len(rec.Value)))

	return append(buf, rec.Value...)
}

// DecodeHeader decodes the expiration fields. b may hold just the header or
// the whole frame; Value is always nil.
func DecodeHeader(b []byte) (store.Record, error) {
	var rec store.Record
	if len(b) < HeaderLen || !hasMagic(b) || b[4] != version {
		return rec, ErrCorrupt
	}
	flags := b[5]
	if flags&^(flagExpiresAt|flagAbsolute|flagSliding) != 0 {
		return rec, ErrCorrupt
	}
	if flags&flagExpiresAt != 0 {
		rec.ExpiresAt = unixPtr(binary.BigEndian.Uint64(b[6:14]))
	}
	if flags&flagAbsolute != 0 {
		rec.AbsoluteExpiration = unixPtr(binary.BigEndian.Uint64(b[14:22]))
	}
	if flags&flagSliding != 0 {
		s := math.Float64frombits(binary.BigEndian.Uint64(b[22:30]))
		if math.IsNaN(s) || s <= 0 {
			return store.Record{}, ErrCorrupt
		}
		rec.SlidingExpirationSeconds = &s
	}
	return rec, nil
}

// DecodeRecord decodes a full frame. Trailing bytes are rejected.
func DecodeRecord(b []byte) (store.Record, error) {
	rec, err := DecodeHeader(b)
	if err != nil {
		return rec, err
	}
	vlen := int(binary.BigEndian.Uint32(b[30:34]))
	if vlen != len(b)-HeaderLen { // overflow-safe: both sides bounded by len(b)
		return store.Record{}, ErrCorrupt
	}
	rec.Value = make([]byte, vlen)
	copy(rec.Value, b[HeaderLen:])
	return rec, nil
}

// EncodeTime is the 8-byte wire form of t, suitable for SETRANGE at ExpiresAtOffset.
func EncodeTime(t time.Time) []byte {
	var u8 [8]byte
	binary.BigEndian.PutUint64(u8[:], uint64(t.UnixNano()))
	return u8[:]
}

func unixPtr(n uint64) *time.Time {
	t := time.Unix(0, int64(n)).UTC()
	return &t
}
