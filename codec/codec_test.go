package codec

import (
	"bytes"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type session struct {
	ID      string    `json:"id" msgpack:"id" cbor:"id"`
	Roles   []string  `json:"roles" msgpack:"roles" cbor:"roles"`
	Created time.Time `json:"created" msgpack:"created" cbor:"created"`
}

func sampleSession() session {
	return session{
		ID:      "s-1",
		Roles:   []string{"admin", "ops"},
		Created: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}
}

func sameSession(a, b session) bool {
	if a.ID != b.ID || !a.Created.Equal(b.Created) || len(a.Roles) != len(b.Roles) {
		return false
	}
	for i := range a.Roles {
		if a.Roles[i] != b.Roles[i] {
			return false
		}
	}
	return true
}

func TestStructCodecs(t *testing.T) {
	codecs := []Codec[session]{
		JSON[session]{},
		Msgpack[session]{},
		MustCBOR[session](true),
		MustCBOR[session](false),
	}
	in := sampleSession()
	for _, c := range codecs {
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", c.Name(), err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", c.Name(), err)
		}
		if !sameSession(in, out) {
			t.Fatalf("%s: got %+v want %+v", c.Name(), out, in)
		}
		if _, err := c.Decode([]byte{0xc1, 0xff, 0x00}); err == nil {
			t.Fatalf("%s: expected error on garbage input", c.Name())
		}
	}
}

func TestCBORDeterministic(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	m := map[string]int{"z": 1, "a": 2, "m": 3, "b": 4}
	first, err := c.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := c.Encode(m)
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic CBOR produced differing payloads")
		}
	}
}

func TestRawCodecs(t *testing.T) {
	b, _ := Bytes{}.Encode([]byte{1, 2, 3})
	if out, _ := (Bytes{}).Decode(b); !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Fatalf("Bytes round trip: %v", out)
	}
	s, _ := String{}.Encode("héllo")
	if out, _ := (String{}).Decode(s); out != "héllo" {
		t.Fatalf("String round trip: %q", out)
	}
}

func TestLimit(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 4}
	if c.Name() != "limit+string" {
		t.Fatalf("name = %q", c.Name())
	}
	if _, err := c.Decode([]byte("12345")); err == nil {
		t.Fatalf("expected oversize payload to be rejected")
	}
	if v, err := c.Decode([]byte("1234")); err != nil || v != "1234" {
		t.Fatalf("payload at the limit: v=%q err=%v", v, err)
	}
	unlimited := Limit[string]{Inner: String{}}
	if _, err := unlimited.Decode(make([]byte, 1<<16)); err != nil {
		t.Fatalf("MaxDecode<=0 disables the check: %v", err)
	}
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("payload"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.GetValue() != "payload" {
		t.Fatalf("got %q", out.GetValue())
	}
	if _, err := c.Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatalf("expected error on malformed protobuf")
	}
}
