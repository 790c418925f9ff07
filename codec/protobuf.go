package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes generated protobuf messages. New must return a fresh
// message to decode into, e.g. func() *pb.Session { return &pb.Session{} }.
type Protobuf[T proto.Message] struct {
	New func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{New: ctor}
}

func (Protobuf[T]) Name() string { return "protobuf" }

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.New()
	err := proto.Unmarshal(b, m)
	return m, err
}
