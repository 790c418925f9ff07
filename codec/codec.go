// Package codec converts typed values to the opaque byte payloads that
// doccache persists, and back.
package codec

// Codec encodes/decodes values V to []byte for storage.
// Name identifies the format in logs and hook events.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
	Name() string
}
