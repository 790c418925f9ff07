package doccache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/doccache/store"
)

var (
	ErrInvalidKey        = errors.New("doccache: key must not be empty")
	ErrInvalidValue      = errors.New("doccache: value must not be nil")
	ErrInvalidExpiration = errors.New("doccache: invalid expiration")
	ErrClosed            = errors.New("doccache: cache is closed")

	// Re-exported from the store package so callers only import doccache.
	ErrInvalidConfiguration = store.ErrInvalidConfig
	ErrStoreUnavailable     = store.ErrUnavailable
)

// ExpirationError describes why entry options were rejected at Set time.
// It matches ErrInvalidExpiration.
type ExpirationError struct {
	Key    string
	Reason string
}

func (e *ExpirationError) Error() string {
	return fmt.Sprintf("doccache: invalid expiration for %q: %s", e.Key, e.Reason)
}

func (e *ExpirationError) Unwrap() error { return ErrInvalidExpiration }
